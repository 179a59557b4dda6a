package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/txn-insights/internal/api/handlers"
	"github.com/dvloznov/txn-insights/internal/api/middleware"
	"github.com/dvloznov/txn-insights/internal/app"
	"github.com/dvloznov/txn-insights/internal/config"
	"github.com/dvloznov/txn-insights/internal/insight"
	"github.com/dvloznov/txn-insights/internal/jobs/inmemory"
	"github.com/dvloznov/txn-insights/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	// Flags override the environment
	var (
		port    = flag.Int("port", cfg.Port, "HTTP server port")
		source  = flag.String("source", cfg.RowSource, "Row source: memory, bigquery or postgres")
		dataset = flag.String("dataset", cfg.DatasetURI, "Dataset to load into the memory source (gs://, synthetic:// or a local CSV)")
	)
	flag.Parse()
	cfg.Port, cfg.RowSource, cfg.DatasetURI = *port, *source, *dataset
	if err := cfg.Validate(); err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer container.Close()

	report, err := container.Seed(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}
	if report.URI != "" {
		log.Info().Str("uri", report.URI).Int("rows", report.Loaded).Int("skipped", report.Skipped).Msg("Dataset ready")
	}

	insight.RegisterSessionGauge(container.Sessions.Len)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(cfg.JobWorkers),
		inmemory.WithLogger(log),
	)

	router := handlers.Router{
		Query:    handlers.NewQueryHandler(container.Service, log),
		Datasets: handlers.NewDatasetsHandler(jobQueue, log),
		Jobs:     handlers.NewJobsHandler(jobStore, log),
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      middleware.Chain(router.Mux(), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RenderTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return container.Sessions.RunSweeper(gctx, cfg.SessionSweepInterval)
	})

	g.Go(func() error {
		log.Info().Int("workers", cfg.JobWorkers).Msg("Starting job workers")
		return jobQueue.Start(gctx, container.HandleJob)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		// Stop job queue and wait for in-flight jobs
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}

	log.Info().Msg("Server exited")
}
