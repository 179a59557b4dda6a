// Package app assembles the services shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-insights/internal/config"
	convmem "github.com/dvloznov/txn-insights/internal/conversation/inmemory"
	"github.com/dvloznov/txn-insights/internal/gcsuploader"
	infraBQ "github.com/dvloznov/txn-insights/internal/infra/bigquery"
	"github.com/dvloznov/txn-insights/internal/infra/postgres"
	"github.com/dvloznov/txn-insights/internal/ingest"
	"github.com/dvloznov/txn-insights/internal/insight"
	"github.com/dvloznov/txn-insights/internal/jobs"
	"github.com/dvloznov/txn-insights/internal/render"
	"github.com/dvloznov/txn-insights/internal/rowsource"
)

// Rows is a backend the service reads from and the loader writes to.
type Rows interface {
	rowsource.Source
	rowsource.Sink
}

// Container holds the process-wide dependencies.
type Container struct {
	Config   *config.Config
	Log      zerolog.Logger
	Rows     Rows
	Sessions *convmem.Store
	Storage  *gcsuploader.LazyStorageService
	Loader   *ingest.Loader
	Service  *insight.Service

	closers []func() error
}

// New opens the configured row source and builds the service around it.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Log:     log,
		Storage: gcsuploader.NewLazyStorageService(),
	}
	c.closers = append(c.closers, c.Storage.Close)

	rows, err := c.openRows(ctx)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}
	c.Rows = rows

	renderer, err := render.New(ctx, render.Options{
		Kind:         cfg.Renderer,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		Timeout:      cfg.RenderTimeout,
	}, log)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("app.New: %w", err)
	}

	c.Sessions = convmem.NewStore(cfg.SessionTTL(), cfg.MaxHistoryTurns, convmem.WithLogger(log))
	c.Loader = ingest.NewLoader(rows, ingest.WithOpener(c.Storage), ingest.WithLoaderLogger(log))
	c.Service = insight.NewService(c.Sessions, rows,
		insight.WithRenderer(renderer),
		insight.WithLogger(log),
	)

	log.Info().
		Str("row_source", cfg.RowSource).
		Str("renderer", cfg.Renderer).
		Msg("Services initialised")

	return c, nil
}

func (c *Container) openRows(ctx context.Context) (Rows, error) {
	cfg := c.Config
	switch cfg.RowSource {
	case config.SourceBigQuery:
		store, err := infraBQ.NewTransactionStore(ctx, cfg.BQProject, cfg.BQDataset, cfg.BQTable)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil

	case config.SourcePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })
		return postgres.NewTransactionRepository(pool), nil

	default:
		return rowsource.NewMemory(nil), nil
	}
}

// SeedURI is the dataset loaded at startup into the in-memory source:
// DATASET_URI when set, otherwise a synthetic dataset.
func (c *Container) SeedURI() string {
	if c.Config.DatasetURI != "" {
		return c.Config.DatasetURI
	}
	return ingest.SyntheticURI(c.Config.SyntheticRows, c.Config.SyntheticSeed)
}

// Seed fills the in-memory source. Persistent backends already hold their
// data and are left alone.
func (c *Container) Seed(ctx context.Context) (ingest.Report, error) {
	if c.Config.RowSource != config.SourceMemory {
		return ingest.Report{}, nil
	}
	report, err := c.Loader.Load(ctx, c.SeedURI())
	if err != nil {
		return report, fmt.Errorf("Seed: %w", err)
	}
	return report, nil
}

// HandleJob runs a queued job against the loader.
func (c *Container) HandleJob(ctx context.Context, job jobs.Job) error {
	load, ok := job.(*jobs.LoadDatasetJob)
	if !ok {
		return fmt.Errorf("HandleJob: unexpected job type: %T", job)
	}

	c.Log.Info().Str("job_id", load.JobID).Str("uri", load.URI).Msg("Processing load job")

	report, err := c.Loader.Load(ctx, load.URI)
	load.Result = &jobs.LoadResult{
		RowsRead:    report.Read,
		RowsLoaded:  report.Loaded,
		RowsSkipped: report.Skipped,
		Errors:      report.Errors,
	}
	if err != nil {
		return fmt.Errorf("HandleJob: %w", err)
	}
	return nil
}

// Close releases clients and pools in reverse order of creation.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
