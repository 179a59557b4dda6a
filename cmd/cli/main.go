package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-insights/internal/app"
	"github.com/dvloznov/txn-insights/internal/config"
	"github.com/dvloznov/txn-insights/internal/gcsuploader"
	"github.com/dvloznov/txn-insights/internal/ingest"
	"github.com/dvloznov/txn-insights/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ask":
		runAsk(cfg, log)
	case "ingest":
		runIngest(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "generate":
		runGenerate(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Transaction Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ask       Ask a question, or start an interactive session")
	fmt.Println("  ingest    Load a CSV or synthetic dataset into BigQuery or Postgres")
	fmt.Println("  upload    Upload a dataset CSV to GCS")
	fmt.Println("  generate  Write a synthetic dataset to a CSV file")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runAsk(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	query := fs.String("q", "", "Question to ask; omit for an interactive session")
	source := fs.String("source", cfg.RowSource, "Row source: memory, bigquery or postgres")
	dataset := fs.String("dataset", cfg.DatasetURI, "Dataset for the memory source (gs://, synthetic:// or a local CSV)")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	fs.Parse(os.Args[2:])

	cfg.RowSource, cfg.DatasetURI = *source, *dataset
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	// Keep the console quiet while answering; the service logs at info.
	container, err := app.New(ctx, cfg, log.Level(zerolog.WarnLevel))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer container.Close()

	if _, err := container.Seed(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}

	p := printer{out: os.Stdout, json: *asJSON}

	if *query != "" {
		res, err := container.Service.ProcessTurn(ctx, "", *query)
		if err != nil {
			log.Fatal().Err(err).Msg("Query failed")
		}
		p.turn(res)
		return
	}

	if err := repl(ctx, container.Service, os.Stdin, p); err != nil {
		log.Fatal().Err(err).Msg("Session failed")
	}
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	uri := fs.String("uri", "", "Dataset URI: gs://bucket/file.csv, synthetic://?rows=N&seed=S or a local CSV path")
	source := fs.String("source", cfg.RowSource, "Target row source: bigquery or postgres")
	fs.Parse(os.Args[2:])

	if *uri == "" {
		log.Fatal().Msg("Error: -uri is required")
	}
	cfg.RowSource = *source
	if cfg.RowSource == config.SourceMemory {
		log.Fatal().Msg("Error: ingest needs a persistent -source (bigquery or postgres)")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	container, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer container.Close()

	if t, ok := container.Rows.(interface{ CreateTable(context.Context) error }); ok {
		if err := t.CreateTable(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to create table")
		}
	}

	log.Info().Str("uri", *uri).Str("source", cfg.RowSource).Msg("Starting ingestion")

	report, err := container.Loader.Load(ctx, *uri)
	for _, e := range report.Errors {
		fmt.Fprintf(os.Stderr, "skipped %s\n", e)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Loaded %d of %d rows (%d skipped).\n", report.Loaded, report.Read, report.Skipped)
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (or set GCS_BUCKET env)")
	objectName := fs.String("object", "", "GCS object name (defaults to filename)")
	filePath := fs.String("file", "", "Path to local CSV file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer svc.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := svc.UploadFile(ctx, *bucketName, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runGenerate(log zerolog.Logger) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	rows := fs.Int("rows", 5000, "Number of transactions")
	seed := fs.Int64("seed", 42, "Random seed")
	days := fs.Int("days", ingest.DefaultSyntheticDays, "Days of history ending now")
	out := fs.String("out", "", "Output CSV path (defaults to stdout)")
	fs.Parse(os.Args[2:])

	if *rows <= 0 {
		log.Fatal().Msg("Error: -rows must be positive")
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	records := ingest.Generate(ingest.SyntheticOptions{Rows: *rows, Seed: *seed, Days: *days})
	if err := ingest.WriteCSV(w, records); err != nil {
		log.Fatal().Err(err).Msg("Failed to write CSV")
	}

	if *out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d transactions to %s\n", len(records), *out)
	}
}
