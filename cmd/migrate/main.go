package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/txn-insights/internal/config"
	"github.com/dvloznov/txn-insights/internal/infra/postgres"
	"github.com/dvloznov/txn-insights/internal/logger"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Pattern to match migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info")
		bootLog.Fatal().Err(err).Msg("Failed to load config")
	}

	var (
		target        = flag.String("target", cfg.RowSource, "Database to migrate: bigquery or postgres")
		direction     = flag.String("direction", "up", "Postgres only: up or down")
		projectID     = flag.String("project", cfg.BQProject, "GCP project ID")
		datasetID     = flag.String("dataset", cfg.BQDataset, "BigQuery dataset ID")
		tableID       = flag.String("table", cfg.BQTable, "BigQuery transactions table")
		databaseURL   = flag.String("database-url", cfg.DatabaseURL, "Postgres connection URL (or set DATABASE_URL env)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to BigQuery migrations directory")
	)
	flag.Parse()

	log := logger.New(cfg.LogLevel)

	switch *target {
	case config.SourcePostgres:
		if *databaseURL == "" {
			log.Fatal().Msg("Error: -database-url is required for postgres")
		}
		if err := migratePostgres(*databaseURL, *direction, log); err != nil {
			log.Fatal().Err(err).Msg("Postgres migration failed")
		}

	case config.SourceBigQuery:
		if *projectID == "" {
			log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
		}

		dir, err := findMigrationsDir(*migrationsDir)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to locate migrations")
		}

		ctx := context.Background()
		client, err := bigquery.NewClient(ctx, *projectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer client.Close()

		r := &runner{
			client: client,
			log:    log,
			vars: placeholders{
				ProjectID: *projectID,
				DatasetID: *datasetID,
				TableID:   *tableID,
			},
			appliedBy: *appliedBy,
		}
		if err := r.run(ctx, os.DirFS(dir)); err != nil {
			log.Fatal().Err(err).Msg("BigQuery migration failed")
		}

	default:
		log.Fatal().Str("target", *target).Msg("Error: -target must be bigquery or postgres")
	}
}

func migratePostgres(databaseURL, direction string, log zerolog.Logger) error {
	switch direction {
	case "up":
		return postgres.RunMigrations(databaseURL, log)
	case "down":
		return postgres.RollbackMigrations(databaseURL, log)
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}
}

// findMigrationsDir accepts the path as given or relative to the repo root,
// in case we're run from cmd/migrate.
func findMigrationsDir(dir string) (string, error) {
	for _, candidate := range []string{dir, "../../" + dir} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// placeholders are substituted into migration SQL.
type placeholders struct {
	ProjectID string
	DatasetID string
	TableID   string
}

func (p placeholders) apply(sql string) string {
	return strings.NewReplacer(
		"{{PROJECT_ID}}", p.ProjectID,
		"{{DATASET_ID}}", p.DatasetID,
		"{{TABLE_ID}}", p.TableID,
	).Replace(sql)
}

// runner applies versioned SQL files to BigQuery and records them in
// schema_migrations.
type runner struct {
	client    *bigquery.Client
	log       zerolog.Logger
	vars      placeholders
	appliedBy string
}

func (r *runner) run(ctx context.Context, fsys fs.FS) error {
	r.log.Info().Str("project", r.vars.ProjectID).Str("dataset", r.vars.DatasetID).Msg("Connected to BigQuery")

	if err := r.exec(ctx, r.schemaMigrationsDDL(), nil); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	migrations, err := readMigrations(fsys, r.vars, r.log)
	if err != nil {
		return err
	}
	r.log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := r.applied(ctx)
	if err != nil {
		return err
	}
	appliedVersions := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedVersions[am.Version] = am
	}

	appliedCount := 0
	for _, m := range pending(migrations, appliedVersions, r.log) {
		r.log.Info().Msgf("  [RUN]  %04d_%s", m.Version, m.Name)

		if err := r.exec(ctx, m.SQL, nil); err != nil {
			return fmt.Errorf("executing %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := r.record(ctx, m); err != nil {
			return fmt.Errorf("recording %04d_%s: %w", m.Version, m.Name, err)
		}

		r.log.Info().Msgf("  [OK]   %04d_%s", m.Version, m.Name)
		appliedCount++
	}

	if appliedCount == 0 {
		r.log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		r.log.Info().Int("applied", appliedCount).Msg("Migrations applied")
	}
	return nil
}

// pending drops already-applied migrations and warns when an applied file
// has changed since.
func pending(migrations []Migration, applied map[int]AppliedMigration, log zerolog.Logger) []Migration {
	var out []Migration
	for _, m := range migrations {
		am, ok := applied[m.Version]
		if !ok {
			out = append(out, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			log.Warn().Msgf("  [DIFF] %04d_%s changed after it was applied", m.Version, m.Name)
			continue
		}
		log.Info().Msgf("  [SKIP] %04d_%s (already applied)", m.Version, m.Name)
	}
	return out
}

func (r *runner) schemaMigrationsDDL() string {
	return r.vars.apply(`
		CREATE TABLE IF NOT EXISTS ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.schema_migrations`" + ` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`)
}

// readMigrations loads every NNNN_name.sql file in version order. Checksums
// are taken before placeholder substitution so the same file hashes alike in
// every project.
func readMigrations(fsys fs.FS, vars placeholders, log zerolog.Logger) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			log.Warn().Str("file", entry.Name()).Msg("Skipping file with invalid format")
			continue
		}

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: entry.Name(),
			SQL:      vars.apply(string(content)),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Version == migrations[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s",
				migrations[i].Version, migrations[i-1].Filename, migrations[i].Filename)
		}
	}
	return migrations, nil
}

func parseMigrationFilename(filename string) (int, string, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// applied retrieves the list of already applied migrations
func (r *runner) applied(ctx context.Context) ([]AppliedMigration, error) {
	sql := r.vars.apply(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.schema_migrations`" + `
		ORDER BY version ASC
	`)

	it, err := r.client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64
			Name      string
			AppliedAt time.Time
			Checksum  bigquery.NullString
			AppliedBy bigquery.NullString
		}

		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (r *runner) record(ctx context.Context, m Migration) error {
	sql := r.vars.apply(`
		INSERT INTO ` + "`{{PROJECT_ID}}.{{DATASET_ID}}.schema_migrations`" + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`)
	return r.exec(ctx, sql, []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: r.appliedBy},
	})
}

// exec runs one statement and waits for the job to finish.
func (r *runner) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	query := r.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
