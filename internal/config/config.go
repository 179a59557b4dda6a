// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Row source backends.
const (
	SourceMemory   = "memory"
	SourceBigQuery = "bigquery"
	SourcePostgres = "postgres"
)

type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Conversation
	SessionTTLSeconds    int           `env:"SESSION_TTL_SECONDS" envDefault:"3600"`
	MaxHistoryTurns      int           `env:"MAX_HISTORY_TURNS" envDefault:"20"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	// Rows
	RowSource     string `env:"ROW_SOURCE" envDefault:"memory"`
	DatasetURI    string `env:"DATASET_URI"`
	SyntheticRows int    `env:"SYNTHETIC_ROWS" envDefault:"5000"`
	SyntheticSeed int64  `env:"SYNTHETIC_SEED" envDefault:"42"`

	// BigQuery
	BQProject string `env:"BQ_PROJECT" envDefault:"txn-insights"`
	BQDataset string `env:"BQ_DATASET" envDefault:"analytics"`
	BQTable   string `env:"BQ_TABLE" envDefault:"transactions"`

	// Postgres
	DatabaseURL string `env:"DATABASE_URL"`

	// Rendering
	Renderer      string        `env:"RENDERER" envDefault:"template"`
	GeminiModel   string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIModel   string        `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	RenderTimeout time.Duration `env:"RENDER_TIMEOUT" envDefault:"20s"`

	// Storage and jobs
	GCSBucket  string `env:"GCS_BUCKET"`
	JobWorkers int    `env:"JOB_WORKERS" envDefault:"2"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads settings from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.RowSource {
	case SourceMemory:
	case SourceBigQuery:
		if c.BQProject == "" || c.BQDataset == "" || c.BQTable == "" {
			return fmt.Errorf("validate config: ROW_SOURCE=bigquery needs BQ_PROJECT, BQ_DATASET and BQ_TABLE")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("validate config: ROW_SOURCE=postgres needs DATABASE_URL")
		}
	default:
		return fmt.Errorf("validate config: unknown ROW_SOURCE %q", c.RowSource)
	}

	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("validate config: SESSION_TTL_SECONDS must be positive, got %d", c.SessionTTLSeconds)
	}
	if c.MaxHistoryTurns <= 0 {
		return fmt.Errorf("validate config: MAX_HISTORY_TURNS must be positive, got %d", c.MaxHistoryTurns)
	}
	return nil
}

// SessionTTL is SESSION_TTL_SECONDS as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
