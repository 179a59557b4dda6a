package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-insights/internal/domain"
	"github.com/dvloznov/txn-insights/internal/rowsource"
)

// Opener reads objects from remote storage. gcsuploader.GCSStorageService
// satisfies it.
type Opener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

const (
	schemeGCS       = "gs"
	schemeSynthetic = "synthetic"

	// maxSkippedInReport caps how many row errors a Report carries.
	maxSkippedInReport = 20
)

// Report summarises one load.
type Report struct {
	URI     string   `json:"uri"`
	Read    int      `json:"rows_read"`
	Loaded  int      `json:"rows_loaded"`
	Skipped int      `json:"rows_skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Loader pulls a dataset from a URI and writes it into a sink. When the sink
// is also a rowsource.Replacer the dataset replaces whatever was there.
type Loader struct {
	sink   rowsource.Sink
	opener Opener
	log    zerolog.Logger
	now    func() time.Time
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOpener enables gs:// URIs.
func WithOpener(o Opener) LoaderOption {
	return func(l *Loader) { l.opener = o }
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(log zerolog.Logger) LoaderOption {
	return func(l *Loader) { l.log = log }
}

// WithLoaderClock sets the time source used as the end of synthetic data.
func WithLoaderClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

// NewLoader creates a Loader writing into sink.
func NewLoader(sink rowsource.Sink, opts ...LoaderOption) *Loader {
	l := &Loader{
		sink: sink,
		log:  zerolog.Nop(),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads uri and stores the rows. Supported forms:
//
//	gs://bucket/path/file.csv
//	synthetic://?rows=5000&seed=42
//	/local/path/file.csv
func (l *Loader) Load(ctx context.Context, uri string) (Report, error) {
	report := Report{URI: uri}

	records, skipped, err := l.read(ctx, uri)
	if err != nil {
		return report, fmt.Errorf("Load: %w", err)
	}

	report.Read = len(records) + len(skipped)
	report.Skipped = len(skipped)
	for i, rowErr := range skipped {
		if i == maxSkippedInReport {
			report.Errors = append(report.Errors, fmt.Sprintf("... and %d more", len(skipped)-i))
			break
		}
		report.Errors = append(report.Errors, rowErr.Error())
	}

	if len(records) == 0 {
		return report, fmt.Errorf("Load: %s contained no usable rows", uri)
	}

	if r, ok := l.sink.(rowsource.Replacer); ok {
		err = r.Replace(ctx, records)
	} else {
		err = l.sink.Write(ctx, records)
	}
	if err != nil {
		return report, fmt.Errorf("Load: storing rows: %w", err)
	}
	report.Loaded = len(records)

	l.log.Info().
		Str("uri", uri).
		Int("loaded", report.Loaded).
		Int("skipped", report.Skipped).
		Msg("Dataset loaded")

	return report, nil
}

func (l *Loader) read(ctx context.Context, uri string) ([]domain.TransactionRecord, []RowError, error) {
	scheme, _, _ := strings.Cut(uri, "://")
	switch {
	case scheme == schemeSynthetic:
		opts, err := ParseSyntheticURI(uri)
		if err != nil {
			return nil, nil, err
		}
		if opts.End.IsZero() {
			opts.End = l.now()
		}
		return Generate(opts), nil, nil

	case scheme == schemeGCS:
		if l.opener == nil {
			return nil, nil, errors.New("gs:// URIs need a storage client")
		}
		rc, err := l.opener.Open(ctx, uri)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", uri, err)
		}
		defer rc.Close()
		return readBatch(rc)

	case strings.Contains(uri, "://"):
		return nil, nil, fmt.Errorf("unsupported URI scheme %q", scheme)

	default:
		f, err := os.Open(uri)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %s: %w", uri, err)
		}
		defer f.Close()
		return readBatch(f)
	}
}

func readBatch(r io.Reader) ([]domain.TransactionRecord, []RowError, error) {
	batch, err := ReadCSV(r)
	if err != nil {
		return nil, nil, err
	}
	return batch.Records, batch.Skipped, nil
}

// ParseSyntheticURI reads rows and seed from a synthetic:// URI. Missing
// values fall back to 5000 rows and seed 42.
func ParseSyntheticURI(uri string) (SyntheticOptions, error) {
	opts := SyntheticOptions{Rows: 5000, Seed: 42}

	u, err := url.Parse(uri)
	if err != nil {
		return opts, fmt.Errorf("parsing %q: %w", uri, err)
	}
	if u.Scheme != schemeSynthetic {
		return opts, fmt.Errorf("not a synthetic URI: %q", uri)
	}

	q := u.Query()
	if v := q.Get("rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid rows %q", v)
		}
		opts.Rows = n
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid seed %q", v)
		}
		opts.Seed = n
	}
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid days %q", v)
		}
		opts.Days = n
	}
	return opts, nil
}

// SyntheticURI builds the URI ParseSyntheticURI reads.
func SyntheticURI(rows int, seed int64) string {
	return fmt.Sprintf("%s://?rows=%d&seed=%d", schemeSynthetic, rows, seed)
}
