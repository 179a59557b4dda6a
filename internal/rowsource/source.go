// Package rowsource defines how the analytics core reads and writes
// transaction rows. Backends live in internal/infra.
package rowsource

import (
	"context"
	"iter"

	"github.com/dvloznov/txn-insights/internal/domain"
)

// Source streams transactions. Implementations may push the filter down to
// storage; callers still apply RowFilter.Match, so a source is free to
// return a superset.
type Source interface {
	Fetch(ctx context.Context, filter domain.RowFilter) iter.Seq2[domain.TransactionRecord, error]
}

// Sink persists transactions.
type Sink interface {
	Write(ctx context.Context, records []domain.TransactionRecord) error
}

// Replacer swaps the whole dataset atomically.
type Replacer interface {
	Replace(ctx context.Context, records []domain.TransactionRecord) error
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[domain.TransactionRecord, error]) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
