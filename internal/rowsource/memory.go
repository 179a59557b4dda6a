package rowsource

import (
	"context"
	"iter"
	"sync"

	"github.com/dvloznov/txn-insights/internal/domain"
)

// Memory is an in-memory dataset. It is safe for concurrent use; Fetch
// iterates over the snapshot taken when iteration starts.
type Memory struct {
	mu      sync.RWMutex
	records []domain.TransactionRecord
}

// NewMemory creates a dataset holding a copy of records.
func NewMemory(records []domain.TransactionRecord) *Memory {
	return &Memory{records: append([]domain.TransactionRecord(nil), records...)}
}

// Fetch implements Source.
func (m *Memory) Fetch(ctx context.Context, filter domain.RowFilter) iter.Seq2[domain.TransactionRecord, error] {
	return func(yield func(domain.TransactionRecord, error) bool) {
		m.mu.RLock()
		snapshot := m.records
		m.mu.RUnlock()

		for _, rec := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(domain.TransactionRecord{}, err)
				return
			}
			if !filter.Match(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Write implements Sink by appending.
func (m *Memory) Write(ctx context.Context, records []domain.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// copy on write so running iterations keep their snapshot
	next := make([]domain.TransactionRecord, 0, len(m.records)+len(records))
	next = append(next, m.records...)
	m.records = append(next, records...)
	return nil
}

// Replace implements Replacer.
func (m *Memory) Replace(ctx context.Context, records []domain.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append([]domain.TransactionRecord(nil), records...)
	return nil
}

// Len returns the number of rows held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

var (
	_ Source   = (*Memory)(nil)
	_ Sink     = (*Memory)(nil)
	_ Replacer = (*Memory)(nil)
)
