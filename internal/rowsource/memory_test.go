package rowsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/txn-insights/internal/domain"
)

func sample() []domain.TransactionRecord {
	ts := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	return []domain.TransactionRecord{
		{ID: "t1", Timestamp: ts, Category: "Food", Region: "Delhi", Amount: decimal.NewFromInt(100)},
		{ID: "t2", Timestamp: ts, Category: "Travel", Region: "Delhi", Amount: decimal.NewFromInt(200)},
		{ID: "t3", Timestamp: ts.Add(12 * time.Hour), Category: "Food", Region: "Punjab", Amount: decimal.NewFromInt(300)},
	}
}

func TestMemory_FetchFilters(t *testing.T) {
	m := NewMemory(sample())

	tests := []struct {
		name   string
		filter domain.RowFilter
		want   []string
	}{
		{"no filter", domain.RowFilter{}, []string{"t1", "t2", "t3"}},
		{"category", domain.RowFilter{Category: "Food"}, []string{"t1", "t3"}},
		{"conjunction", domain.RowFilter{Category: "Food", Region: "Delhi"}, []string{"t1"}},
		{"hours", domain.RowFilter{Hours: &domain.HourRange{From: 21, To: 5}}, []string{"t3"}},
		{"nothing", domain.RowFilter{Region: "Goa"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Collect(m.Fetch(context.Background(), tt.filter))
			if err != nil {
				t.Fatalf("Collect: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("row %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemory_FetchStopsOnCancel(t *testing.T) {
	m := NewMemory(sample())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Collect(m.Fetch(ctx, domain.RowFilter{}))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMemory_WriteAndReplace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	if err := m.Write(ctx, sample()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := m.Write(ctx, sample()[:1]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if m.Len() != 4 {
		t.Errorf("Len = %d, want 4", m.Len())
	}

	if err := m.Replace(ctx, sample()[:2]); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len after Replace = %d, want 2", m.Len())
	}
}

func TestMemory_IterationKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(sample())

	n := 0
	for _, err := range m.Fetch(ctx, domain.RowFilter{}) {
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if n == 0 {
			_ = m.Replace(ctx, nil)
		}
		n++
	}
	if n != 3 {
		t.Errorf("iterated %d rows, want 3", n)
	}
}
