package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/txn-insights/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func turn(query string, category string) domain.ConversationTurn {
	return domain.ConversationTurn{
		RawQuery: query,
		Intent:   domain.IntentDescriptive,
		Entities: domain.EntitySet{Category: category},
	}
}

func TestStore_CreateAndAppend(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Hour, 20)

	id, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.AppendTurn(ctx, id, turn("q1", "Food")); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := store.AppendTurn(ctx, id, turn("q2", "Travel")); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	turns, err := store.Context(ctx, id)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if len(turns) != 2 || turns[0].RawQuery != "q1" || turns[1].RawQuery != "q2" {
		t.Errorf("unexpected turns %+v", turns)
	}

	resolved, err := store.ResolvedEntities(ctx, id)
	if err != nil {
		t.Fatalf("ResolvedEntities: %v", err)
	}
	if resolved.Category != "Travel" {
		t.Errorf("resolved category = %q, want Travel", resolved.Category)
	}
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Hour, 20)
	id, _ := store.Create(ctx)
	_ = store.AppendTurn(ctx, id, turn("q1", "Food"))

	turns, _ := store.Context(ctx, id)
	turns[0].RawQuery = "mutated"

	again, _ := store.Context(ctx, id)
	if again[0].RawQuery != "q1" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestStore_EvictsOldestBeyondMaxHistory(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Hour, 3)
	id, _ := store.Create(ctx)

	for i := 1; i <= 5; i++ {
		if err := store.AppendTurn(ctx, id, turn(fmt.Sprintf("q%d", i), "Food")); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	turns, _ := store.Context(ctx, id)
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want 3", len(turns))
	}
	if turns[0].RawQuery != "q3" || turns[2].RawQuery != "q5" {
		t.Errorf("unexpected window %q..%q", turns[0].RawQuery, turns[2].RawQuery)
	}
}

func TestStore_ResetKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewStore(time.Hour, 20, WithClock(clock.Now))
	id, _ := store.Create(ctx)
	created := clock.Now()

	clock.Advance(time.Minute)
	_ = store.AppendTurn(ctx, id, turn("q1", "Food"))

	if err := store.Reset(ctx, id); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	sess, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after reset: %v", err)
	}
	if sess.ID != id || !sess.CreatedAt.Equal(created) {
		t.Errorf("identity changed: %+v", sess)
	}
	if len(sess.Turns) != 0 || !sess.Resolved.IsEmpty() {
		t.Errorf("reset left state behind: %+v", sess)
	}
}

func TestStore_End(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Hour, 20)
	id, _ := store.Create(ctx)

	if err := store.End(ctx, id); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("Get after End: err = %v, want ErrSessionNotFound", err)
	}
	if err := store.End(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("second End: err = %v, want ErrSessionNotFound", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0", store.Len())
	}
}

func TestStore_UnknownSession(t *testing.T) {
	store := NewStore(time.Hour, 20)

	_, err := store.Context(context.Background(), "missing")
	if !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewStore(10*time.Minute, 20, WithClock(clock.Now))
	id, _ := store.Create(ctx)

	// every access refreshes the idle timer
	clock.Advance(9 * time.Minute)
	if _, err := store.Get(ctx, id); err != nil {
		t.Fatalf("Get within TTL: %v", err)
	}
	clock.Advance(9 * time.Minute)
	if _, err := store.Get(ctx, id); err != nil {
		t.Fatalf("Get within refreshed TTL: %v", err)
	}

	clock.Advance(11 * time.Minute)
	if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("Get after TTL: err = %v, want ErrSessionNotFound", err)
	}

	// still held until swept
	if store.Len() != 1 {
		t.Errorf("Len before sweep = %d, want 1", store.Len())
	}
	if n := store.Sweep(clock.Now()); n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if store.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", store.Len())
	}
}

func TestStore_SweepKeepsFreshSessions(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewStore(10*time.Minute, 20, WithClock(clock.Now))

	stale, _ := store.Create(ctx)
	clock.Advance(8 * time.Minute)
	fresh, _ := store.Create(ctx)
	clock.Advance(5 * time.Minute)

	if n := store.Sweep(clock.Now()); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, err := store.Get(ctx, fresh); err != nil {
		t.Errorf("fresh session lost: %v", err)
	}
	if _, err := store.Get(ctx, stale); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("stale session: err = %v, want ErrSessionNotFound", err)
	}
}

func TestStore_ExecErrorLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Hour, 20)
	id, _ := store.Create(ctx)

	boom := errors.New("boom")
	_, err := store.Exec(ctx, id, func(ctx context.Context, sess domain.Session) (domain.ConversationTurn, error) {
		return domain.ConversationTurn{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	turns, _ := store.Context(ctx, id)
	if len(turns) != 0 {
		t.Errorf("expected no turns, got %d", len(turns))
	}
}

func TestStore_ExecSerialisesTurns(t *testing.T) {
	ctx := context.Background()
	store := NewStore(time.Hour, 1000)
	id, _ := store.Create(ctx)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Exec(ctx, id, func(ctx context.Context, sess domain.Session) (domain.ConversationTurn, error) {
				// each turn records how many turns it saw
				return domain.ConversationTurn{RawQuery: fmt.Sprintf("%d", len(sess.Turns))}, nil
			})
			if err != nil {
				t.Errorf("Exec: %v", err)
			}
		}()
	}
	wg.Wait()

	turns, _ := store.Context(ctx, id)
	if len(turns) != workers {
		t.Fatalf("len(turns) = %d, want %d", len(turns), workers)
	}
	for i, tr := range turns {
		if tr.RawQuery != fmt.Sprintf("%d", i) {
			t.Fatalf("turn %d saw %s prior turns; updates interleaved", i, tr.RawQuery)
		}
	}
}

func TestRunSweeper_RejectsBadInterval(t *testing.T) {
	store := NewStore(time.Hour, 20)
	if err := store.RunSweeper(context.Background(), 0); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestRunSweeper_StopsOnCancel(t *testing.T) {
	store := NewStore(time.Hour, 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- store.RunSweeper(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunSweeper returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunSweeper did not stop")
	}
}
