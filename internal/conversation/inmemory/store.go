package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-insights/internal/conversation"
	"github.com/dvloznov/txn-insights/internal/domain"
)

// Store is an in-memory implementation of conversation.Store.
// It is safe for concurrent use: the map has one lock and every session has
// its own, so work on different sessions never contends.
// Data is lost on service restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	ttl        time.Duration
	maxHistory int
	now        func() time.Time
	log        zerolog.Logger
}

type entry struct {
	mu      sync.Mutex
	session domain.Session
	gone    bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore creates a store. Non-positive values fall back to the defaults.
func NewStore(ttl time.Duration, maxHistory int, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = conversation.DefaultTTL
	}
	if maxHistory <= 0 {
		maxHistory = conversation.DefaultMaxHistory
	}
	s := &Store{
		sessions:   make(map[string]*entry),
		ttl:        ttl,
		maxHistory: maxHistory,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements conversation.Store.
func (s *Store) Create(ctx context.Context) (string, error) {
	now := s.now()
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = &entry{session: domain.Session{
		ID:            id,
		CreatedAt:     now,
		LastUpdatedAt: now,
		TTL:           s.ttl,
	}}
	return id, nil
}

// Get implements conversation.Store.
func (s *Store) Get(ctx context.Context, id string) (domain.Session, error) {
	var out domain.Session
	err := s.with(id, func(e *entry) error {
		out = snapshot(e.session)
		return nil
	})
	return out, err
}

// Context implements conversation.Store.
func (s *Store) Context(ctx context.Context, id string) ([]domain.ConversationTurn, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

// ResolvedEntities implements conversation.Store.
func (s *Store) ResolvedEntities(ctx context.Context, id string) (domain.EntitySet, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return domain.EntitySet{}, err
	}
	return sess.Resolved, nil
}

// AppendTurn implements conversation.Store.
func (s *Store) AppendTurn(ctx context.Context, id string, turn domain.ConversationTurn) error {
	return s.with(id, func(e *entry) error {
		s.append(e, turn)
		return nil
	})
}

// Reset implements conversation.Store.
func (s *Store) Reset(ctx context.Context, id string) error {
	return s.with(id, func(e *entry) error {
		e.session.Turns = nil
		e.session.Resolved = domain.EntitySet{}
		return nil
	})
}

// End implements conversation.Store.
func (s *Store) End(ctx context.Context, id string) error {
	if err := s.with(id, func(e *entry) error {
		e.gone = true
		return nil
	}); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Exec implements conversation.Store.
func (s *Store) Exec(ctx context.Context, id string, fn conversation.TurnFunc) (domain.ConversationTurn, error) {
	var turn domain.ConversationTurn
	err := s.with(id, func(e *entry) error {
		t, err := fn(ctx, snapshot(e.session))
		if err != nil {
			return err
		}
		s.append(e, t)
		turn = t
		return nil
	})
	return turn, err
}

// Sweep removes every session idle for longer than the TTL and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		// skip sessions that are busy; they are being touched right now
		if !e.mu.TryLock() {
			continue
		}
		if s.expired(e.session, now) {
			e.gone = true
			delete(s.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("RunSweeper: interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.log.Info().Int("evicted", n).Int("active", s.Len()).Msg("Swept expired sessions")
			}
		}
	}
}

// Len returns the number of sessions held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// with locks the session, rejects it if gone or expired, runs fn and
// refreshes the idle timer.
func (s *Store) with(id string, fn func(e *entry) error) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	if e.gone || s.expired(e.session, now) {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}

	if err := fn(e); err != nil {
		return err
	}
	e.session.LastUpdatedAt = s.now()
	return nil
}

func (s *Store) append(e *entry, turn domain.ConversationTurn) {
	e.session.Turns = append(e.session.Turns, turn)
	if over := len(e.session.Turns) - s.maxHistory; over > 0 {
		e.session.Turns = append([]domain.ConversationTurn(nil), e.session.Turns[over:]...)
	}
	e.session.Resolved = turn.Entities
}

func (s *Store) expired(sess domain.Session, now time.Time) bool {
	return now.Sub(sess.LastUpdatedAt) > s.ttl
}

// snapshot copies the session so callers never share the turns slice.
func snapshot(sess domain.Session) domain.Session {
	out := sess
	out.Turns = append([]domain.ConversationTurn(nil), sess.Turns...)
	return out
}

// Ensure Store implements the conversation.Store interface.
var _ conversation.Store = (*Store)(nil)
