package conversation

import (
	"context"
	"time"

	"github.com/dvloznov/txn-insights/internal/domain"
)

const (
	// DefaultTTL is how long an idle session stays usable.
	DefaultTTL = time.Hour
	// DefaultMaxHistory is how many turns a session keeps.
	DefaultMaxHistory = 20
)

// TurnFunc computes the next turn from a snapshot of the session.
// Returning an error leaves the session untouched.
type TurnFunc func(ctx context.Context, sess domain.Session) (domain.ConversationTurn, error)

// Store holds conversation sessions.
// This abstraction allows for different backends (in-memory, Redis).
type Store interface {
	// Create starts an empty session and returns its ID.
	Create(ctx context.Context) (string, error)

	// Get returns a snapshot of the session.
	Get(ctx context.Context, id string) (domain.Session, error)

	// Context returns the session's turns, oldest first.
	Context(ctx context.Context, id string) ([]domain.ConversationTurn, error)

	// ResolvedEntities returns the entities the last turn was executed with.
	ResolvedEntities(ctx context.Context, id string) (domain.EntitySet, error)

	// AppendTurn adds a turn and makes its entities the resolved snapshot.
	AppendTurn(ctx context.Context, id string, turn domain.ConversationTurn) error

	// Reset clears turns and resolved entities but keeps the session.
	Reset(ctx context.Context, id string) error

	// End removes the session.
	End(ctx context.Context, id string) error

	// Exec runs fn and appends its turn while holding the session's lock,
	// so concurrent turns on one session never interleave.
	Exec(ctx context.Context, id string, fn TurnFunc) (domain.ConversationTurn, error)
}
