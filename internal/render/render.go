// Package render turns a structured turn result into explanation text,
// either with a deterministic template or with a language model.
package render

import (
	"context"

	"github.com/dvloznov/txn-insights/internal/analytics"
	"github.com/dvloznov/txn-insights/internal/domain"
)

// Input is everything a renderer may use to explain one turn.
type Input struct {
	Query    string
	Intent   domain.Intent
	Entities domain.EntitySet
	Plan     analytics.Plan
	Result   analytics.Result
	History  []domain.ConversationTurn
	Insights []string
}

// Renderer produces explanation text for a turn.
type Renderer interface {
	Render(ctx context.Context, in Input) (string, error)
}

// Completer sends one prompt to a language model and returns its reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
