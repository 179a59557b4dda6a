package render

import (
	"context"
	"fmt"

	"github.com/dvloznov/txn-insights/internal/domain"
)

// LLM renders explanations by prompting a language model.
type LLM struct {
	name      string
	completer Completer
}

// NewLLM wraps a completer. name labels the model in logs and metrics.
func NewLLM(name string, completer Completer) *LLM {
	return &LLM{name: name, completer: completer}
}

// Name returns the label given to NewLLM.
func (l *LLM) Name() string {
	return l.name
}

// Render implements Renderer. Every failure wraps domain.ErrRendererUnavailable.
func (l *LLM) Render(ctx context.Context, in Input) (string, error) {
	prompt, err := BuildPrompt(in)
	if err != nil {
		return "", fmt.Errorf("Render: %w: %w", domain.ErrRendererUnavailable, err)
	}

	raw, err := l.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("Render: %s completion: %w: %w", l.name, domain.ErrRendererUnavailable, err)
	}

	text := cleanModelText(raw)
	if text == "" {
		return "", fmt.Errorf("Render: %s returned an empty response: %w", l.name, domain.ErrRendererUnavailable)
	}
	return text, nil
}

var _ Renderer = (*LLM)(nil)
