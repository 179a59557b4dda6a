package render

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Renderer kinds accepted by New.
const (
	KindTemplate = "template"
	KindGemini   = "gemini"
	KindOpenAI   = "openai"
)

// Options selects and configures a renderer.
type Options struct {
	Kind         string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
	Timeout      time.Duration
}

// New builds the configured renderer. Model-backed renderers are wrapped in
// a Fallback so callers always get text.
func New(ctx context.Context, opts Options, log zerolog.Logger) (Renderer, error) {
	var completer Completer
	switch opts.Kind {
	case "", KindTemplate:
		return NewTemplate(), nil
	case KindGemini:
		c, err := NewGeminiCompleter(ctx, opts.GeminiAPIKey, opts.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		completer = c
	case KindOpenAI:
		c, err := NewOpenAICompleter(opts.OpenAIAPIKey, opts.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		completer = c
	default:
		return nil, fmt.Errorf("New: unknown renderer %q", opts.Kind)
	}

	log.Info().Str("renderer", opts.Kind).Msg("Language model renderer enabled")
	return NewFallback(opts.Kind, NewLLM(opts.Kind, completer), opts.Timeout, log), nil
}
