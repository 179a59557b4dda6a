package render

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "txn_insights",
	Subsystem: "render",
	Name:      "fallbacks_total",
	Help:      "Explanations rendered by the template because the primary renderer failed",
}, []string{"renderer"})

// Fallback tries a primary renderer and uses the template when it fails.
// Its Render never returns an error.
type Fallback struct {
	name     string
	primary  Renderer
	template *Template
	timeout  time.Duration
	log      zerolog.Logger
}

// NewFallback wraps primary. A positive timeout bounds each primary call.
func NewFallback(name string, primary Renderer, timeout time.Duration, log zerolog.Logger) *Fallback {
	return &Fallback{
		name:     name,
		primary:  primary,
		template: NewTemplate(),
		timeout:  timeout,
		log:      log.With().Str("renderer", name).Logger(),
	}
}

// Render implements Renderer.
func (f *Fallback) Render(ctx context.Context, in Input) (string, error) {
	if f.primary != nil {
		pctx := ctx
		if f.timeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}

		text, err := f.primary.Render(pctx, in)
		if err == nil && text != "" {
			return text, nil
		}
		f.log.Warn().Err(err).Msg("Renderer failed, using template")
		fallbacksTotal.WithLabelValues(f.name).Inc()
	}
	return f.template.render(in), nil
}

var _ Renderer = (*Fallback)(nil)
