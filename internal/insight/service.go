// Package insight answers conversational questions about transactions. It
// runs classification, extraction, follow-up resolution, aggregation and
// rendering for one turn under the session's lock.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-insights/internal/analytics"
	"github.com/dvloznov/txn-insights/internal/catalog"
	"github.com/dvloznov/txn-insights/internal/conversation"
	"github.com/dvloznov/txn-insights/internal/domain"
	"github.com/dvloznov/txn-insights/internal/nlp"
	"github.com/dvloznov/txn-insights/internal/render"
	"github.com/dvloznov/txn-insights/internal/rowsource"
)

// TurnResult is the answer to one question.
type TurnResult struct {
	SessionID        string           `json:"session_id"`
	Query            string           `json:"query"`
	Intent           domain.Intent    `json:"intent"`
	ResolvedEntities domain.EntitySet `json:"resolved_entities"`
	FollowUp         bool             `json:"follow_up"`
	Plan             analytics.Plan   `json:"plan"`
	Result           analytics.Result `json:"result"`
	Explanation      string           `json:"explanation"`
	Insights         []string         `json:"insights"`
	Confidence       float64          `json:"confidence"`
	Timestamp        time.Time        `json:"timestamp"`
}

// Service is safe for concurrent use. Turns on one session are serialised
// by the store; turns on different sessions run in parallel.
type Service struct {
	catalog    *catalog.Catalog
	classifier *nlp.Classifier
	extractor  *nlp.Extractor
	resolver   *nlp.Resolver
	store      conversation.Store
	rows       rowsource.Source
	renderer   render.Renderer
	now        func() time.Time
	log        zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer sets the explanation renderer. Anything other than the
// template is wrapped so its failures fall back to the template.
func WithRenderer(r render.Renderer) Option {
	return func(s *Service) { s.renderer = r }
}

// WithCatalog replaces the default vocabulary.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithClock sets the time source used for time windows and turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService wires the pipeline over a session store and a row source.
func NewService(store conversation.Store, rows rowsource.Source, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog.Default(),
		store:    store,
		rows:     rows,
		renderer: render.NewTemplate(),
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.classifier = nlp.NewClassifier()
	s.extractor = nlp.NewExtractor(s.catalog)
	s.resolver = nlp.NewResolver()

	switch s.renderer.(type) {
	case *render.Template, *render.Fallback:
	default:
		s.renderer = render.NewFallback("custom", s.renderer, 0, s.log)
	}
	return s
}

// ProcessTurn answers query in the given session. An empty sessionID starts
// a new session; an unknown or expired one returns domain.ErrSessionNotFound.
// Renderer failures never fail the turn.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, query string) (TurnResult, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return TurnResult{}, fmt.Errorf("ProcessTurn: %w", domain.ErrEmptyQuery)
	}

	created := sessionID == ""
	if created {
		id, err := s.store.Create(ctx)
		if err != nil {
			return TurnResult{}, fmt.Errorf("ProcessTurn: creating session: %w", err)
		}
		sessionID = id
	}

	log := s.log.With().Str("session_id", sessionID).Logger()

	var out TurnResult
	_, err := s.store.Exec(ctx, sessionID, func(ctx context.Context, sess domain.Session) (domain.ConversationTurn, error) {
		res, err := s.answer(ctx, log, query, sess)
		if err != nil {
			return domain.ConversationTurn{}, err
		}
		out = res
		return domain.ConversationTurn{
			Timestamp:     res.Timestamp,
			RawQuery:      query,
			Intent:        res.Intent,
			Entities:      res.ResolvedEntities,
			FollowUp:      res.FollowUp,
			TopN:          res.Plan.TopN,
			AIResponse:    res.Explanation,
			ResultSummary: res.Result.Summary,
		}, nil
	})
	if err != nil {
		// nobody holds this id yet
		if created {
			if endErr := s.store.End(context.WithoutCancel(ctx), sessionID); endErr != nil {
				log.Warn().Err(endErr).Msg("Failed to drop new session")
			}
		}
		return TurnResult{}, fmt.Errorf("ProcessTurn: %w", err)
	}

	out.SessionID = sessionID
	turnsTotal.WithLabelValues(string(out.Intent), strconv.FormatBool(out.FollowUp)).Inc()
	turnDuration.Observe(time.Since(start).Seconds())

	log.Info().
		Str("intent", string(out.Intent)).
		Bool("follow_up", out.FollowUp).
		Int64("rows", out.Result.Overall.Count).
		Dur("took", time.Since(start)).
		Msg("Turn answered")
	return out, nil
}

func (s *Service) answer(ctx context.Context, log zerolog.Logger, query string, sess domain.Session) (TurnResult, error) {
	cls := s.classifier.Classify(query)
	ext := s.extractor.Extract(query, cls.Intent)
	for _, phrase := range ext.Unresolved {
		log.Debug().Err(domain.ErrUnresolvedEntity).Str("phrase", phrase).Msg("Ignoring grouping phrase")
	}

	res := s.resolver.Resolve(query, ext, cls, sess)
	log.Debug().
		Str("intent", string(res.Intent)).
		Str("keyword", cls.Keyword).
		Str("cue", res.Cue).
		Interface("entities", res.Entities).
		Msg("Resolved turn")

	plan := analytics.BuildPlan(res.Intent, res.Entities, analytics.WithTopN(res.TopN))

	now := s.now()
	filter, err := plan.RowFilter(now)
	if err != nil {
		return TurnResult{}, fmt.Errorf("compiling filters: %w", err)
	}

	result, err := analytics.Execute(ctx, plan, s.rows.Fetch(ctx, filter), now)
	if err != nil {
		return TurnResult{}, fmt.Errorf("aggregating: %w", err)
	}

	insights := render.Insights(plan, result)
	explanation, err := s.renderer.Render(ctx, render.Input{
		Query:    query,
		Intent:   res.Intent,
		Entities: res.Entities,
		Plan:     plan,
		Result:   result,
		History:  sess.Turns,
		Insights: insights,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Rendering failed, using summary")
		explanation = result.Summary
	}

	return TurnResult{
		Query:            query,
		Intent:           res.Intent,
		ResolvedEntities: res.Entities,
		FollowUp:         res.FollowUp,
		Plan:             plan,
		Result:           result,
		Explanation:      explanation,
		Insights:         insights,
		Confidence:       render.Confidence(result),
		Timestamp:        now,
	}, nil
}

// History returns the session's turns, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	turns, err := s.store.Context(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return turns, nil
}

// Session returns a snapshot of the session.
func (s *Service) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("Session: %w", err)
	}
	return sess, nil
}

// ResetSession forgets the session's turns and resolved entities.
func (s *Service) ResetSession(ctx context.Context, sessionID string) error {
	if err := s.store.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("ResetSession: %w", err)
	}
	s.log.Info().Str("session_id", sessionID).Msg("Session reset")
	return nil
}

// EndSession removes the session.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if err := s.store.End(ctx, sessionID); err != nil {
		return fmt.Errorf("EndSession: %w", err)
	}
	s.log.Info().Str("session_id", sessionID).Msg("Session ended")
	return nil
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound)
}
