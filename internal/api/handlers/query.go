// Package handlers implements the HTTP endpoints of the insights API.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-insights/internal/api/middleware"
	"github.com/dvloznov/txn-insights/internal/domain"
	"github.com/dvloznov/txn-insights/internal/insight"
	"github.com/dvloznov/txn-insights/internal/logger"
)

// Conversations is the part of insight.Service the HTTP layer uses.
type Conversations interface {
	ProcessTurn(ctx context.Context, sessionID, query string) (insight.TurnResult, error)
	Session(ctx context.Context, sessionID string) (domain.Session, error)
	ResetSession(ctx context.Context, sessionID string) error
	EndSession(ctx context.Context, sessionID string) error
	Vocabulary() insight.Vocabulary
	ExampleQueries() []insight.ExampleQuery
}

var _ Conversations = (*insight.Service)(nil)

// QueryHandler handles questions and session endpoints.
type QueryHandler struct {
	svc Conversations
	log zerolog.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(svc Conversations, log zerolog.Logger) *QueryHandler {
	return &QueryHandler{
		svc: svc,
		log: log,
	}
}

type queryRequest struct {
	Query     string `json:"query" validate:"required,max=500"`
	SessionID string `json:"session_id" validate:"omitempty,max=64"`
}

// Query handles POST /api/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(w, r, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.ProcessTurn(r.Context(), req.SessionID, req.Query)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to answer query")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res)
}

// History handles GET /api/sessions/{id}/history
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, err := h.svc.Session(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to load history")
		return
	}

	turns := sess.Turns
	if turns == nil {
		turns = []domain.ConversationTurn{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id":        sess.ID,
		"created_at":        sess.CreatedAt,
		"last_updated_at":   sess.LastUpdatedAt,
		"resolved_entities": sess.Resolved,
		"turns":             turns,
		"count":             len(turns),
	})
}

// Reset handles POST /api/sessions/{id}/reset
func (h *QueryHandler) Reset(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.svc.ResetSession(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, r, err, "Failed to reset session")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     "reset",
	})
}

// End handles DELETE /api/sessions/{id}
func (h *QueryHandler) End(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.svc.EndSession(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, r, err, "Failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SupportedEntities handles GET /api/supported-entities
func (h *QueryHandler) SupportedEntities(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.svc.Vocabulary())
}

// ExampleQueries handles GET /api/example-queries
func (h *QueryHandler) ExampleQueries(w http.ResponseWriter, r *http.Request) {
	examples := h.svc.ExampleQueries()
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"examples": examples,
		"count":    len(examples),
	})
}

func (h *QueryHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case insight.IsNotFound(err):
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, domain.ErrEmptyQuery):
		middleware.WriteError(w, http.StatusBadRequest, "query is required")
	default:
		log := h.log
		if id := middleware.RequestIDFromContext(r.Context()); id != "" {
			log = logger.FromContext(r.Context())
		}
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}
