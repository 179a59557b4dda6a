package domain

import "errors"

var (
	// ErrSessionNotFound is returned for unknown, ended or expired sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnresolvedEntity marks a dimension phrase whose word is not in the catalog.
	// It is logged, never returned to callers.
	ErrUnresolvedEntity = errors.New("unresolved entity")
	// ErrRendererUnavailable is wrapped by renderers that cannot produce text.
	ErrRendererUnavailable = errors.New("renderer unavailable")
	// ErrEmptyQuery is returned when the question has no content.
	ErrEmptyQuery = errors.New("empty query")
)
