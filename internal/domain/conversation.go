package domain

import "time"

// ConversationTurn is one answered question. Turns are stored by value and
// never modified after they are appended to a session.
type ConversationTurn struct {
	Timestamp     time.Time `json:"timestamp"`
	RawQuery      string    `json:"raw_query"`
	Intent        Intent    `json:"intent"`
	Entities      EntitySet `json:"entities"`
	FollowUp      bool      `json:"follow_up"`
	TopN          int       `json:"top_n,omitempty"`
	AIResponse    string    `json:"ai_response"`
	ResultSummary string    `json:"result_summary"`
}

// Session is a snapshot of one conversation.
type Session struct {
	ID            string             `json:"session_id"`
	CreatedAt     time.Time          `json:"created_at"`
	LastUpdatedAt time.Time          `json:"last_updated_at"`
	Turns         []ConversationTurn `json:"turns"`
	Resolved      EntitySet          `json:"resolved_entities"`
	TTL           time.Duration      `json:"ttl"`
}

// LastTurn returns the most recent turn, if any.
func (s *Session) LastTurn() (ConversationTurn, bool) {
	if len(s.Turns) == 0 {
		return ConversationTurn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}
