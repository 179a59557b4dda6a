package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/txn-insights/internal/domain"
	"github.com/dvloznov/txn-insights/internal/insight"
	"github.com/dvloznov/txn-insights/internal/jobs"
	"github.com/dvloznov/txn-insights/internal/jobs/inmemory"
)

type mockConversations struct {
	ProcessTurnFunc  func(ctx context.Context, sessionID, query string) (insight.TurnResult, error)
	SessionFunc      func(ctx context.Context, sessionID string) (domain.Session, error)
	ResetSessionFunc func(ctx context.Context, sessionID string) error
	EndSessionFunc   func(ctx context.Context, sessionID string) error
}

func (m *mockConversations) ProcessTurn(ctx context.Context, sessionID, query string) (insight.TurnResult, error) {
	return m.ProcessTurnFunc(ctx, sessionID, query)
}

func (m *mockConversations) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return m.SessionFunc(ctx, sessionID)
}

func (m *mockConversations) ResetSession(ctx context.Context, sessionID string) error {
	return m.ResetSessionFunc(ctx, sessionID)
}

func (m *mockConversations) EndSession(ctx context.Context, sessionID string) error {
	return m.EndSessionFunc(ctx, sessionID)
}

func (m *mockConversations) Vocabulary() insight.Vocabulary {
	return insight.Vocabulary{Categories: []string{"Food", "Travel"}, States: []string{"Delhi"}}
}

func (m *mockConversations) ExampleQueries() []insight.ExampleQuery {
	return []insight.ExampleQuery{{Query: "What's the fraud rate for Entertainment?", Intent: domain.IntentRisk}}
}

type mockPublisher struct {
	PublishLoadDatasetFunc func(ctx context.Context, job *jobs.LoadDatasetJob) error
}

func (m *mockPublisher) PublishLoadDataset(ctx context.Context, job *jobs.LoadDatasetJob) error {
	return m.PublishLoadDatasetFunc(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

var notFound = fmt.Errorf("store: %w", domain.ErrSessionNotFound)

func newTestRouter(conv *mockConversations, pub *mockPublisher, store *inmemory.Store) http.Handler {
	if store == nil {
		store = inmemory.NewStore()
	}
	rt := Router{
		Query:    NewQueryHandler(conv, zerolog.Nop()),
		Datasets: NewDatasetsHandler(pub, zerolog.Nop()),
		Jobs:     NewJobsHandler(store, zerolog.Nop()),
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics\n")) }),
		Now:      func() time.Time { return time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC) },
	}
	return rt.Mux()
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Code != http.StatusNoContent {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decoding body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func TestQuery(t *testing.T) {
	var gotSession, gotQuery string
	conv := &mockConversations{
		ProcessTurnFunc: func(_ context.Context, sessionID, query string) (insight.TurnResult, error) {
			gotSession, gotQuery = sessionID, query
			switch query {
			case "unknown session":
				return insight.TurnResult{}, notFound
			case "   ":
				return insight.TurnResult{}, fmt.Errorf("ProcessTurn: %w", domain.ErrEmptyQuery)
			case "boom":
				return insight.TurnResult{}, errors.New("bigquery: backend error")
			}
			return insight.TurnResult{SessionID: "s-1", Query: query, Intent: domain.IntentRisk, Confidence: 0.8}, nil
		},
	}
	h := newTestRouter(conv, nil, nil)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantField  string
		wantValue  any
	}{
		{"answer", http.MethodPost, `{"query":"fraud rate in Delhi","session_id":"s-1"}`, http.StatusOK, "intent", "risk"},
		{"missing query", http.MethodPost, `{"session_id":"s-1"}`, http.StatusBadRequest, "error", "query is required"},
		{"unknown field", http.MethodPost, `{"question":"hi"}`, http.StatusBadRequest, "error", "Invalid request body"},
		{"not json", http.MethodPost, `query=hi`, http.StatusBadRequest, "error", "Invalid request body"},
		{"query too long", http.MethodPost, `{"query":"` + strings.Repeat("a", 501) + `"}`, http.StatusBadRequest, "error", "query must be at most 500 characters"},
		{"session not found", http.MethodPost, `{"query":"unknown session","session_id":"gone"}`, http.StatusNotFound, "error", "Session not found"},
		{"blank query", http.MethodPost, `{"query":"   "}`, http.StatusBadRequest, "error", "query is required"},
		{"backend error", http.MethodPost, `{"query":"boom"}`, http.StatusInternalServerError, "error", "Failed to answer query"},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, "error", "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, h, tt.method, "/api/query", tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
			if body[tt.wantField] != tt.wantValue {
				t.Errorf("%s = %v, want %v", tt.wantField, body[tt.wantField], tt.wantValue)
			}
		})
	}

	do(t, h, http.MethodPost, "/api/query", `{"query":"fraud rate in Delhi","session_id":"s-9"}`)
	if gotSession != "s-9" || gotQuery != "fraud rate in Delhi" {
		t.Errorf("service got (%q, %q)", gotSession, gotQuery)
	}
}

func TestSessions(t *testing.T) {
	ts := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	var reset, ended []string
	conv := &mockConversations{
		SessionFunc: func(_ context.Context, id string) (domain.Session, error) {
			if id != "s-1" {
				return domain.Session{}, notFound
			}
			return domain.Session{
				ID:        id,
				CreatedAt: ts,
				Turns: []domain.ConversationTurn{
					{Timestamp: ts, RawQuery: "fraud rate in Delhi", Intent: domain.IntentRisk},
					{Timestamp: ts, RawQuery: "what about Punjab", Intent: domain.IntentRisk, FollowUp: true},
				},
			}, nil
		},
		ResetSessionFunc: func(_ context.Context, id string) error {
			if id != "s-1" {
				return notFound
			}
			reset = append(reset, id)
			return nil
		},
		EndSessionFunc: func(_ context.Context, id string) error {
			if id != "s-1" {
				return notFound
			}
			ended = append(ended, id)
			return nil
		},
	}
	h := newTestRouter(conv, nil, nil)

	status, body := do(t, h, http.MethodGet, "/api/sessions/s-1/history", "")
	if status != http.StatusOK || body["count"] != float64(2) {
		t.Errorf("history: status = %d, body = %v", status, body)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"history unknown", http.MethodGet, "/api/sessions/nope/history", http.StatusNotFound},
		{"reset", http.MethodPost, "/api/sessions/s-1/reset", http.StatusOK},
		{"reset unknown", http.MethodPost, "/api/sessions/nope/reset", http.StatusNotFound},
		{"end", http.MethodDelete, "/api/sessions/s-1", http.StatusNoContent},
		{"end unknown", http.MethodDelete, "/api/sessions/nope", http.StatusNotFound},
		{"reset via get", http.MethodGet, "/api/sessions/s-1/reset", http.StatusMethodNotAllowed},
		{"unknown action", http.MethodGet, "/api/sessions/s-1/export", http.StatusNotFound},
		{"missing id", http.MethodGet, "/api/sessions/", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, h, tt.method, tt.path, "")
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
		})
	}

	if len(reset) != 1 || len(ended) != 1 {
		t.Errorf("reset = %v, ended = %v", reset, ended)
	}
}

func TestDatasetsAndJobs(t *testing.T) {
	store := inmemory.NewStore()
	pub := &mockPublisher{
		PublishLoadDatasetFunc: func(ctx context.Context, job *jobs.LoadDatasetJob) error {
			if job.URI == "gs://broken/x.csv" {
				return errors.New("queue is closed")
			}
			job.JobID = "job-1"
			job.Status = jobs.JobStatusPending
			job.CreatedAt = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
			return store.SaveJob(ctx, job)
		},
	}
	h := newTestRouter(&mockConversations{}, pub, store)

	status, body := do(t, h, http.MethodPost, "/api/datasets/load", `{"uri":"gs://data/upi.csv"}`)
	if status != http.StatusAccepted || body["job_id"] != "job-1" || body["status"] != "pending" {
		t.Fatalf("load: status = %d, body = %v", status, body)
	}

	if status, body := do(t, h, http.MethodPost, "/api/datasets/load", `{}`); status != http.StatusBadRequest || body["error"] != "uri is required" {
		t.Errorf("load without uri: status = %d, body = %v", status, body)
	}
	if status, _ := do(t, h, http.MethodPost, "/api/datasets/load", `{"uri":"gs://broken/x.csv"}`); status != http.StatusInternalServerError {
		t.Errorf("publish failure: status = %d", status)
	}

	status, body = do(t, h, http.MethodGet, "/api/jobs/job-1", "")
	if status != http.StatusOK || body["uri"] != "gs://data/upi.csv" {
		t.Errorf("get job: status = %d, body = %v", status, body)
	}

	status, body = do(t, h, http.MethodGet, "/api/jobs?uri=gs://data/upi.csv&limit=5", "")
	if status != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("list jobs: status = %d, body = %v", status, body)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"unknown job", http.MethodGet, "/api/jobs/nope", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/jobs?limit=ten", http.StatusBadRequest},
		{"negative offset", http.MethodGet, "/api/jobs?offset=-1", http.StatusBadRequest},
		{"load via get", http.MethodGet, "/api/datasets/load", http.StatusMethodNotAllowed},
		{"jobs via post", http.MethodPost, "/api/jobs", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, body := do(t, h, tt.method, tt.path, ""); status != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %v)", status, tt.wantStatus, body)
			}
		})
	}
}

func TestDiscoveryEndpoints(t *testing.T) {
	h := newTestRouter(&mockConversations{}, nil, nil)

	status, body := do(t, h, http.MethodGet, "/api/supported-entities", "")
	if status != http.StatusOK {
		t.Fatalf("supported-entities: status = %d", status)
	}
	if cats, _ := body["categories"].([]any); len(cats) != 2 {
		t.Errorf("categories = %v", body["categories"])
	}

	status, body = do(t, h, http.MethodGet, "/api/example-queries", "")
	if status != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("example-queries: status = %d, body = %v", status, body)
	}

	status, body = do(t, h, http.MethodGet, "/health", "")
	if status != http.StatusOK || body["status"] != "healthy" || body["time"] != "2024-03-20T12:00:00Z" {
		t.Errorf("health: status = %d, body = %v", status, body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "# metrics") {
		t.Errorf("metrics: status = %d, body = %q", rec.Code, rec.Body.String())
	}
}
