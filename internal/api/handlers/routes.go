package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/txn-insights/internal/api/middleware"
)

// Router wires the handlers onto a ServeMux.
type Router struct {
	Query    *QueryHandler
	Datasets *DatasetsHandler
	Jobs     *JobsHandler
	// Metrics defaults to promhttp.Handler().
	Metrics http.Handler
	Now     func() time.Time
}

func methodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// Mux builds the route table.
func (rt Router) Mux() *http.ServeMux {
	if rt.Metrics == nil {
		rt.Metrics = promhttp.Handler()
	}
	if rt.Now == nil {
		rt.Now = time.Now
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.Query.Query(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		id, action, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
		if id == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Session ID is required")
			return
		}

		switch {
		case action == "history" && r.Method == http.MethodGet:
			rt.Query.History(w, r, id)
		case action == "reset" && r.Method == http.MethodPost:
			rt.Query.Reset(w, r, id)
		case action == "" && r.Method == http.MethodDelete:
			rt.Query.End(w, r, id)
		case action == "" || action == "history" || action == "reset":
			methodNotAllowed(w)
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	mux.HandleFunc("/api/supported-entities", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Query.SupportedEntities(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/example-queries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Query.ExampleQueries(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/datasets/load", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rt.Datasets.Load(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			rt.Jobs.ListJobs(w, r)
		} else {
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		rt.Jobs.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   rt.Now().Format(time.RFC3339),
		})
	})

	mux.Handle("/metrics", rt.Metrics)

	return mux
}
