// Package httpapi serves the optional ops endpoints used while the watcher runs in loop mode.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crash_watcher/internal/store"
)

// Audit is the read side of the audit store.
type Audit interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	ListPosts(ctx context.Context, limit int) ([]store.Post, error)
	Health(ctx context.Context) error
}

// Router builds HTTP handlers for /ops and /metrics. Audit and Gatherer may be nil.
type Router struct {
	audit    Audit
	gatherer prometheus.Gatherer
	status   func() any
	logger   *slog.Logger
}

func NewRouter(audit Audit, gatherer prometheus.Gatherer, status func() any, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{audit: audit, gatherer: gatherer, status: status, logger: logger}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/status", r.statusHandler)
	mux.HandleFunc("/ops/runs", r.runs)
	mux.HandleFunc("/ops/posts", r.posts)
	if r.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if r.audit != nil {
		if err := r.audit.Health(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) statusHandler(w http.ResponseWriter, req *http.Request) {
	if r.status == nil {
		r.respondJSON(w, map[string]any{})
		return
	}
	r.respondJSON(w, r.status())
}

func (r *Router) runs(w http.ResponseWriter, req *http.Request) {
	if r.audit == nil {
		http.Error(w, "audit store disabled", http.StatusNotFound)
		return
	}
	list, err := r.audit.ListRuns(req.Context(), limitParam(req, 20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	r.respondJSON(w, list)
}

func (r *Router) posts(w http.ResponseWriter, req *http.Request) {
	if r.audit == nil {
		http.Error(w, "audit store disabled", http.StatusNotFound)
		return
	}
	list, err := r.audit.ListPosts(req.Context(), limitParam(req, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	r.respondJSON(w, list)
}

func limitParam(req *http.Request, def int) int {
	n, err := strconv.Atoi(req.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n > 500 {
		return def
	}
	return n
}

func (r *Router) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Warn("write json", "err", err)
	}
}
