package api

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/publish"
)

type JSON map[string]any

// Options carries the server-wide defaults. A nil Store disables publishing.
type Options struct {
	Config  config.Config
	Store   publish.Store
	Metrics *Metrics
	Logger  *slog.Logger
}

func RegisterRoutes(r *mux.Router, db *sql.DB, opts Options) {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &Handler{db: db, cfg: opts.Config, store: opts.Store, metrics: opts.Metrics, log: opts.Logger}

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	// Runs
	r.HandleFunc("/runs", h.PostRun).Methods(http.MethodPost)
	r.HandleFunc("/runs", h.ListRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}", h.GetRun).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/result", h.GetResult).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/rows", h.GetRows).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/diagnostics", h.GetDiagnostics).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/key-categories", h.GetKeyCategories).Methods(http.MethodGet)
	r.HandleFunc("/runs/{id}/publish", h.PostPublish).Methods(http.MethodPost)
}

type Handler struct {
	db      *sql.DB
	cfg     config.Config
	store   publish.Store
	metrics *Metrics
	log     *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
