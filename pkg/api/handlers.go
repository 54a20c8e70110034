package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/config"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/engine"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/inventory"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/publish"
	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/storage"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

// RunRequest overrides a few server defaults for one run. Zero values keep
// the default.
type RunRequest struct {
	Variant     config.Variant `json:"variant,omitempty"`
	Simulations int            `json:"simulations,omitempty"`
	Seed        *uint64        `json:"seed,omitempty"`
	Totals      *config.Totals `json:"totals,omitempty"`
	Publish     bool           `json:"publish,omitempty"`
	Input       engine.Input   `json:"input"`
}

type RunResponse struct {
	Status      string            `json:"status"`
	RunID       string            `json:"run_id"`
	Run         *storage.RunInfo  `json:"run,omitempty"`
	Total       *engine.Row       `json:"total,omitempty"`
	Published   *publish.Manifest `json:"published,omitempty"`
	Error       string            `json:"error,omitempty"`
	Diagnostics any               `json:"diagnostics,omitempty"`
}

func (h *Handler) runConfig(req RunRequest) (config.Config, error) {
	cfg := h.cfg
	if req.Variant != "" && req.Variant != cfg.Variant {
		if req.Variant != config.VariantIIR && req.Variant != config.VariantNID {
			return cfg, errors.New("variant must be iir or nid")
		}
		base := config.Default(req.Variant)
		base.Workers, base.Seed, base.Publish = cfg.Workers, cfg.Seed, cfg.Publish
		cfg = base
	}
	if req.Simulations != 0 {
		cfg.Simulations = req.Simulations
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Totals != nil {
		cfg.Totals = *req.Totals
	}
	return cfg, cfg.Validate()
}

func (h *Handler) PostRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}
	cfg, err := h.runConfig(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}
	if req.Publish && h.store == nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "publishing is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	start := time.Now()
	res, err := engine.Run(ctx, cfg, req.Input, h.log)
	if err != nil {
		h.metrics.observeRun(storage.StatusFailed, string(cfg.Variant), time.Since(start), 0, 0)
		resp := RunResponse{Status: "error", Error: err.Error()}
		var re *engine.RunError
		if errors.As(err, &re) {
			resp.RunID = re.RunID
			resp.Diagnostics = re.Diagnostics
			if serr := storage.SaveFailedRun(context.Background(), h.db, re.RunID, string(cfg.Variant), re.Err, re.Diagnostics); serr != nil {
				h.log.Error("save failed run", "run_id", re.RunID, "err", serr)
			}
		}
		status := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
		return
	}
	h.metrics.observeRun(storage.StatusDone, string(cfg.Variant), time.Since(start), res.Simulations, len(res.Params))

	if err := storage.SaveRun(ctx, h.db, res); err != nil {
		writeJSON(w, http.StatusInternalServerError, RunResponse{Status: "error", RunID: res.RunID, Error: err.Error()})
		return
	}
	info, err := storage.GetRun(ctx, h.db, res.RunID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, RunResponse{Status: "error", RunID: res.RunID, Error: err.Error()})
		return
	}
	resp := RunResponse{Status: "ok", RunID: res.RunID, Run: &info}
	if total, ok := res.TotalRow(); ok {
		resp.Total = &total
	}
	if req.Publish {
		m, err := h.publish(ctx, res)
		if err != nil {
			resp.Error = "publish: " + err.Error()
		} else {
			resp.Published = &m
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) publish(ctx context.Context, res *engine.Result) (publish.Manifest, error) {
	m, err := publish.Publish(ctx, h.store, res)
	h.metrics.published.WithLabelValues(string(h.store.Driver())).Add(float64(len(m.Objects)))
	if err != nil {
		h.log.Error("publish failed", "run_id", res.RunID, "err", err)
	}
	return m, err
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, JSON{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := storage.ListRuns(r.Context(), h.db, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, JSON{"runs": runs, "count": len(runs)})
}

// writeStoreError maps storage errors to status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrRunNotFound) {
		writeJSON(w, http.StatusNotFound, JSON{"error": err.Error()})
		return
	}
	if errors.Is(err, storage.ErrNoResult) {
		writeJSON(w, http.StatusConflict, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	info, err := storage.GetRun(r.Context(), h.db, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, err := storage.LoadResult(r.Context(), h.db, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetRows(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	q := r.URL.Query()
	f := storage.RowFilter{Depth: -1}
	if v := q.Get("quantity"); v != "" {
		y, ok := inventory.ParseYear(v)
		if !ok {
			writeJSON(w, http.StatusBadRequest, JSON{"error": "quantity must be BY, RY or trend"})
			return
		}
		f.Quantity = &y
	}
	if v := q.Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, JSON{"error": "depth must be a non-negative integer"})
			return
		}
		f.Depth = d
	}
	if v := q.Get("import"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, JSON{"error": "import must be a boolean"})
			return
		}
		f.ImportOnly = b
	}
	if _, err := storage.GetRun(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err)
		return
	}
	rows, err := storage.ListRows(r.Context(), h.db, id, f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, JSON{"rows": rows, "count": len(rows)})
}

func (h *Handler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := storage.GetRun(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err)
		return
	}
	entries, err := storage.ListDiagnostics(r.Context(), h.db, id, r.URL.Query().Get("level"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, JSON{"diagnostics": entries, "count": len(entries)})
}

func (h *Handler) GetKeyCategories(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	onlyKey := false
	if v := r.URL.Query().Get("key_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, JSON{"error": "key_only must be a boolean"})
			return
		}
		onlyKey = b
	}
	if _, err := storage.GetRun(r.Context(), h.db, id); err != nil {
		writeStoreError(w, err)
		return
	}
	kcas, err := storage.ListKeyCategories(r.Context(), h.db, id, onlyKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, JSON{"key_categories": kcas, "count": len(kcas)})
}

// PostPublish writes an already stored run to the blob store.
func (h *Handler) PostPublish(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, JSON{"error": "publishing is not configured"})
		return
	}
	res, err := storage.LoadResult(r.Context(), h.db, mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	m, err := h.publish(r.Context(), res)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, publish.ErrExists) {
			status = http.StatusConflict
		}
		writeJSON(w, status, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
