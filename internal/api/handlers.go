package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chri75252/simpler-fba/internal/cache"
	"github.com/chri75252/simpler-fba/internal/linking"
	"github.com/chri75252/simpler-fba/internal/report"
)

// Handlers is a thin HTTP layer over the caches, the linking map, and the
// job manager.
type Handlers struct {
	amazonCache *cache.AmazonCache
	links       *linking.Store
	jobs        *JobManager
	logger      *slog.Logger
}

func NewHandlers(amazonCache *cache.AmazonCache, links *linking.Store, jobs *JobManager, logger *slog.Logger) *Handlers {
	return &Handlers{
		amazonCache: amazonCache,
		links:       links,
		jobs:        jobs,
		logger:      logger,
	}
}

// Health reports basic liveness plus cache and linking counters.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"links":  h.links.Len(),
	}
	if stats, err := h.amazonCache.Stats(); err == nil {
		health["cache"] = stats
	}
	h.respondJSON(w, http.StatusOK, health)
}

// GetCacheStats returns entry counts by key completeness.
func (h *Handlers) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.amazonCache.Stats()
	if err != nil {
		h.logger.Error("failed to read cache stats", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

// GetCachedSnapshot returns the cached Amazon snapshot for an ASIN. The ean
// query parameter narrows the lookup to an exact key.
func (h *Handlers) GetCachedSnapshot(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if asin == "" {
		h.respondError(w, http.StatusBadRequest, "asin is required")
		return
	}

	snap, err := h.amazonCache.Get(asin, r.URL.Query().Get("ean"))
	if errors.Is(err, cache.ErrNotCached) || errors.Is(err, cache.ErrStale) {
		h.respondError(w, http.StatusNotFound, "not cached")
		return
	}
	if err != nil {
		h.logger.Error("cache lookup failed", "asin", asin, "error", err)
		h.respondError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}
	h.respondJSON(w, http.StatusOK, snap)
}

// ListLinks returns the full linking map.
func (h *Handlers) ListLinks(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.links.All())
}

// CreateJobRequest triggers one pipeline pass.
type CreateJobRequest struct {
	Supplier string `json:"supplier"`
	Restart  bool   `json:"restart"`
}

type CreateJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateJob starts a pipeline pass in the background.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.Create(r.Context(), req.Supplier, req.Restart)
	if err != nil {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Job created successfully",
	})
}

// GetJob returns the status of one job.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		h.respondError(w, http.StatusBadRequest, "job ID is required")
		return
	}

	job, err := h.jobs.Get(jobID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs returns all jobs, newest first.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

// GetReport returns the rows of the most recent completed pass, best ROI
// first.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	rows := h.jobs.LatestRows()
	if rows == nil {
		rows = []report.Row{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_rows": len(rows),
		"rows":       rows,
	})
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
