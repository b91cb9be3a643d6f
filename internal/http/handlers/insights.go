package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bjmnh/chatinsights/internal/entitlement"
	"github.com/bjmnh/chatinsights/internal/insight"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

// InsightsHandler exposes the analysis job lifecycle over HTTP: start an
// analysis, poll its status, fetch the finished bundle.
type InsightsHandler struct {
	publisher    *insight.Publisher
	jobs         insight.JobStore
	progress     *insight.ProgressCache
	entitlements entitlement.Checker
	logger       *logging.Logger
}

func NewInsightsHandler(publisher *insight.Publisher, jobs insight.JobStore, progress *insight.ProgressCache, entitlements entitlement.Checker, logger *logging.Logger) *InsightsHandler {
	if publisher == nil {
		panic("handlers: publisher cannot be nil")
	}
	if jobs == nil {
		panic("handlers: job store cannot be nil")
	}
	if entitlements == nil {
		panic("handlers: entitlement checker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &InsightsHandler{
		publisher:    publisher,
		jobs:         jobs,
		progress:     progress,
		entitlements: entitlements,
		logger:       logger.Component("insights_handler"),
	}
}

// StartAnalysis handles POST /v1/users/{userID}/jobs/{jobID}/insights.
// The archive must already be uploaded under the job ID; this only
// consumes a credit and enqueues the work.
func (h *InsightsHandler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	jobID := chi.URLParam(r, "jobID")
	if userID == "" || jobID == "" {
		writeError(w, http.StatusBadRequest, "missing user or job ID")
		return
	}

	ctx := r.Context()
	if err := h.entitlements.Check(ctx, userID); err != nil {
		if errors.Is(err, entitlement.ErrNotEntitled) {
			writeError(w, http.StatusPaymentRequired, "no analysis credits remaining")
			return
		}
		h.logger.Error("entitlement check failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "could not verify entitlement")
		return
	}

	req, err := h.publisher.Enqueue(ctx, insight.AnalysisRequest{JobID: jobID, UserID: userID})
	if err != nil {
		h.logger.Error("failed to enqueue analysis", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "could not start analysis")
		return
	}

	if err := h.entitlements.Consume(ctx, userID); err != nil {
		h.logger.Warn("failed to consume analysis credit", "error", err, "user_id", userID)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":     req.JobID,
		"requestId": req.RequestID,
		"status":    insight.JobPending,
	})
}

// GetJob handles GET /v1/jobs/{jobID}. Live progress comes from the
// cache when available; the job row is the source of truth otherwise.
func (h *InsightsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	ctx := r.Context()
	rec, err := h.jobs.GetJob(ctx, jobID)
	if errors.Is(err, insight.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load job", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "could not load job")
		return
	}

	status := map[string]any{
		"jobId":    rec.JobID,
		"status":   rec.Status,
		"stage":    rec.Stage,
		"progress": rec.Progress,
	}
	if rec.ErrorMessage != "" {
		status["error"] = rec.ErrorMessage
	}
	if rec.Status == insight.JobProcessing && h.progress != nil {
		if snap, err := h.progress.Get(ctx, jobID); err == nil && snap != nil {
			status["stage"] = snap.Stage
			status["progress"] = snap.Percent
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// GetBundle handles GET /v1/jobs/{jobID}/bundle.
func (h *InsightsHandler) GetBundle(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	rec, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, insight.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load job", "error", err, "job_id", jobID)
		writeError(w, http.StatusInternalServerError, "could not load job")
		return
	}
	if rec.Status != insight.JobCompleted || rec.Bundle == nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"jobId":  rec.JobID,
			"status": rec.Status,
			"error":  "bundle not ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, rec.Bundle)
}

// HealthCheck handles GET /health.
func (h *InsightsHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
