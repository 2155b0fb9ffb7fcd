// Package handler contains the HTTP handlers for the VideoForge API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/videoforge/videoforge/internal/api/response"
	"github.com/videoforge/videoforge/internal/job"
	"github.com/videoforge/videoforge/internal/pipeline"
)

const maxScriptBytes = 64 * 1024

// Submitter admits new jobs into the pipeline.
type Submitter interface {
	Submit(spec job.Spec) (*job.Job, error)
}

// Canceller requests cooperative cancellation of a job.
type Canceller interface {
	Cancel(id uuid.UUID) bool
}

// NewSubmitJobHandler returns the handler for POST /api/v1/jobs.
func NewSubmitJobHandler(submitter Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Script   string  `json:"script"`
			Duration float64 `json:"duration"`
			Title    string  `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}

		if req.Script == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "script is required", nil)
			return
		}
		if len(req.Script) > maxScriptBytes {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "script exceeds 64KB", nil)
			return
		}
		if req.Duration <= 0 {
			req.Duration = 60
		}

		j, err := submitter.Submit(job.Spec{
			Script:   req.Script,
			Duration: req.Duration,
			Title:    req.Title,
		})
		if err != nil {
			if errors.Is(err, pipeline.ErrQueueFull) {
				response.Error(w, http.StatusServiceUnavailable, "QUEUE_FULL", "Too many queued jobs, try again later", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to submit job", nil)
			return
		}

		response.Accepted(w, map[string]any{
			"job_id": j.ID,
			"status": j.Status,
		})
	}
}

// NewGetJobHandler returns the handler for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(store job.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		j, err := store.Get(id)
		if err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Unknown job id", nil)
			return
		}
		response.JSON(w, j)
	}
}

// NewCancelJobHandler returns the handler for DELETE /api/v1/jobs/{jobID}.
func NewCancelJobHandler(store job.Store, canceller Canceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseJobID(w, r)
		if !ok {
			return
		}

		if _, err := store.Get(id); err != nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Unknown job id", nil)
			return
		}

		if !canceller.Cancel(id) {
			response.Error(w, http.StatusConflict, "ALREADY_TERMINAL", "Job already finished", nil)
			return
		}
		response.JSON(w, map[string]any{"job_id": id, "cancelled": true})
	}
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "jobID must be a UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}
