package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/examhive/examhive-api/internal/api/shared"
	"github.com/examhive/examhive-api/internal/domain"
	"github.com/examhive/examhive-api/internal/job"
)

// StatusReader is the query surface the status handler needs.
type StatusReader interface {
	GetStatus(ctx context.Context, id uuid.UUID) (domain.Job, error)
}

// StatusHandler serves job status queries.
type StatusHandler struct {
	status StatusReader
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(status StatusReader) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetJobStatus handles GET /job-status/{job_id} requests. It is a pure
// registry read and is safe to call at polling frequency.
func (h *StatusHandler) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	// A malformed ID cannot name any job, so it reads as unknown rather
	// than as a client syntax error.
	jobID, err := uuid.Parse(chi.URLParam(r, "job_id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
		return
	}

	record, err := h.status.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobToStatusResponse(record))
}
