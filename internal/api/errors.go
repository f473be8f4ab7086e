package api

import (
	"errors"
	"net/http"

	"github.com/examhive/examhive-api/internal/artifact"
	"github.com/examhive/examhive-api/internal/dispatch"
	"github.com/examhive/examhive-api/internal/job"
	"github.com/examhive/examhive-api/internal/service/auth"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so
// handlers never leak internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	case errors.Is(err, job.ErrJobNotFound),
		errors.Is(err, artifact.ErrArtifactNotFound):
		return http.StatusNotFound

	case errors.Is(err, dispatch.ErrInvalidRequest),
		errors.Is(err, artifact.ErrInvalidFilename):
		return http.StatusBadRequest

	case errors.Is(err, artifact.ErrArtifactExists):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for an
// error. Raw error strings belong in logs, not responses.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, job.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, artifact.ErrArtifactNotFound):
		return "File not found"

	case errors.Is(err, artifact.ErrInvalidFilename):
		return "Invalid filename"

	case errors.Is(err, artifact.ErrArtifactExists):
		return "File already exists"

	case errors.Is(err, dispatch.ErrInvalidRequest):
		// Submission validation messages are built by the dispatcher
		// from the request itself, so they are safe to echo back.
		return err.Error()

	default:
		return "An unexpected error occurred"
	}
}
