package api

import (
	"context"
	"net/http"
	"time"

	"github.com/examhive/examhive-api/internal/api/shared"
	"github.com/examhive/examhive-api/internal/platform/logger"
)

// healthCheckTimeout bounds the provider liveness probe so a stuck
// provider cannot hang the health endpoint.
const healthCheckTimeout = 5 * time.Second

// Pinger is the liveness surface of the generation provider.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the generation provider is reachable.
type HealthHandler struct {
	provider Pinger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(provider Pinger) *HealthHandler {
	return &HealthHandler{provider: provider}
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.provider.Ping(ctx); err != nil {
		logger.FromContext(r.Context()).Warn("generation provider health check failed", "error", err)
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
		})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
