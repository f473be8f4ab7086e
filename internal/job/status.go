package job

import (
	"context"

	"github.com/google/uuid"

	"github.com/examhive/examhive-api/internal/domain"
)

// StatusService is the read-only polling path over the registry. It never
// touches the dispatcher or the external generation call, so clients can
// poll it at arbitrary frequency without slowing background execution.
type StatusService struct {
	registry Registry
}

// NewStatusService creates a StatusService backed by the given registry.
func NewStatusService(registry Registry) *StatusService {
	return &StatusService{registry: registry}
}

// GetStatus returns the job's current record, or ErrJobNotFound for an
// unknown or expired ID. The returned value is a snapshot; a transition
// published after the call is only visible on the next poll.
func (s *StatusService) GetStatus(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	return s.registry.Get(ctx, id)
}
