package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examhive/examhive-api/internal/domain"
)

// TransitionParams carries the mutable fields of a single transition.
// Result may only accompany a move to completed, Error a move to failed.
type TransitionParams struct {
	State    domain.JobState
	Progress int
	Message  string
	Result   *domain.JobResult
	Error    *domain.JobError
}

// Registry is the persistence boundary for job records.
// Version: 1.0
type Registry interface {
	// Create allocates a fresh job ID and inserts a queued record with
	// the given kind and an immutable copy of the validated request.
	Create(ctx context.Context, kind domain.JobKind, request domain.JobRequest) (domain.Job, error)

	// Get returns a copy of the job, or ErrJobNotFound.
	Get(ctx context.Context, id uuid.UUID) (domain.Job, error)

	// Transition atomically applies params to the job and returns the
	// updated record. Backward moves, terminal mutations, progress
	// regressions and malformed params fail with ErrInvalidTransition.
	Transition(ctx context.Context, id uuid.UUID, params TransitionParams) (domain.Job, error)

	// DeleteExpired removes terminal jobs last updated before cutoff and
	// returns how many were removed. Jobs still processing are kept.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// entry pairs a job record with the mutex that serializes writes to it.
// The per-entry lock keeps transitions on different IDs independent.
type entry struct {
	mu  sync.Mutex
	job domain.Job
}

// MemoryRegistry is the in-memory Registry implementation. The outer
// RWMutex only guards map membership; record mutation happens under the
// per-entry lock.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
	now     func() time.Time
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[uuid.UUID]*entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new queued job. uuid.New makes ID collisions between
// concurrent creates a non-concern.
func (r *MemoryRegistry) Create(
	_ context.Context,
	kind domain.JobKind,
	request domain.JobRequest,
) (domain.Job, error) {
	now := r.now()
	j := domain.Job{
		ID:        uuid.New(),
		Kind:      kind,
		State:     domain.JobStateQueued,
		Progress:  0,
		Message:   "job queued",
		Request:   request,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.entries[j.ID] = &entry{job: j.Clone()}
	r.mu.Unlock()

	return j, nil
}

// Get returns a defensive copy of the job record.
func (r *MemoryRegistry) Get(_ context.Context, id uuid.UUID) (domain.Job, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone(), nil
}

// Transition applies params under the entry lock. Each transition is
// published atomically: a concurrent Get sees either the previous or the
// new record, never a mix.
func (r *MemoryRegistry) Transition(
	_ context.Context,
	id uuid.UUID,
	params TransitionParams,
) (domain.Job, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ValidateTransition(e.job, params); err != nil {
		return domain.Job{}, err
	}

	e.job.State = params.State
	e.job.Progress = params.Progress
	e.job.Message = params.Message
	e.job.Result = params.Result
	e.job.Error = params.Error
	e.job.UpdatedAt = r.now()

	return e.job.Clone(), nil
}

// DeleteExpired removes terminal jobs last touched before cutoff.
func (r *MemoryRegistry) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		e.mu.Lock()
		expired := e.job.State.Terminal() && e.job.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(r.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many job records the registry currently holds.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// ValidateTransition enforces the shared transition rules. Both registry
// implementations funnel through it so the state machine has exactly one
// definition.
func ValidateTransition(current domain.Job, params TransitionParams) error {
	if !current.State.CanTransitionTo(params.State) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.State, params.State)
	}
	if params.Progress < 0 || params.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrInvalidTransition, params.Progress)
	}
	if current.State == domain.JobStateProcessing && params.State == domain.JobStateProcessing &&
		params.Progress < current.Progress {
		return fmt.Errorf("%w: progress %d regresses below %d",
			ErrInvalidTransition, params.Progress, current.Progress)
	}
	if params.Result != nil && params.State != domain.JobStateCompleted {
		return fmt.Errorf("%w: result only valid on completion", ErrInvalidTransition)
	}
	if params.Error != nil && params.State != domain.JobStateFailed {
		return fmt.Errorf("%w: error only valid on failure", ErrInvalidTransition)
	}
	if params.State == domain.JobStateCompleted && params.Result == nil {
		return fmt.Errorf("%w: completion requires a result", ErrInvalidTransition)
	}
	if params.State == domain.JobStateFailed && params.Error == nil {
		return fmt.Errorf("%w: failure requires an error", ErrInvalidTransition)
	}
	return nil
}
