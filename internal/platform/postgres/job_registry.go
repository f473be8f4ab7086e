package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/examhive/examhive-api/internal/domain"
	"github.com/examhive/examhive-api/internal/job"
	"github.com/examhive/examhive-api/internal/platform/logger"
)

// JobRegistry is the PostgreSQL-backed job.Registry implementation.
// Transitions run inside a transaction with a row lock, giving the same
// per-ID serialization the in-memory registry gets from its entry mutex.
type JobRegistry struct {
	db  *sql.DB
	now func() time.Time
}

var _ job.Registry = (*JobRegistry)(nil)

// NewJobRegistry creates a JobRegistry on the given database handle.
func NewJobRegistry(db *sql.DB) *JobRegistry {
	return &JobRegistry{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new queued job record.
func (r *JobRegistry) Create(
	ctx context.Context,
	kind domain.JobKind,
	request domain.JobRequest,
) (domain.Job, error) {
	log := logger.FromContext(ctx)

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

	requestJSON, err := json.Marshal(j.Request)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to marshal job request: %w", err)
	}

	query := `
		INSERT INTO jobs (id, kind, state, progress, message, request, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		j.ID, j.Kind, j.State, j.Progress, j.Message, requestJSON, j.CreatedAt, j.UpdatedAt,
	); err != nil {
		log.Error("failed to insert job", "job_id", j.ID, "kind", kind, "error", err)
		return domain.Job{}, fmt.Errorf("failed to insert job: %w", err)
	}

	return j, nil
}

// Get returns the job record, or job.ErrJobNotFound.
func (r *JobRegistry) Get(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	return scanJob(r.db.QueryRowContext(ctx, `
		SELECT id, kind, state, progress, message, request, result, error, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`, id), id)
}

// Transition applies params to the job under a row lock so concurrent
// transitions on the same ID serialize. Validation uses the shared
// transition rules, keeping both registry implementations in lockstep.
func (r *JobRegistry) Transition(
	ctx context.Context,
	id uuid.UUID,
	params job.TransitionParams,
) (domain.Job, error) {
	log := logger.FromContext(ctx)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error("failed to roll back transition transaction", "job_id", id, "error", err)
		}
	}()

	current, err := scanJob(tx.QueryRowContext(ctx, `
		SELECT id, kind, state, progress, message, request, result, error, created_at, updated_at
		FROM jobs
		WHERE id = $1
		FOR UPDATE
	`, id), id)
	if err != nil {
		return domain.Job{}, err
	}

	if err := job.ValidateTransition(current, params); err != nil {
		return domain.Job{}, err
	}

	resultJSON, err := marshalNullable(params.Result)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to marshal job result: %w", err)
	}
	errorJSON, err := marshalNullable(params.Error)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to marshal job error: %w", err)
	}

	updatedAt := r.now()
	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET state = $1, progress = $2, message = $3, result = $4, error = $5, updated_at = $6
		WHERE id = $7
	`, params.State, params.Progress, params.Message, resultJSON, errorJSON, updatedAt, id); err != nil {
		log.Error("failed to update job", "job_id", id, "state", params.State, "error", err)
		return domain.Job{}, fmt.Errorf("failed to update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Job{}, fmt.Errorf("failed to commit transition: %w", err)
	}

	current.State = params.State
	current.Progress = params.Progress
	current.Message = params.Message
	current.Result = params.Result
	current.Error = params.Error
	current.UpdatedAt = updatedAt
	return current, nil
}

// DeleteExpired removes terminal jobs last updated before cutoff.
func (r *JobRegistry) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE state IN ($1, $2) AND updated_at < $3
	`, domain.JobStateCompleted, domain.JobStateFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired jobs: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted jobs: %w", err)
	}
	return int(removed), nil
}

// scanJob reads one job row. sql.ErrNoRows maps to job.ErrJobNotFound.
func scanJob(row *sql.Row, id uuid.UUID) (domain.Job, error) {
	var (
		j           domain.Job
		requestJSON []byte
		resultJSON  []byte
		errorJSON   []byte
	)
	err := row.Scan(&j.ID, &j.Kind, &j.State, &j.Progress, &j.Message,
		&requestJSON, &resultJSON, &errorJSON, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("%w: %s", job.ErrJobNotFound, id)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to scan job row: %w", err)
	}

	if err := json.Unmarshal(requestJSON, &j.Request); err != nil {
		return domain.Job{}, fmt.Errorf("failed to unmarshal job request: %w", err)
	}
	if len(resultJSON) > 0 {
		j.Result = &domain.JobResult{}
		if err := json.Unmarshal(resultJSON, j.Result); err != nil {
			return domain.Job{}, fmt.Errorf("failed to unmarshal job result: %w", err)
		}
	}
	if len(errorJSON) > 0 {
		j.Error = &domain.JobError{}
		if err := json.Unmarshal(errorJSON, j.Error); err != nil {
			return domain.Job{}, fmt.Errorf("failed to unmarshal job error: %w", err)
		}
	}
	return j, nil
}

// marshalNullable marshals v to JSON, or returns nil for a nil pointer
// so the column stays NULL.
func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case *domain.JobResult:
		if val == nil {
			return nil, nil
		}
	case *domain.JobError:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
