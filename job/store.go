package job

import (
	"context"
	"time"

	"github.com/xraph/taskq/id"
)

// Store defines the Work Store surface used by the admission and query
// services.
type Store interface {
	// EnqueueJob persists a new queued job and pushes it on its pending
	// queue in one atomic step.
	EnqueueJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID. Returns taskq.ErrJobNotFound when the
	// record is absent or has been purged.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// LatestAttempt returns the most recent execution attempt, or nil, nil
	// when none has been recorded. Returns taskq.ErrAttemptsUnavailable when
	// the backend keeps no attempt log.
	LatestAttempt(ctx context.Context, jobID id.JobID) (*Attempt, error)

	// ListAttempts returns up to limit of the most recent attempts in
	// creation order. Same error contract as LatestAttempt.
	ListAttempts(ctx context.Context, jobID id.JobID, limit int) ([]*Attempt, error)

	// CountPending returns the number of jobs waiting on the configured
	// pending queue.
	CountPending(ctx context.Context) (int64, error)
}

// ExecutionStore is the surface an Executor needs on top of Store.
type ExecutionStore interface {
	Store

	// DequeueJob pops the oldest queued job and moves it to started under
	// the given worker. Returns nil, nil when the queue is empty.
	DequeueJob(ctx context.Context, workerID string) (*Job, error)

	// RecordAttempt appends a non-final attempt to the job's log, trimming
	// it to the retention bound.
	RecordAttempt(ctx context.Context, jobID id.JobID, a *Attempt) error

	// FinishJob atomically writes the terminal status, ended_at, the legacy
	// outcome fields and the final attempt, then applies the retention ttl.
	// A ttl <= 0 disables expiry. Returns taskq.ErrInvalidState unless the
	// stored job is started.
	FinishJob(ctx context.Context, j *Job, final *Attempt, ttl time.Duration) error
}
