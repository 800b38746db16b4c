// Package ext defines the extension system for taskq.
// Extensions are notified of lifecycle events (job submitted, finished,
// failed, etc.) and can react to them by logging or recording metrics.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/reconcile"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Admission and query hooks
// ──────────────────────────────────────────────────

// JobSubmitted is called after a job is admitted to the pending queue.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobPolled is called after a status snapshot is served, with the source
// the result view was reconciled from.
type JobPolled interface {
	OnJobPolled(ctx context.Context, j *job.Job, source reconcile.Source) error
}

// ──────────────────────────────────────────────────
// Execution hooks
// ──────────────────────────────────────────────────

// JobStarted is called when a worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// AttemptFailed is called when an attempt fails and another one will run
// after the given delay.
type AttemptFailed interface {
	OnAttemptFailed(ctx context.Context, j *job.Job, attempt int, err error, delay time.Duration) error
}

// JobFinished is called after a job's final attempt succeeds.
type JobFinished interface {
	OnJobFinished(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job's final attempt fails.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobStopped is called when a worker abandons a job before completion.
type JobStopped interface {
	OnJobStopped(ctx context.Context, j *job.Job, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
