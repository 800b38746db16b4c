package job

import (
	"time"

	"github.com/xraph/taskq/id"
)

// Option configures a job built by New.
type Option func(*Job)

// WithQueue sets the pending queue the job is admitted to.
func WithQueue(q string) Option {
	return func(j *Job) {
		if q != "" {
			j.Queue = q
		}
	}
}

// WithEnqueuedAt overrides the admission timestamp.
func WithEnqueuedAt(t time.Time) Option {
	return func(j *Job) {
		j.EnqueuedAt = t.UTC()
	}
}

// WithID overrides the generated id.
func WithID(jobID id.JobID) Option {
	return func(j *Job) {
		j.ID = jobID
	}
}

// New builds a queued job with a fresh id. Args are not validated; callers
// run Operation.Normalize first.
func New(op Operation, args Args, opts ...Option) *Job {
	j := &Job{
		ID:         id.NewJobID(),
		Operation:  op,
		Args:       args,
		Status:     StateQueued,
		Queue:      "default",
		EnqueuedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}
