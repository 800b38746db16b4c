package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/reconcile"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobSubmittedEntry struct {
	name string
	hook JobSubmitted
}

type jobPolledEntry struct {
	name string
	hook JobPolled
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type attemptFailedEntry struct {
	name string
	hook AttemptFailed
}

type jobFinishedEntry struct {
	name string
	hook JobFinished
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobStoppedEntry struct {
	name string
	hook JobStopped
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is not safe for concurrent use; register everything before the
// first emit.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobSubmitted  []jobSubmittedEntry
	jobPolled     []jobPolledEntry
	jobStarted    []jobStartedEntry
	attemptFailed []attemptFailedEntry
	jobFinished   []jobFinishedEntry
	jobFailed     []jobFailedEntry
	jobStopped    []jobStoppedEntry
	shutdown      []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, jobSubmittedEntry{name, h})
	}
	if h, ok := e.(JobPolled); ok {
		r.jobPolled = append(r.jobPolled, jobPolledEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(AttemptFailed); ok {
		r.attemptFailed = append(r.attemptFailed, attemptFailedEntry{name, h})
	}
	if h, ok := e.(JobFinished); ok {
		r.jobFinished = append(r.jobFinished, jobFinishedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobStopped); ok {
		r.jobStopped = append(r.jobStopped, jobStoppedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Admission and query emitters
// ──────────────────────────────────────────────────

// EmitJobSubmitted notifies all extensions that implement JobSubmitted.
func (r *Registry) EmitJobSubmitted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, j); err != nil {
			r.logHookError("OnJobSubmitted", e.name, err)
		}
	}
}

// EmitJobPolled notifies all extensions that implement JobPolled.
func (r *Registry) EmitJobPolled(ctx context.Context, j *job.Job, source reconcile.Source) {
	for _, e := range r.jobPolled {
		if err := e.hook.OnJobPolled(ctx, j, source); err != nil {
			r.logHookError("OnJobPolled", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Execution emitters
// ──────────────────────────────────────────────────

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitAttemptFailed notifies all extensions that implement AttemptFailed.
func (r *Registry) EmitAttemptFailed(ctx context.Context, j *job.Job, attempt int, attemptErr error, delay time.Duration) {
	for _, e := range r.attemptFailed {
		if err := e.hook.OnAttemptFailed(ctx, j, attempt, attemptErr, delay); err != nil {
			r.logHookError("OnAttemptFailed", e.name, err)
		}
	}
}

// EmitJobFinished notifies all extensions that implement JobFinished.
func (r *Registry) EmitJobFinished(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobFinished {
		if err := e.hook.OnJobFinished(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobFinished", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobStopped notifies all extensions that implement JobStopped.
func (r *Registry) EmitJobStopped(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobStopped {
		if err := e.hook.OnJobStopped(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobStopped", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
