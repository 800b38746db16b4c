package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/middleware"
)

// Executor runs a job's attempts through middleware, then persists the
// outcome and emits lifecycle events.
type Executor struct {
	store       job.ExecutionStore
	extensions  *ext.Registry
	backoff     backoff.Strategy
	maxAttempts int
	resultTTL   time.Duration
	failureTTL  time.Duration
	timeout     time.Duration
	mws         []middleware.Middleware
	mw          middleware.Middleware
	logger      *slog.Logger
	now         func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxAttempts sets how many times a job is attempted before it is
// marked failed. Values below one are treated as one.
func WithMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.maxAttempts = n
	}
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(s backoff.Strategy) ExecutorOption {
	return func(e *Executor) { e.backoff = s }
}

// WithResultTTL sets the retention of finished jobs.
func WithResultTTL(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.resultTTL = d }
}

// WithFailureTTL sets the retention of failed and stopped jobs.
func WithFailureTTL(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.failureTTL = d }
}

// WithStoreTimeout bounds the store writes the Executor makes after an
// attempt.
func WithStoreTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// WithMiddleware appends execution middleware. The first middleware is the
// outermost.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mws = append(e.mws, mws...) }
}

// WithClock overrides the time source used for attempt timestamps.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) { e.now = now }
}

// NewExecutor creates an Executor writing to store.
func NewExecutor(store job.ExecutionStore, extensions *ext.Registry, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}

	cfg := taskq.DefaultConfig()
	e := &Executor{
		store:       store,
		extensions:  extensions,
		backoff:     backoff.DefaultStrategy(),
		maxAttempts: 1,
		resultTTL:   cfg.ResultTTL,
		failureTTL:  cfg.FailureTTL,
		timeout:     cfg.StoreTimeout,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.mw = middleware.Chain(e.mws...)
	return e
}

// Execute runs j, which must already be started, until it reaches a
// terminal state. It returns the error of the final attempt, or the store
// error if the outcome could not be persisted.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	start := time.Now()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return e.stop(ctx, j, err)
		}

		var value any
		err := e.mw(middleware.WithAttempt(ctx, attempt), j, func(_ context.Context) error {
			v, applyErr := j.Operation.Apply(j.Args)
			value = v
			return applyErr
		})

		if err == nil {
			a, encErr := job.Succeeded(e.now(), value)
			if encErr != nil {
				return e.fail(ctx, j, encErr)
			}
			return e.finish(ctx, j, a, start)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return e.stop(ctx, j, ctxErr)
		}

		if attempt >= e.maxAttempts || permanent(err) {
			return e.fail(ctx, j, err)
		}

		delay := e.backoff.Delay(attempt)
		if recErr := e.record(ctx, j, job.Failed(e.now(), err)); recErr != nil {
			return recErr
		}
		e.extensions.EmitAttemptFailed(ctx, j, attempt, err, delay)

		e.logger.Info("job attempt will be retried",
			slog.String("job_id", j.ID.String()),
			slog.String("operation", string(j.Operation)),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.maxAttempts),
			slog.Duration("delay", delay),
		)

		if !sleep(ctx, delay) {
			return e.stop(ctx, j, ctx.Err())
		}
	}
}

func (e *Executor) finish(ctx context.Context, j *job.Job, a *job.Attempt, start time.Time) error {
	j.Status = job.StateFinished
	j.Result = a.ReturnValue
	j.ExcInfo = ""
	if err := e.write(ctx, j, a, e.resultTTL); err != nil {
		return err
	}
	e.extensions.EmitJobFinished(ctx, j, time.Since(start))
	return nil
}

func (e *Executor) fail(ctx context.Context, j *job.Job, cause error) error {
	a := job.Failed(e.now(), cause)
	j.Status = job.StateFailed
	j.Result = nil
	j.ExcInfo = a.ExceptionText
	if err := e.write(ctx, j, a, e.failureTTL); err != nil {
		return err
	}
	e.extensions.EmitJobFailed(ctx, j, cause)

	e.logger.Warn("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("operation", string(j.Operation)),
		slog.String("error", cause.Error()),
	)
	return cause
}

func (e *Executor) stop(ctx context.Context, j *job.Job, cause error) error {
	reason := fmt.Errorf("job stopped: %w", cause)
	a := job.Failed(e.now(), reason)
	j.Status = job.StateStopped
	j.Result = nil
	j.ExcInfo = a.ExceptionText
	if err := e.write(ctx, j, a, e.failureTTL); err != nil {
		return err
	}
	e.extensions.EmitJobStopped(ctx, j, reason)

	e.logger.Warn("job stopped",
		slog.String("job_id", j.ID.String()),
		slog.String("operation", string(j.Operation)),
		slog.String("reason", cause.Error()),
	)
	return reason
}

// write persists the terminal outcome. It detaches from ctx so a job
// interrupted by shutdown can still be marked stopped.
func (e *Executor) write(ctx context.Context, j *job.Job, a *job.Attempt, ttl time.Duration) error {
	ended := a.CreatedAt
	j.EndedAt = &ended

	wctx, cancel := e.storeContext(ctx)
	defer cancel()

	if err := e.store.FinishJob(wctx, j, a, ttl); err != nil {
		e.logger.Error("failed to persist job outcome",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(j.Status)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("worker: finish job: %w", err)
	}
	return nil
}

func (e *Executor) record(ctx context.Context, j *job.Job, a *job.Attempt) error {
	wctx, cancel := e.storeContext(ctx)
	defer cancel()

	if err := e.store.RecordAttempt(wctx, j.ID, a); err != nil {
		e.logger.Error("failed to record attempt",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("worker: record attempt: %w", err)
	}
	return nil
}

func (e *Executor) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if e.timeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, e.timeout)
}

// permanent reports errors that no retry can fix.
func permanent(err error) bool {
	return errors.Is(err, taskq.ErrDivisionByZero) ||
		errors.Is(err, taskq.ErrInvalidOperation) ||
		errors.Is(err, taskq.ErrMissingOperand)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
