package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/taskq/job"
)

// ErrPanicked marks an attempt that ended in a recovered panic.
var ErrPanicked = errors.New("taskq: operation panicked")

// Recover turns a panic in the rest of the chain into a failed attempt.
// The error names the operation and attempt; the log record also carries
// the operands and the stack.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			attempt := AttemptFrom(ctx)
			attrs := []slog.Attr{
				slog.String("job_id", j.ID.String()),
				slog.String("operation", string(j.Operation)),
				slog.String("queue", j.Queue),
				slog.Int("attempt", attempt),
				slog.Int64("a", j.Args.A),
			}
			if j.Args.B != nil {
				attrs = append(attrs, slog.Int64("b", *j.Args.B))
			}
			attrs = append(attrs,
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			logger.LogAttrs(ctx, slog.LevelError, "operation panicked", attrs...)
			retErr = fmt.Errorf("%w: %s attempt %d: %v", ErrPanicked, j.Operation, attempt, r)
		}()
		return next(ctx)
	}
}
