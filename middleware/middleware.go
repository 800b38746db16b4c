package middleware

import (
	"context"

	"github.com/xraph/taskq/job"
)

// Handler is the terminal function that executes one attempt of a job.
type Handler func(ctx context.Context) error

// Middleware wraps one attempt of j. It must call next for the attempt to
// run.
type Middleware func(ctx context.Context, j *job.Job, next Handler) error

// Chain composes mws into one Middleware, outermost first.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}
