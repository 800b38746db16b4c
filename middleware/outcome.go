package middleware

import (
	"context"
	"errors"
)

// Attempt outcomes reported by the tracing and metrics middleware.
const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeStopped = "stopped"
)

// outcomeOf classifies the error returned by one attempt. Cancellation
// means the worker gave the job up, which the executor records as stopped.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.Canceled):
		return outcomeStopped
	default:
		return outcomeError
	}
}
