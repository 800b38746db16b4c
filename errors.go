package taskq

import "errors"

var (
	// Admission errors. Both are detected before the Work Store is touched.
	ErrInvalidOperation = errors.New("taskq: invalid operation")
	ErrMissingOperand   = errors.New("taskq: missing operand")

	// Lookup errors.
	ErrJobNotFound = errors.New("taskq: job not found")

	// Backend errors.
	ErrTransientBackend = errors.New("taskq: work store unavailable")
	ErrStoreClosed      = errors.New("taskq: store closed")

	// ErrAttemptsUnavailable is reported by a Work Store that keeps no
	// per-attempt log. Callers degrade instead of failing.
	ErrAttemptsUnavailable = errors.New("taskq: attempt log unavailable")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("taskq: job already exists")

	// State errors.
	ErrInvalidState = errors.New("taskq: invalid state transition")

	// Execution errors.
	ErrDivisionByZero = errors.New("division by zero")
)
