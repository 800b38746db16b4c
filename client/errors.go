package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/dwp"
)

var (
	// ErrClosed is returned by requests issued after Close.
	ErrClosed = errors.New("taskq/client: closed")

	// ErrDisconnected is returned by requests whose session dropped before
	// a response arrived. The request may or may not have been applied.
	ErrDisconnected = errors.New("taskq/client: disconnected")
)

// Error is a protocol error returned by the server.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("dwp error %d: %s", e.Code, e.Message)
}

// Unwrap maps protocol error codes back onto taskq sentinel errors so
// callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Code {
	case dwp.ErrCodeNotFound:
		return taskq.ErrJobNotFound
	case dwp.ErrCodeUnavailable:
		return taskq.ErrTransientBackend
	case dwp.ErrCodeBadRequest:
		if strings.Contains(e.Message, taskq.ErrMissingOperand.Error()) {
			return taskq.ErrMissingOperand
		}
		if strings.Contains(e.Message, taskq.ErrInvalidOperation.Error()) {
			return taskq.ErrInvalidOperation
		}
	case dwp.ErrCodeUnauthorized, dwp.ErrCodeForbidden:
		return dwp.ErrUnauthorized
	}
	return nil
}

func frameError(f *dwp.Frame) error {
	if f.Error == nil {
		return &Error{Code: dwp.ErrCodeInternal, Message: "unknown error"}
	}
	return &Error{Code: f.Error.Code, Message: f.Error.Message}
}
