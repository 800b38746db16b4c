// Package dwp implements the taskq wire protocol: a frame-based
// request/response protocol carried over WebSocket (long-lived sessions)
// and HTTP (one-shot RPC). Frames are encoded as JSON or MessagePack.
package dwp

import (
	"encoding/json"
	"time"

	"github.com/xraph/taskq/id"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the protocol envelope. Every message exchanged is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation for request frames (e.g., "job.enqueue").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries credentials on auth frames and RPC requests.
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Data carries the method-specific JSON payload.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in an error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// ── Well-known methods ──────────────────────────────

const (
	MethodAuth       = "auth"
	MethodJobEnqueue = "job.enqueue"
	MethodJobGet     = "job.get"
	MethodJobHistory = "job.history"
	MethodQueueCount = "queue.count"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeNotFound       = 404
	ErrCodeMethodNotFound = 405
	ErrCodeInternal       = 500
	ErrCodeUnavailable    = 503
)

// ── Request/Response payloads ───────────────────────

// AuthRequest is sent by clients to authenticate.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default) or "msgpack"
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// JobEnqueueRequest submits a new job.
type JobEnqueueRequest struct {
	Operation string `json:"operation"`
	A         *int64 `json:"a"`
	B         *int64 `json:"b,omitempty"`
}

// JobGetRequest addresses a job for job.get and job.history.
type JobGetRequest struct {
	JobID string `json:"job_id"`
}

// QueueCountResponse reports the pending queue size.
type QueueCountResponse struct {
	Count int64 `json:"count"`
}

// NewRequestFrame creates a new request frame.
func NewRequestFrame(frameID, method string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        frameID,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// GenerateFrameID returns a new unique, time-ordered frame ID.
func GenerateFrameID() string {
	return id.New().String()
}
