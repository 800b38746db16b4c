package dwp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/engine"
)

// Handler dispatches request frames to engine operations.
type Handler struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// NewHandler creates a new method handler.
func NewHandler(eng *engine.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{eng: eng, logger: logger}
}

// Handle processes a single request frame and returns its response.
func (h *Handler) Handle(ctx context.Context, frame *Frame, _ *Connection) *Frame {
	switch frame.Method {
	case MethodJobEnqueue:
		return h.handleJobEnqueue(ctx, frame)
	case MethodJobGet:
		return h.handleJobGet(ctx, frame)
	case MethodJobHistory:
		return h.handleJobHistory(ctx, frame)
	case MethodQueueCount:
		return h.handleQueueCount(ctx, frame)
	default:
		return NewErrorFrame(frame.ID, ErrCodeMethodNotFound, "unknown method: "+frame.Method)
	}
}

// mustResponseFrame creates a response frame, returning an error frame on marshal failure.
func mustResponseFrame(frameID string, data any) *Frame {
	resp, err := NewResponseFrame(frameID, data)
	if err != nil {
		return NewErrorFrame(frameID, ErrCodeInternal, "marshal response: "+err.Error())
	}
	return resp
}

// errorFrame maps engine errors to protocol error codes.
func (h *Handler) errorFrame(frameID string, err error) *Frame {
	switch {
	case errors.Is(err, taskq.ErrInvalidOperation), errors.Is(err, taskq.ErrMissingOperand):
		return NewErrorFrame(frameID, ErrCodeBadRequest, err.Error())
	case errors.Is(err, taskq.ErrJobNotFound):
		return NewErrorFrame(frameID, ErrCodeNotFound, "job not found")
	case errors.Is(err, taskq.ErrTransientBackend):
		return NewErrorFrame(frameID, ErrCodeUnavailable, "work store unavailable")
	default:
		h.logger.Error("dwp request failed", slog.String("error", err.Error()))
		return NewErrorFrame(frameID, ErrCodeInternal, "internal error")
	}
}

func decode(frame *Frame, v any) *Frame {
	if len(frame.Data) == 0 {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "missing request data")
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}
	return nil
}

func (h *Handler) handleJobEnqueue(ctx context.Context, frame *Frame) *Frame {
	var req JobEnqueueRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}

	handle, err := h.eng.Submit(ctx, engine.SubmitRequest{Operation: req.Operation, A: req.A, B: req.B})
	if err != nil {
		return h.errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, handle)
}

func (h *Handler) handleJobGet(ctx context.Context, frame *Frame) *Frame {
	var req JobGetRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}

	snap, err := h.eng.Status(ctx, req.JobID)
	if err != nil {
		return h.errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, snap)
}

func (h *Handler) handleJobHistory(ctx context.Context, frame *Frame) *Frame {
	var req JobGetRequest
	if errFrame := decode(frame, &req); errFrame != nil {
		return errFrame
	}

	hist, err := h.eng.History(ctx, req.JobID)
	if err != nil {
		return h.errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, hist)
}

func (h *Handler) handleQueueCount(ctx context.Context, frame *Frame) *Frame {
	n, err := h.eng.PendingCount(ctx)
	if err != nil {
		return h.errorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, QueueCountResponse{Count: n})
}
