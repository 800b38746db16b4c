package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/reconcile"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.JobSubmitted  = (*Extension)(nil)
	_ ext.JobPolled     = (*Extension)(nil)
	_ ext.JobStarted    = (*Extension)(nil)
	_ ext.AttemptFailed = (*Extension)(nil)
	_ ext.JobFinished   = (*Extension)(nil)
	_ ext.JobFailed     = (*Extension)(nil)
	_ ext.JobStopped    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// SlogRecorder writes each event as a structured log record at a level
// derived from its severity.
func SlogRecorder(logger *slog.Logger) Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("action", evt.Action),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
		}
		if evt.Reason != "" {
			attrs = append(attrs, slog.String("reason", evt.Reason))
		}
		for k, v := range evt.Metadata {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(ctx, level, "audit", attrs...)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges taskq lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = defaults
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Admission and query hooks ───────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (e *Extension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobSubmitted, SeverityInfo, OutcomeSuccess, j, nil)
}

// OnJobPolled implements ext.JobPolled.
func (e *Extension) OnJobPolled(ctx context.Context, j *job.Job, source reconcile.Source) error {
	return e.record(ctx, ActionJobPolled, SeverityInfo, OutcomeSuccess, j, nil,
		"status", string(j.Status),
		"source", source.String(),
	)
}

// ── Execution hooks ─────────────────────────────────

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess, j, nil,
		"worker_id", j.WorkerID,
	)
}

// OnAttemptFailed implements ext.AttemptFailed.
func (e *Extension) OnAttemptFailed(ctx context.Context, j *job.Job, attempt int, err error, delay time.Duration) error {
	return e.record(ctx, ActionAttemptFailed, SeverityWarning, OutcomeFailure, j, err,
		"attempt", attempt,
		"retry_in_ms", delay.Milliseconds(),
	)
}

// OnJobFinished implements ext.JobFinished.
func (e *Extension) OnJobFinished(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	return e.record(ctx, ActionJobFinished, SeverityInfo, OutcomeSuccess, j, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, j *job.Job, err error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure, j, err)
}

// OnJobStopped implements ext.JobStopped.
func (e *Extension) OnJobStopped(ctx context.Context, j *job.Job, err error) error {
	return e.record(ctx, ActionJobStopped, SeverityWarning, OutcomeFailure, j, err)
}

// ── Internal helpers ────────────────────────────────

func (e *Extension) allowed(action string) bool {
	if e.enabled == nil {
		return action != ActionJobPolled
	}
	return e.enabled[action]
}

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and never propagated to the job.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	j *job.Job,
	err error,
	kvPairs ...any,
) error {
	if !e.allowed(action) {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+4)
	meta["operation"] = string(j.Operation)
	meta["queue"] = j.Queue
	meta["a"] = j.Args.A
	if j.Args.B != nil {
		meta["b"] = *j.Args.B
	}
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   ResourceJob,
		Category:   CategoryJob,
		ResourceID: j.ID.String(),
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", evt.ResourceID,
			"error", recErr,
		)
	}
	return nil
}
