package engine

import (
	"encoding/json"
	"time"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/reconcile"
)

// SubmitRequest is an admission request. B is required for binary
// operations and ignored for increment. An empty Operation means add.
type SubmitRequest struct {
	Operation string `json:"operation"`
	A         *int64 `json:"a"`
	B         *int64 `json:"b,omitempty"`
}

// Handle is returned by admission.
type Handle struct {
	JobID               string    `json:"job_id"`
	Status              job.State `json:"status"`
	Location            string    `json:"location"`
	PollIntervalSeconds int       `json:"poll_interval_seconds"`
}

// Snapshot is a point-in-time view of a job. Result and Exception are
// mutually exclusive and both null until the job is terminal.
type Snapshot struct {
	JobID                  string          `json:"job_id"`
	Status                 job.State       `json:"status"`
	Operation              job.Operation   `json:"operation"`
	Result                 json.RawMessage `json:"result"`
	Exception              *string         `json:"exception"`
	ResultExpiresInSeconds *int64          `json:"result_expires_in_seconds"`
	EnqueuedAt             time.Time       `json:"enqueued_at"`
	StartedAt              *time.Time      `json:"started_at,omitempty"`
	FinishedAt             *time.Time      `json:"finished_at"`
	PollIntervalSeconds    int             `json:"poll_interval_seconds"`

	// Source records where Result or Exception came from.
	Source reconcile.Source `json:"-"`
}

// HistoryEntry is one execution attempt as reported to callers.
type HistoryEntry struct {
	CreatedAt time.Time       `json:"created_at"`
	Type      string          `json:"type"`
	Result    json.RawMessage `json:"result"`
	Exception *string         `json:"exception"`
}

// History lists a job's most recent attempts in creation order.
type History struct {
	JobID   string         `json:"job_id"`
	Entries []HistoryEntry `json:"history"`
}

func newHistoryEntry(a *job.Attempt) HistoryEntry {
	e := HistoryEntry{
		CreatedAt: a.CreatedAt,
		Type:      a.Outcome.TypeName(),
	}
	switch a.Outcome {
	case job.OutcomeSuccessful:
		e.Result = a.ReturnValue
	case job.OutcomeFailed:
		text := a.ExceptionText
		e.Exception = &text
	}
	return e
}

// expirySeconds rounds a remaining retention up to whole seconds.
func expirySeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
