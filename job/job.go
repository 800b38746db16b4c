package job

import (
	"encoding/json"
	"time"

	"github.com/xraph/taskq/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateQueued means the job is waiting on the pending queue.
	StateQueued State = "queued"
	// StateStarted means an Executor has dequeued the job and is running it.
	StateStarted State = "started"
	// StateFinished means the final attempt succeeded.
	StateFinished State = "finished"
	// StateFailed means the final attempt raised an error.
	StateFailed State = "failed"
	// StateStopped means the Executor abandoned the job before it completed.
	StateStopped State = "stopped"
)

// Valid reports whether s is one of the five lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateStarted, StateFinished, StateFailed, StateStopped:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateFailed, StateStopped:
		return true
	case StateQueued, StateStarted:
		return false
	default:
		return false
	}
}

// CanTransition reports whether a job may move from one state to another.
// The machine is queued → started → {finished | failed | stopped}: no skips,
// no re-entry, and a terminal state is final.
func CanTransition(from, to State) bool {
	switch from {
	case StateQueued:
		return to == StateStarted
	case StateStarted:
		return to.Terminal()
	case StateFinished, StateFailed, StateStopped:
		return false
	default:
		return false
	}
}

// Args carries the integer operands of a job. B is nil for unary
// operations.
type Args struct {
	A int64  `json:"a"`
	B *int64 `json:"b,omitempty"`
}

// Job is one submitted arithmetic request and its lifecycle record.
type Job struct {
	ID         id.JobID   `json:"id"`
	Operation  Operation  `json:"operation"`
	Args       Args       `json:"args"`
	Status     State      `json:"status"`
	Queue      string     `json:"queue"`
	WorkerID   string     `json:"worker_id,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	// Result and ExcInfo are the legacy single-slot outcome fields. Older
	// Executors write them onto the record instead of appending attempts;
	// newer ones write both.
	Result  json.RawMessage `json:"result,omitempty"`
	ExcInfo string          `json:"exc_info,omitempty"`

	// ExpiresIn is the remaining retention reported by the Work Store at
	// read time. Nil before completion or when expiry is disabled.
	ExpiresIn *time.Duration `json:"-"`
}

// Terminal reports whether the job has reached a terminal state.
func (j *Job) Terminal() bool { return j.Status.Terminal() }
