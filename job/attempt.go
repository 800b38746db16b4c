package job

import (
	"encoding/json"
	"time"
)

// Outcome is the result of one execution attempt.
type Outcome string

const (
	// OutcomeSuccessful means the attempt returned a value.
	OutcomeSuccessful Outcome = "successful"
	// OutcomeFailed means the attempt raised an error.
	OutcomeFailed Outcome = "failed"
)

// TypeName returns the upper-case wire name used in history listings.
func (o Outcome) TypeName() string {
	switch o {
	case OutcomeSuccessful:
		return "SUCCESSFUL"
	case OutcomeFailed:
		return "FAILED"
	default:
		return ""
	}
}

// ConsistentWith reports whether an attempt outcome agrees with a terminal
// job state: finished pairs with successful, failed and stopped with failed.
func (o Outcome) ConsistentWith(s State) bool {
	switch s {
	case StateFinished:
		return o == OutcomeSuccessful
	case StateFailed, StateStopped:
		return o == OutcomeFailed
	case StateQueued, StateStarted:
		return false
	default:
		return false
	}
}

// Attempt is one execution of a job by the Executor. ReturnValue is set iff
// the outcome is successful, ExceptionText iff it failed.
type Attempt struct {
	ID            string          `json:"id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Outcome       Outcome         `json:"outcome"`
	ReturnValue   json.RawMessage `json:"return_value,omitempty"`
	ExceptionText string          `json:"exception_text,omitempty"`
}

// Succeeded builds a successful attempt carrying the JSON encoding of v.
func Succeeded(at time.Time, v any) (*Attempt, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Attempt{CreatedAt: at, Outcome: OutcomeSuccessful, ReturnValue: raw}, nil
}

// Failed builds a failed attempt carrying the error text.
func Failed(at time.Time, err error) *Attempt {
	text := "unknown error"
	if err != nil {
		text = err.Error()
	}
	return &Attempt{CreatedAt: at, Outcome: OutcomeFailed, ExceptionText: text}
}
