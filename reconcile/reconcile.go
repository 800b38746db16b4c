// Package reconcile derives a consistent result view of a job from the
// partial state a Work Store returns.
//
// A job record and its attempt log are written by the Executor at
// different moments, and older Executors only ever fill the legacy
// outcome fields on the record. Reconcile picks the single authoritative
// source for a snapshot and reports which one it used.
package reconcile

import (
	"encoding/json"

	"github.com/xraph/taskq/job"
)

// Source identifies where a reconciled result or exception came from.
type Source int

const (
	// Unavailable means no result or exception could be derived. This is
	// always the case for non-terminal jobs.
	Unavailable Source = iota
	// FromLatestAttempt means the most recent execution attempt agreed
	// with the job's terminal status and was used.
	FromLatestAttempt
	// FromLegacyField means the single-slot outcome field on the job
	// record was used.
	FromLegacyField
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case FromLatestAttempt:
		return "latest_attempt"
	case FromLegacyField:
		return "legacy_field"
	case Unavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of reconciling one job. At most one of Result
// and Exception is set.
type Resolution struct {
	Source    Source
	Result    json.RawMessage
	Exception *string
}

// Reconcile resolves the result view of j. latest and latestErr are the
// outcome of reading the job's most recent attempt; any error there,
// including an unavailable attempt log, degrades to the legacy field.
// Reconcile never fails.
func Reconcile(j *job.Job, latest *job.Attempt, latestErr error) Resolution {
	if j == nil || !j.Status.Terminal() {
		return Resolution{Source: Unavailable}
	}

	if latestErr == nil && latest != nil && latest.Outcome.ConsistentWith(j.Status) {
		if r, ok := fromAttempt(latest); ok {
			return r
		}
	}

	if r, ok := fromLegacy(j); ok {
		return r
	}

	return Resolution{Source: Unavailable}
}

func fromAttempt(a *job.Attempt) (Resolution, bool) {
	switch a.Outcome {
	case job.OutcomeSuccessful:
		if len(a.ReturnValue) == 0 {
			return Resolution{}, false
		}
		return Resolution{Source: FromLatestAttempt, Result: a.ReturnValue}, true
	case job.OutcomeFailed:
		text := a.ExceptionText
		return Resolution{Source: FromLatestAttempt, Exception: &text}, true
	default:
		return Resolution{}, false
	}
}

func fromLegacy(j *job.Job) (Resolution, bool) {
	switch j.Status {
	case job.StateFinished:
		if len(j.Result) == 0 {
			return Resolution{}, false
		}
		return Resolution{Source: FromLegacyField, Result: j.Result}, true
	case job.StateFailed, job.StateStopped:
		if j.ExcInfo == "" {
			return Resolution{}, false
		}
		text := j.ExcInfo
		return Resolution{Source: FromLegacyField, Exception: &text}, true
	case job.StateQueued, job.StateStarted:
		return Resolution{}, false
	default:
		return Resolution{}, false
	}
}

// BoundHistory returns the n most recent attempts of a creation-ordered
// sequence, still in creation order. The input is not modified.
func BoundHistory(attempts []*job.Attempt, n int) []*job.Attempt {
	if n <= 0 || len(attempts) == 0 {
		return []*job.Attempt{}
	}
	if len(attempts) > n {
		attempts = attempts[len(attempts)-n:]
	}
	out := make([]*job.Attempt, len(attempts))
	copy(out, attempts)
	return out
}
