package job_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
)

func TestCanTransition(t *testing.T) {
	all := []job.State{job.StateQueued, job.StateStarted, job.StateFinished, job.StateFailed, job.StateStopped}
	allowed := map[[2]job.State]bool{
		{job.StateQueued, job.StateStarted}:   true,
		{job.StateStarted, job.StateFinished}: true,
		{job.StateStarted, job.StateFailed}:   true,
		{job.StateStarted, job.StateStopped}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]job.State{from, to}]
			if got := job.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state    job.State
		terminal bool
		valid    bool
	}{
		{job.StateQueued, false, true},
		{job.StateStarted, false, true},
		{job.StateFinished, true, true},
		{job.StateFailed, true, true},
		{job.StateStopped, true, true},
		{job.State("deferred"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			t.Parallel()
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.state.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestNew(t *testing.T) {
	b := int64(3)
	before := time.Now().UTC()
	j := job.New(job.OpAdd, job.Args{A: 2, B: &b}, job.WithQueue("math"))

	if j.ID.IsNil() {
		t.Fatal("expected generated id")
	}
	if j.Status != job.StateQueued {
		t.Errorf("Status = %q, want queued", j.Status)
	}
	if j.Queue != "math" {
		t.Errorf("Queue = %q, want math", j.Queue)
	}
	if j.EnqueuedAt.Before(before) {
		t.Errorf("EnqueuedAt %v before %v", j.EnqueuedAt, before)
	}
	if j.StartedAt != nil || j.EndedAt != nil {
		t.Error("expected started_at and ended_at unset")
	}

	dflt := job.New(job.OpIncrement, job.Args{A: 1}, job.WithQueue(""))
	if dflt.Queue != "default" {
		t.Errorf("Queue = %q, want default", dflt.Queue)
	}
}

func TestOutcome(t *testing.T) {
	if got := job.OutcomeSuccessful.TypeName(); got != "SUCCESSFUL" {
		t.Errorf("TypeName = %q", got)
	}
	if got := job.OutcomeFailed.TypeName(); got != "FAILED" {
		t.Errorf("TypeName = %q", got)
	}

	tests := []struct {
		outcome job.Outcome
		state   job.State
		want    bool
	}{
		{job.OutcomeSuccessful, job.StateFinished, true},
		{job.OutcomeSuccessful, job.StateFailed, false},
		{job.OutcomeFailed, job.StateFailed, true},
		{job.OutcomeFailed, job.StateStopped, true},
		{job.OutcomeFailed, job.StateFinished, false},
		{job.OutcomeSuccessful, job.StateStarted, false},
	}
	for _, tt := range tests {
		if got := tt.outcome.ConsistentWith(tt.state); got != tt.want {
			t.Errorf("%s.ConsistentWith(%s) = %v, want %v", tt.outcome, tt.state, got, tt.want)
		}
	}
}

func TestAttemptBuilders(t *testing.T) {
	now := time.Now()

	ok, err := job.Succeeded(now, 4.0)
	if err != nil {
		t.Fatalf("Succeeded: %v", err)
	}
	if string(ok.ReturnValue) != "4" {
		t.Errorf("ReturnValue = %s, want 4", ok.ReturnValue)
	}
	if ok.ExceptionText != "" {
		t.Error("successful attempt must not carry exception text")
	}

	bad := job.Failed(now, taskq.ErrDivisionByZero)
	if bad.Outcome != job.OutcomeFailed {
		t.Errorf("Outcome = %q", bad.Outcome)
	}
	if bad.ExceptionText != "division by zero" {
		t.Errorf("ExceptionText = %q", bad.ExceptionText)
	}
	if bad.ReturnValue != nil {
		t.Error("failed attempt must not carry a return value")
	}

	if _, err := job.Succeeded(now, make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
	if got := job.Failed(now, nil).ExceptionText; got == "" {
		t.Error("expected placeholder text for nil error")
	}
}

func TestJobJSON(t *testing.T) {
	b := int64(2)
	j := job.New(job.OpDivide, job.Args{A: 8, B: &b})
	ttl := time.Minute
	j.ExpiresIn = &ttl

	data, err := json.Marshal(j)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["ExpiresIn"]; ok {
		t.Error("ExpiresIn must not be serialized")
	}
	if m["id"] != j.ID.String() {
		t.Errorf("id = %v, want %s", m["id"], j.ID)
	}

	var back job.Job
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if back.ID != j.ID || back.Operation != job.OpDivide || *back.Args.B != 2 {
		t.Errorf("decoded job mismatch: %+v", back)
	}
}
