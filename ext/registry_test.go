package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/reconcile"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobSubmitted")
	return nil
}

func (e *allHooksExt) OnJobPolled(_ context.Context, _ *job.Job, _ reconcile.Source) error {
	e.calls = append(e.calls, "OnJobPolled")
	return nil
}

func (e *allHooksExt) OnJobStarted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobStarted")
	return nil
}

func (e *allHooksExt) OnAttemptFailed(_ context.Context, _ *job.Job, _ int, _ error, _ time.Duration) error {
	e.calls = append(e.calls, "OnAttemptFailed")
	return nil
}

func (e *allHooksExt) OnJobFinished(_ context.Context, _ *job.Job, _ time.Duration) error {
	e.calls = append(e.calls, "OnJobFinished")
	return nil
}

func (e *allHooksExt) OnJobFailed(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobFailed")
	return nil
}

func (e *allHooksExt) OnJobStopped(_ context.Context, _ *job.Job, _ error) error {
	e.calls = append(e.calls, "OnJobStopped")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// submitOnlyExt only implements the admission hook.
type submitOnlyExt struct {
	calls []string
}

func (e *submitOnlyExt) Name() string { return "submit-only" }

func (e *submitOnlyExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	e.calls = append(e.calls, "OnJobSubmitted")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	so := &submitOnlyExt{}
	r.Register(all)
	r.Register(so)

	ctx := context.Background()
	j := job.New(job.OpIncrement, job.Args{A: 1})

	r.EmitJobSubmitted(ctx, j)
	if len(all.calls) != 1 || all.calls[0] != "OnJobSubmitted" {
		t.Fatalf("all: expected [OnJobSubmitted], got %v", all.calls)
	}
	if len(so.calls) != 1 || so.calls[0] != "OnJobSubmitted" {
		t.Fatalf("so: expected [OnJobSubmitted], got %v", so.calls)
	}

	r.EmitJobStarted(ctx, j)
	if len(all.calls) != 2 || all.calls[1] != "OnJobStarted" {
		t.Fatalf("all: expected OnJobStarted as 2nd, got %v", all.calls)
	}
	if len(so.calls) != 1 {
		t.Fatalf("so: should still have 1 call, got %v", so.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	j := job.New(job.OpIncrement, job.Args{A: 1})

	r.EmitJobSubmitted(ctx, j)
	r.EmitJobPolled(ctx, j, reconcile.Unavailable)
	r.EmitJobStarted(ctx, j)
	r.EmitAttemptFailed(ctx, j, 1, errors.New("fail"), time.Second)
	r.EmitJobFinished(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("fail"))
	r.EmitJobStopped(ctx, j, context.Canceled)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnJobSubmitted", "OnJobPolled", "OnJobStarted", "OnAttemptFailed",
		"OnJobFinished", "OnJobFailed", "OnJobStopped", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	failing := &failingExt{}
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(failing)
	r.Register(all)

	ctx := context.Background()
	r.EmitJobSubmitted(ctx, job.New(job.OpIncrement, job.Args{A: 1}))
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 || all.calls[0] != "OnJobSubmitted" {
		t.Fatalf("all: expected hooks to fire despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()
	j := &job.Job{}

	// None of these should panic or error.
	r.EmitJobSubmitted(ctx, j)
	r.EmitJobPolled(ctx, j, reconcile.FromLegacyField)
	r.EmitJobStarted(ctx, j)
	r.EmitAttemptFailed(ctx, j, 1, errors.New("x"), 0)
	r.EmitJobFinished(ctx, j, time.Second)
	r.EmitJobFailed(ctx, j, errors.New("x"))
	r.EmitJobStopped(ctx, j, errors.New("x"))
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	var order []string
	r.Register(&orderExt{name: "first", order: &order})
	r.Register(&orderExt{name: "second", order: &order})

	r.EmitJobSubmitted(context.Background(), &job.Job{})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

type orderExt struct {
	name  string
	order *[]string
}

func (e *orderExt) Name() string { return e.name }

func (e *orderExt) OnJobSubmitted(_ context.Context, _ *job.Job) error {
	*e.order = append(*e.order, e.name)
	return nil
}
