package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newJob(op job.Operation, a int64, b *int64) *job.Job {
	return job.New(op, job.Args{A: a, B: b})
}

func ptr(v int64) *int64 { return &v }

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, taskq.ErrStoreClosed) {
		t.Fatalf("Ping after close = %v, want ErrStoreClosed", err)
	}
	if err := s.EnqueueJob(ctx, newJob(job.OpIncrement, 1, nil)); !errors.Is(err, taskq.ErrStoreClosed) {
		t.Fatalf("EnqueueJob after close = %v, want ErrStoreClosed", err)
	}
	if _, err := s.CountPending(ctx); !errors.Is(err, taskq.ErrStoreClosed) {
		t.Fatalf("CountPending after close = %v, want ErrStoreClosed", err)
	}
}

// ──────────────────────────────────────────────────
// Job Store tests
// ──────────────────────────────────────────────────

func TestJobEnqueueAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(job.OpAdd, 2, ptr(3))

	tests := []struct {
		name    string
		fn      func() error
		wantErr error
	}{
		{"enqueue new job", func() error { return s.EnqueueJob(ctx, j) }, nil},
		{"enqueue duplicate", func() error { return s.EnqueueJob(ctx, j) }, taskq.ErrJobAlreadyExists},
		{"get existing", func() error { _, err := s.GetJob(ctx, j.ID); return err }, nil},
		{"get missing", func() error { _, err := s.GetJob(ctx, id.NewJobID()); return err }, taskq.ErrJobNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.StateQueued {
		t.Errorf("Status = %q, want queued", got.Status)
	}
	if got.ExpiresIn != nil {
		t.Error("queued job must not report expiry")
	}

	n, err := s.CountPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("CountPending = %d, %v; want 1", n, err)
	}
}

func TestGetJobReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(job.OpIncrement, 5, nil)
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	j.Status = job.StateFinished

	got, _ := s.GetJob(ctx, j.ID)
	got.Status = job.StateFailed

	again, _ := s.GetJob(ctx, j.ID)
	if again.Status != job.StateQueued {
		t.Errorf("stored job mutated through caller copy: %q", again.Status)
	}
}

func TestDequeueOrderAndTransition(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	first := newJob(job.OpIncrement, 1, nil)
	second := newJob(job.OpIncrement, 2, nil)
	other := job.New(job.OpIncrement, job.Args{A: 3}, job.WithQueue("other"))
	for _, j := range []*job.Job{first, second, other} {
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.DequeueJob(ctx, "w1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID {
		t.Fatalf("dequeued %s, want %s", got.ID, first.ID)
	}
	if got.Status != job.StateStarted || got.StartedAt == nil || got.WorkerID != "w1" {
		t.Errorf("unexpected dequeued job: %+v", got)
	}

	if _, err := s.DequeueJob(ctx, "w1"); err != nil {
		t.Fatal(err)
	}
	empty, err := s.DequeueJob(ctx, "w1")
	if err != nil || empty != nil {
		t.Fatalf("expected empty queue, got %v, %v", empty, err)
	}

	n, _ := s.CountPending(ctx)
	if n != 0 {
		t.Errorf("CountPending = %d, want 0 (other queue is not counted)", n)
	}
}

func TestFinishJob(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(WithClock(clock.Now))
	ctx := context.Background()

	j := newJob(job.OpDivide, 8, ptr(2))
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	// Finishing a queued job skips started.
	done := *j
	done.Status = job.StateFinished
	if err := s.FinishJob(ctx, &done, nil, time.Minute); !errors.Is(err, taskq.ErrInvalidState) {
		t.Fatalf("FinishJob on queued = %v, want ErrInvalidState", err)
	}

	started, _ := s.DequeueJob(ctx, "w1")
	attempt, _ := job.Succeeded(clock.Now(), 4.0)
	started.Status = job.StateFinished
	started.Result = attempt.ReturnValue
	if err := s.FinishJob(ctx, started, attempt, 500*time.Second); err != nil {
		t.Fatalf("FinishJob: %v", err)
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.StateFinished || got.EndedAt == nil {
		t.Fatalf("unexpected job: %+v", got)
	}
	if got.ExpiresIn == nil || *got.ExpiresIn != 500*time.Second {
		t.Errorf("ExpiresIn = %v, want 500s", got.ExpiresIn)
	}

	latest, err := s.LatestAttempt(ctx, j.ID)
	if err != nil || latest == nil {
		t.Fatalf("LatestAttempt = %v, %v", latest, err)
	}
	if string(latest.ReturnValue) != "4" {
		t.Errorf("ReturnValue = %s, want 4", latest.ReturnValue)
	}

	// Terminal states are final.
	again := *got
	again.Status = job.StateFailed
	if err := s.FinishJob(ctx, &again, nil, 0); !errors.Is(err, taskq.ErrInvalidState) {
		t.Fatalf("second FinishJob = %v, want ErrInvalidState", err)
	}

	clock.Advance(501 * time.Second)
	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, taskq.ErrJobNotFound) {
		t.Fatalf("GetJob after expiry = %v, want ErrJobNotFound", err)
	}
}

func TestFinishJobWithoutExpiry(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(job.OpIncrement, 1, nil)
	_ = s.EnqueueJob(ctx, j)
	started, _ := s.DequeueJob(ctx, "w1")
	started.Status = job.StateStopped
	started.ExcInfo = "worker shutting down"
	if err := s.FinishJob(ctx, started, job.Failed(time.Now(), errors.New("worker shutting down")), 0); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.ExpiresIn != nil {
		t.Errorf("ExpiresIn = %v, want nil", *got.ExpiresIn)
	}
}

func TestAttemptRetention(t *testing.T) {
	t.Parallel()
	s := New(WithAttemptRetention(3))
	ctx := context.Background()

	j := newJob(job.OpIncrement, 1, nil)
	_ = s.EnqueueJob(ctx, j)
	_, _ = s.DequeueJob(ctx, "w1")

	for i := range 5 {
		a := job.Failed(time.Now(), fmt.Errorf("attempt %d", i))
		if err := s.RecordAttempt(ctx, j.ID, a); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListAttempts(ctx, j.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ExceptionText != "attempt 2" || got[2].ExceptionText != "attempt 4" {
		t.Errorf("unexpected retained attempts: %q .. %q", got[0].ExceptionText, got[2].ExceptionText)
	}

	limited, _ := s.ListAttempts(ctx, j.ID, 2)
	if len(limited) != 2 || limited[1].ExceptionText != "attempt 4" {
		t.Errorf("limit not applied to most recent: %+v", limited)
	}
}

func TestRecordAttemptRequiresStarted(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob(job.OpIncrement, 1, nil)
	_ = s.EnqueueJob(ctx, j)
	if err := s.RecordAttempt(ctx, j.ID, job.Failed(time.Now(), nil)); !errors.Is(err, taskq.ErrInvalidState) {
		t.Fatalf("RecordAttempt on queued = %v, want ErrInvalidState", err)
	}
	if err := s.RecordAttempt(ctx, id.NewJobID(), job.Failed(time.Now(), nil)); !errors.Is(err, taskq.ErrJobNotFound) {
		t.Fatalf("RecordAttempt on missing = %v, want ErrJobNotFound", err)
	}
}

func TestWithoutAttemptLog(t *testing.T) {
	t.Parallel()
	s := New(WithoutAttemptLog())
	ctx := context.Background()

	j := newJob(job.OpIncrement, 5, nil)
	_ = s.EnqueueJob(ctx, j)
	started, _ := s.DequeueJob(ctx, "w1")
	started.Status = job.StateFinished
	started.Result = json.RawMessage("6")
	attempt, _ := job.Succeeded(time.Now(), 6)
	if err := s.FinishJob(ctx, started, attempt, time.Minute); err != nil {
		t.Fatal(err)
	}

	if _, err := s.LatestAttempt(ctx, j.ID); !errors.Is(err, taskq.ErrAttemptsUnavailable) {
		t.Errorf("LatestAttempt = %v, want ErrAttemptsUnavailable", err)
	}
	if _, err := s.ListAttempts(ctx, j.ID, 10); !errors.Is(err, taskq.ErrAttemptsUnavailable) {
		t.Errorf("ListAttempts = %v, want ErrAttemptsUnavailable", err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if string(got.Result) != "6" {
		t.Errorf("legacy Result = %s, want 6", got.Result)
	}
}

func TestAttemptsOfMissingJob(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	latest, err := s.LatestAttempt(ctx, id.NewJobID())
	if err != nil || latest != nil {
		t.Errorf("LatestAttempt = %v, %v; want nil, nil", latest, err)
	}
	list, err := s.ListAttempts(ctx, id.NewJobID(), 10)
	if err != nil || len(list) != 0 {
		t.Errorf("ListAttempts = %v, %v; want empty", list, err)
	}
}

func TestConcurrentEnqueueDequeue(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.EnqueueJob(ctx, newJob(job.OpIncrement, int64(i), nil))
		}()
	}
	wg.Wait()

	seen := make(map[id.JobID]bool)
	var mu sync.Mutex
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := s.DequeueJob(ctx, "w")
				if err != nil || j == nil {
					return
				}
				mu.Lock()
				if seen[j.ID] {
					t.Errorf("job %s dequeued twice", j.ID)
				}
				seen[j.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("dequeued %d jobs, want %d", len(seen), n)
	}
}
