package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/client"
	"github.com/xraph/taskq/engine"
	"github.com/xraph/taskq/internal/config"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer runs the full server stack, worker included, on an
// httptest server and returns its dwp URL.
func startServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Worker.PollInterval = 5 * time.Millisecond
	x, err := buildExtension(cfg, memory.New(), testLogger(), true)
	if err != nil {
		t.Fatalf("buildExtension: %v", err)
	}
	router := gin.New()
	if err := x.Register(router); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := x.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = x.Stop(ctx)
	})

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + cfg.Server.DWPPath
}

func TestSimulateEndToEnd(t *testing.T) {
	url := startServer(t)

	c, err := client.Dial(url, client.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := simulate(ctx, c, simulatedJobs, 200, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	want := map[string]string{"add": "5", "subtract": "6", "multiply": "42", "divide": "4", "increment": "6"}
	for _, r := range results {
		if r.status != "finished" {
			t.Errorf("%s: status = %q (%s)", r.job.op, r.status, r.errText)
			continue
		}
		if r.result != want[r.job.op] {
			t.Errorf("%s: result = %s, want %s", r.job.op, r.result, want[r.job.op])
		}
	}

	var out bytes.Buffer
	if err := report(&out, results); err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, s := range []string{"── Summary", "MULTIPLY result: 42", "EXPIRES IN (S)"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("report missing %q:\n%s", s, out.String())
		}
	}
}

// stuckClient admits jobs that never leave the queue.
type stuckClient struct {
	mu    sync.Mutex
	polls int
}

func (s *stuckClient) Enqueue(_ context.Context, op string, _ int64, _ ...client.EnqueueOption) (*engine.Handle, error) {
	if op == "explode" {
		return nil, errors.New("connection reset")
	}
	return &engine.Handle{JobID: "job-" + op, Status: job.StateQueued, PollIntervalSeconds: 1}, nil
}

func (s *stuckClient) Status(_ context.Context, jobID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	s.polls++
	s.mu.Unlock()
	return &engine.Snapshot{JobID: jobID, Status: job.StateQueued}, nil
}

func TestSimulateTimeoutAndRequestFailure(t *testing.T) {
	t.Parallel()
	c := &stuckClient{}
	jobs := []simJob{{"add", 1, operand(1)}, {"explode", 1, nil}}

	results, err := simulate(context.Background(), c, jobs, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}

	if results[0].status != "timeout" || len(results[0].polls) != 3 {
		t.Errorf("stuck job = %+v", results[0])
	}
	if results[1].status != "failed" || !strings.Contains(results[1].errText, "connection reset") {
		t.Errorf("failed request = %+v", results[1])
	}
	if c.polls != 3 {
		t.Errorf("polls = %d, want 3", c.polls)
	}

	var out bytes.Buffer
	if err := report(&out, results); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out.String(), "ADD job did not finish in time.") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestSnapshotRow(t *testing.T) {
	t.Parallel()
	exc := "division by zero"
	secs := int64(31535999)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	row := snapshotRow(2, &engine.Snapshot{
		Status:                 job.StateFailed,
		Result:                 json.RawMessage("null"),
		Exception:              &exc,
		FinishedAt:             &now,
		ResultExpiresInSeconds: &secs,
	})
	if row.result != "-" || row.exception != exc || row.expiresIn != "31535999" || row.finishedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("row = %+v", row)
	}
}

func TestSubmitCommand(t *testing.T) {
	url := startServer(t)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"submit", "divide", "8", "0", "--server", url, "--wait", "--interval", "10ms"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal %q: %v", out.String(), err)
	}
	if snap.Status != job.StateFailed || snap.Exception == nil || *snap.Exception != "division by zero" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSubmitCommandRejectsBadOperand(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"submit", "add", "two", "3"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid operand a") {
		t.Fatalf("error = %v", err)
	}
}

func TestStatusCommandNotFound(t *testing.T) {
	url := startServer(t)

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"status", "0190b5d4-3f0a-7c2e-9a1b-2c3d4e5f6a7b", "--server", url})
	err := cmd.Execute()
	if !errors.Is(err, taskq.ErrJobNotFound) {
		t.Fatalf("error = %v, want ErrJobNotFound", err)
	}
}

func TestClientCommandRejectsBadEnv(t *testing.T) {
	prev := envLookup
	envLookup = func(key string) (string, bool) {
		if key == "TASKQ_LOG_AUDIT" {
			return "sometimes", true
		}
		return "", false
	}
	t.Cleanup(func() { envLookup = prev })

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"status", "0190b5d4-3f0a-7c2e-9a1b-2c3d4e5f6a7b", "--server", "ws://127.0.0.1:1/dwp"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "TASKQ_LOG_AUDIT") {
		t.Fatalf("error = %v, want TASKQ_LOG_AUDIT parse error", err)
	}
}

func TestBuildExtensionRespectsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Worker.Enabled = false
	x, err := buildExtension(cfg, memory.New(), testLogger(), false)
	if err != nil {
		t.Fatalf("buildExtension: %v", err)
	}
	if err := x.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if x.Pool() != nil || x.DWPServer() != nil {
		t.Error("worker and dwp should both be disabled")
	}

	cfg.Worker.Backoff.Kind = "fibonacci"
	if _, err := buildExtension(cfg, memory.New(), testLogger(), false); err == nil {
		t.Error("expected backoff error")
	}
}

func TestBuildExtensionAuditLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg := config.Default()
	cfg.Worker.Enabled = false
	cfg.Logging.Audit = true
	x, err := buildExtension(cfg, memory.New(), logger, false)
	if err != nil {
		t.Fatalf("buildExtension: %v", err)
	}
	if err := x.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	one := int64(1)
	h, err := x.Engine().Submit(context.Background(), engine.SubmitRequest{Operation: "increment", A: &one})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !strings.Contains(buf.String(), `"action":"job.submitted"`) || !strings.Contains(buf.String(), h.JobID) {
		t.Errorf("expected audit record for %s, got %q", h.JobID, buf.String())
	}
}

var _ jobClient = (*client.Client)(nil)
