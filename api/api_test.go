package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/api"
	"github.com/xraph/taskq/engine"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/store/memory"
	"github.com/xraph/taskq/worker"
)

func init() { gin.SetMode(gin.TestMode) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type env struct {
	handler http.Handler
	pool    *worker.Pool
}

func setup(t *testing.T, store job.Store, s *memory.Store) *env {
	t.Helper()
	eng, err := engine.New(store, taskq.DefaultConfig(), engine.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	exec := worker.NewExecutor(s, eng.Extensions(), testLogger())
	return &env{
		handler: api.New(eng, testLogger()).Handler(),
		pool:    worker.NewPool(s, exec, eng.Extensions(), testLogger(), worker.WithWorkerID("api-test")),
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := memory.New()
	return setup(t, s, s)
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return v
}

func TestEnqueueAndPoll(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "divide", "a": 8, "b": 2})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", w.Code, w.Body.String())
	}
	h := decode[engine.Handle](t, w)
	if h.Status != job.StateQueued {
		t.Errorf("Status = %q, want queued", h.Status)
	}
	if loc := w.Header().Get("Location"); loc != "/tasks/job/"+h.JobID || loc != h.Location {
		t.Errorf("Location = %q, body location %q", loc, h.Location)
	}
	if h.PollIntervalSeconds != 2 {
		t.Errorf("PollIntervalSeconds = %d, want 2", h.PollIntervalSeconds)
	}

	w = e.do(t, http.MethodGet, h.Location, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if snap := decode[map[string]any](t, w); snap["status"] != "queued" || snap["result"] != nil || snap["exception"] != nil {
		t.Errorf("queued snapshot = %v", snap)
	}

	if _, err := e.pool.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}

	w = e.do(t, http.MethodGet, h.Location, nil)
	snap := decode[engine.Snapshot](t, w)
	if snap.Status != job.StateFinished || string(snap.Result) != "4" {
		t.Errorf("finished snapshot = %+v (result %s)", snap, snap.Result)
	}

	w = e.do(t, http.MethodGet, h.Location+"/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history status = %d", w.Code)
	}
	hist := decode[engine.History](t, w)
	if len(hist.Entries) != 1 || hist.Entries[0].Type != "SUCCESSFUL" {
		t.Errorf("history = %+v", hist.Entries)
	}
}

func TestFailedJobIsOK(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "divide", "a": 8, "b": 0})
	h := decode[engine.Handle](t, w)
	if _, err := e.pool.ProcessNext(context.Background()); err != nil {
		t.Fatalf("ProcessNext: %v", err)
	}

	w = e.do(t, http.MethodGet, h.Location, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	snap := decode[map[string]any](t, w)
	if snap["status"] != "failed" || snap["result"] != nil {
		t.Errorf("failed snapshot = %v", snap)
	}
	if exc, _ := snap["exception"].(string); exc == "" {
		t.Errorf("exception = %v, want message", snap["exception"])
	}

	hist := decode[engine.History](t, e.do(t, http.MethodGet, h.Location+"/history", nil))
	if len(hist.Entries) != 1 || hist.Entries[0].Type != "FAILED" {
		t.Errorf("history = %+v", hist.Entries)
	}
}

func TestResultBeyondInt64(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	tests := []struct {
		body map[string]any
		want string
	}{
		{map[string]any{"operation": "multiply", "a": int64(1) << 62, "b": 4}, "18446744073709551616"},
		{map[string]any{"operation": "increment", "a": int64(9223372036854775807)}, "9223372036854775808"},
	}

	for _, tt := range tests {
		h := decode[engine.Handle](t, e.do(t, http.MethodPost, "/tasks/enqueue", tt.body))
		if _, err := e.pool.ProcessNext(context.Background()); err != nil {
			t.Fatalf("ProcessNext: %v", err)
		}
		snap := decode[engine.Snapshot](t, e.do(t, http.MethodGet, h.Location, nil))
		if snap.Status != job.StateFinished || string(snap.Result) != tt.want {
			t.Errorf("%v: status %s result %s, want finished %s", tt.body["operation"], snap.Status, snap.Result, tt.want)
		}
	}
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed body", http.MethodPost, "/tasks/enqueue", "{", http.StatusBadRequest},
		{"unknown operation", http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "modulo", "a": 1, "b": 2}, http.StatusBadRequest},
		{"missing operand", http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "add", "a": 1}, http.StatusBadRequest},
		{"missing first operand", http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "increment"}, http.StatusBadRequest},
		{"null first operand", http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "add", "a": nil, "b": 2}, http.StatusBadRequest},
		{"unknown job", http.MethodGet, "/tasks/job/0190b5d4-3f0a-7c2e-9a1b-2c3d4e5f6a7b", nil, http.StatusNotFound},
		{"malformed job id", http.MethodGet, "/tasks/job/not-a-job", nil, http.StatusNotFound},
		{"unknown job history", http.MethodGet, "/tasks/job/0190b5d4-3f0a-7c2e-9a1b-2c3d4e5f6a7b/history", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := e.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			if body := decode[api.ErrorResponse](t, w); body.Error == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestQueueCount(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	for range 3 {
		e.do(t, http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "increment", "a": 1})
	}

	w := e.do(t, http.MethodGet, "/queue/count", nil)
	if got := decode[api.QueueCountResponse](t, w); got.Count != 3 {
		t.Errorf("Count = %d, want 3", got.Count)
	}
}

// downStore fails every Work Store read and write.
type downStore struct {
	*memory.Store
}

var errDown = errors.New("dial tcp: connection refused")

func (downStore) EnqueueJob(context.Context, *job.Job) error { return errDown }
func (downStore) CountPending(context.Context) (int64, error) { return 0, errDown }

func TestBackendUnavailable(t *testing.T) {
	t.Parallel()
	s := memory.New()
	e := setup(t, downStore{Store: s}, s)

	w := e.do(t, http.MethodPost, "/tasks/enqueue", map[string]any{"operation": "add", "a": 1, "b": 2})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("enqueue status = %d, want 503", w.Code)
	}
	w = e.do(t, http.MethodGet, "/queue/count", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("count status = %d, want 503", w.Code)
	}
}
