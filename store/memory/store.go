package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
)

// Compile-time interface checks.
var (
	_ job.Store          = (*Store)(nil)
	_ job.ExecutionStore = (*Store)(nil)
)

// record is the stored form of a job: the record itself, its attempt log
// and the absolute expiry (zero means retained forever).
type record struct {
	job       job.Job
	attempts  []*job.Attempt
	seq       int
	expiresAt time.Time
}

// Store is a fully in-memory Work Store. Safe for concurrent access.
// Intended for unit testing and development.
type Store struct {
	mu sync.Mutex

	jobs   map[string]*record
	queues map[string][]string

	queue      string
	retention  int
	attemptLog bool
	now        func() time.Time
	closed     bool
}

// Option configures a memory Store.
type Option func(*Store)

// WithQueue sets the pending queue counted by CountPending and drained by
// DequeueJob. Defaults to "default".
func WithQueue(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.queue = name
		}
	}
}

// WithAttemptRetention bounds the per-job attempt log to the n most recent
// entries. Zero keeps every attempt.
func WithAttemptRetention(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.retention = n
		}
	}
}

// WithoutAttemptLog makes the store behave like a backend with no attempt
// log: attempt reads return taskq.ErrAttemptsUnavailable and only the
// legacy outcome fields are kept.
func WithoutAttemptLog() Option {
	return func(s *Store) { s.attemptLog = false }
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a new empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs:       make(map[string]*record),
		queues:     make(map[string][]string),
		queue:      "default",
		retention:  10,
		attemptLog: true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Ping reports whether the store is still open.
func (m *Store) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return taskq.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Subsequent calls fail with
// taskq.ErrStoreClosed.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// EnqueueJob persists a new queued job and appends it to its queue.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return taskq.ErrStoreClosed
	}

	key := j.ID.String()
	if _, exists := m.live(key); exists {
		return taskq.ErrJobAlreadyExists
	}

	cp := *j
	cp.ExpiresIn = nil
	if cp.Queue == "" {
		cp.Queue = m.queue
	}
	m.jobs[key] = &record{job: cp}
	m.queues[cp.Queue] = append(m.queues[cp.Queue], key)
	return nil
}

// GetJob retrieves a job by ID. Expired records are purged on read.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, taskq.ErrStoreClosed
	}

	rec, ok := m.live(jobID.String())
	if !ok {
		return nil, taskq.ErrJobNotFound
	}

	cp := rec.job
	if !rec.expiresAt.IsZero() {
		remaining := rec.expiresAt.Sub(m.now())
		cp.ExpiresIn = &remaining
	}
	return &cp, nil
}

// LatestAttempt returns the most recent attempt, or nil when none exists.
func (m *Store) LatestAttempt(_ context.Context, jobID id.JobID) (*job.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.attemptsOf(jobID)
	if err != nil || rec == nil || len(rec.attempts) == 0 {
		return nil, err
	}
	cp := *rec.attempts[len(rec.attempts)-1]
	return &cp, nil
}

// ListAttempts returns up to limit of the most recent attempts in creation
// order.
func (m *Store) ListAttempts(_ context.Context, jobID id.JobID, limit int) ([]*job.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.attemptsOf(jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return []*job.Attempt{}, nil
	}

	src := rec.attempts
	if limit > 0 && len(src) > limit {
		src = src[len(src)-limit:]
	}
	out := make([]*job.Attempt, len(src))
	for i, a := range src {
		cp := *a
		out[i] = &cp
	}
	return out, nil
}

// CountPending returns the number of jobs waiting on the configured queue.
func (m *Store) CountPending(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, taskq.ErrStoreClosed
	}
	return int64(len(m.queues[m.queue])), nil
}

// ──────────────────────────────────────────────────
// Execution Store
// ──────────────────────────────────────────────────

// DequeueJob pops the oldest job on the configured queue and marks it
// started.
func (m *Store) DequeueJob(_ context.Context, workerID string) (*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, taskq.ErrStoreClosed
	}

	for len(m.queues[m.queue]) > 0 {
		key := m.queues[m.queue][0]
		m.queues[m.queue] = m.queues[m.queue][1:]

		rec, ok := m.live(key)
		if !ok || !job.CanTransition(rec.job.Status, job.StateStarted) {
			continue
		}

		now := m.now().UTC()
		rec.job.Status = job.StateStarted
		rec.job.StartedAt = &now
		rec.job.WorkerID = workerID

		cp := rec.job
		return &cp, nil
	}
	return nil, nil //nolint:nilnil // empty queue is not an error
}

// RecordAttempt appends a non-final attempt to the job's log.
func (m *Store) RecordAttempt(_ context.Context, jobID id.JobID, a *job.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return taskq.ErrStoreClosed
	}

	rec, ok := m.live(jobID.String())
	if !ok {
		return taskq.ErrJobNotFound
	}
	if rec.job.Status != job.StateStarted {
		return fmt.Errorf("%w: record attempt on %s job", taskq.ErrInvalidState, rec.job.Status)
	}
	m.appendAttempt(rec, a)
	return nil
}

// FinishJob writes the terminal state, legacy outcome fields and final
// attempt, then applies the retention ttl.
func (m *Store) FinishJob(_ context.Context, j *job.Job, final *job.Attempt, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return taskq.ErrStoreClosed
	}

	rec, ok := m.live(j.ID.String())
	if !ok {
		return taskq.ErrJobNotFound
	}
	if !job.CanTransition(rec.job.Status, j.Status) {
		return fmt.Errorf("%w: %s → %s", taskq.ErrInvalidState, rec.job.Status, j.Status)
	}

	now := m.now().UTC()
	ended := now
	if j.EndedAt != nil {
		ended = j.EndedAt.UTC()
	}
	rec.job.Status = j.Status
	rec.job.EndedAt = &ended
	rec.job.Result = j.Result
	rec.job.ExcInfo = j.ExcInfo

	if final != nil {
		m.appendAttempt(rec, final)
	}

	if ttl > 0 {
		rec.expiresAt = now.Add(ttl)
	} else {
		rec.expiresAt = time.Time{}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// live returns the record for key unless it has expired, purging expired
// records as a side effect. Callers hold mu.
func (m *Store) live(key string) (*record, bool) {
	rec, ok := m.jobs[key]
	if !ok {
		return nil, false
	}
	if !rec.expiresAt.IsZero() && !m.now().Before(rec.expiresAt) {
		delete(m.jobs, key)
		return nil, false
	}
	return rec, true
}

// attemptsOf resolves the record whose attempt log is being read. A missing
// job yields a nil record and nil error so callers report an empty log.
func (m *Store) attemptsOf(jobID id.JobID) (*record, error) {
	if m.closed {
		return nil, taskq.ErrStoreClosed
	}
	if !m.attemptLog {
		return nil, taskq.ErrAttemptsUnavailable
	}
	rec, ok := m.live(jobID.String())
	if !ok {
		return nil, nil //nolint:nilnil // absent job has an empty log
	}
	return rec, nil
}

func (m *Store) appendAttempt(rec *record, a *job.Attempt) {
	if !m.attemptLog {
		return
	}
	cp := *a
	rec.seq++
	if cp.ID == "" {
		cp.ID = strconv.Itoa(rec.seq)
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now().UTC()
	}
	rec.attempts = append(rec.attempts, &cp)
	if m.retention > 0 && len(rec.attempts) > m.retention {
		rec.attempts = rec.attempts[len(rec.attempts)-m.retention:]
	}
}
