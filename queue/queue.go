package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines per-operation start limits.
type Config struct {
	// Operation is the operation name the limits apply to.
	Operation string

	// MaxConcurrency caps how many jobs of this operation run at once in
	// the local pool. Zero means no operation-specific cap.
	MaxConcurrency int

	// RateLimit is the sustained number of starts per second. Zero
	// disables rate limiting.
	RateLimit float64

	// RateBurst is the token-bucket burst. Defaults to 1 when RateLimit is
	// set.
	RateBurst int
}

type opState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager enforces per-operation limits. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	ops   map[string]*opState
	retry time.Duration
}

// NewManager creates a Manager with the given configurations.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		ops:   make(map[string]*opState, len(configs)),
		retry: 10 * time.Millisecond,
	}
	for _, cfg := range configs {
		m.ops[cfg.Operation] = newOpState(cfg)
	}
	return m
}

func newOpState(cfg Config) *opState {
	s := &opState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Acquire reports whether a job of the given operation may start now. On
// true the caller must call Release when the job completes.
func (m *Manager) Acquire(operation string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.ops[operation]
	if s == nil {
		return true
	}
	if s.config.MaxConcurrency > 0 && s.active >= s.config.MaxConcurrency {
		return false
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return false
	}
	s.active++
	return true
}

// Wait blocks until Acquire succeeds or ctx is done. A dequeued job is
// never handed back to the store, so the pool waits here instead.
func (m *Manager) Wait(ctx context.Context, operation string) error {
	for {
		if m.Acquire(operation) {
			return nil
		}

		delay := m.retry
		m.mu.Lock()
		if s := m.ops[operation]; s != nil && s.limiter != nil {
			if r := s.limiter.Reserve(); r.OK() {
				if d := r.Delay(); d > delay {
					delay = d
				}
				r.Cancel()
			}
		}
		m.mu.Unlock()

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Release frees a concurrency slot for the operation.
func (m *Manager) Release(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.ops[operation]; s != nil && s.active > 0 {
		s.active--
	}
}

// SetConfig updates (or creates) the limits for an operation, keeping its
// current active count.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newOpState(cfg)
	if existing := m.ops[cfg.Operation]; existing != nil {
		s.active = existing.active
	}
	m.ops[cfg.Operation] = s
}

// ActiveCount returns the number of running jobs for an operation.
func (m *Manager) ActiveCount(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.ops[operation]; s != nil {
		return s.active
	}
	return 0
}
