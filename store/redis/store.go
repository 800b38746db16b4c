package redis

import (
	"context"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/store"
)

// Compile-time interface checks.
var (
	_ job.Store          = (*Store)(nil)
	_ job.ExecutionStore = (*Store)(nil)
	_ store.Store        = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithQueue sets the pending queue counted by CountPending and drained by
// DequeueJob. Defaults to "default".
func WithQueue(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.queue = name
		}
	}
}

// WithAttemptRetention caps each attempt stream to the n most recent
// entries. Defaults to 10.
func WithAttemptRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = int64(n)
		}
	}
}

// WithoutAttemptLog disables the attempt streams. Only the legacy outcome
// fields are written and attempt reads report taskq.ErrAttemptsUnavailable.
// Servers without stream support (Redis < 5) must be configured this way.
func WithoutAttemptLog() Option {
	return func(s *Store) { s.attemptLog = false }
}

// Store implements store.Store backed by Redis.
type Store struct {
	client     goredis.UniversalClient
	logger     *slog.Logger
	queue      string
	retention  int64
	attemptLog bool
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:     client,
		logger:     slog.Default(),
		queue:      "default",
		retention:  10,
		attemptLog: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

