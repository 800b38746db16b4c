// Package store defines the aggregate Work Store interface implemented by
// every backend.
package store

import (
	"context"

	"github.com/xraph/taskq/job"
)

// Store is the aggregate persistence interface: the query surface used by
// the engine, the execution surface used by workers, and lifecycle.
type Store interface {
	job.ExecutionStore

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases store-level resources. The underlying connection is
	// owned by whoever opened it.
	Close() error
}
