// Package queue gates how fast the worker pool may start jobs.
//
// Limits are keyed by operation name so a slow or expensive operation can be
// throttled without affecting the others:
//
//	m := queue.NewManager(
//	    queue.Config{Operation: "divide", MaxConcurrency: 2},
//	    queue.Config{Operation: "multiply", RateLimit: 5, RateBurst: 10},
//	)
//	if err := m.Wait(ctx, "divide"); err == nil {
//	    defer m.Release("divide")
//	    // execute the job
//	}
//
// A token bucket (golang.org/x/time/rate) enforces RateLimit and an active
// counter enforces MaxConcurrency. Operations without a [Config] are only
// bounded by the pool's own concurrency.
package queue
