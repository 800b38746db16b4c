// Package worker is the reference Executor for taskq.
//
// An [Executor] evaluates a single dequeued job through the middleware
// chain, records every non-final attempt on the job's attempt log and
// writes the terminal status, legacy outcome fields and final attempt back
// through the Work Store in one step. A [Pool] runs a fixed number of
// goroutines that dequeue from the store and hand jobs to the Executor.
//
// Jobs interrupted by shutdown or cancellation end as stopped rather than
// failed.
package worker
