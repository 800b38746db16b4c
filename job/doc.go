// Package job defines the job record, its lifecycle state machine, the
// closed set of arithmetic operations, execution attempts and the Work
// Store contracts.
//
// # Lifecycle
//
//	queued → started → finished
//	queued → started → failed
//	queued → started → stopped
//
// Transitions never skip a state and never leave a terminal one. Retries
// performed by an Executor add attempts under the same id while the job
// stays started; the terminal state reflects the final attempt. Absence
// is a lookup outcome ([taskq.ErrJobNotFound]), not a state.
//
// # Operations
//
// [Operation] is a closed enumeration. Each variant knows its arity and
// how to evaluate itself:
//
//	add, subtract, multiply   a ∘ b, integer
//	divide                    a / b, floating point; b = 0 fails
//	increment                 a + 1
//
// # Stores
//
// [Store] is what the admission and query services need. [ExecutionStore]
// adds the dequeue and completion writes used by an Executor. Both are
// implemented by store/redis and store/memory.
package job
