// Package ext defines the extension system for taskq.
//
// Extensions are notified of lifecycle events and can react to them, for
// example by recording metrics or writing audit logs. Each lifecycle hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobFinished(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    log.Printf("job %s finished in %s", j.ID, elapsed)
//	    return nil
//	}
//
// # Admission and Query Hooks
//
//   - [JobSubmitted]: job was admitted to the pending queue
//   - [JobPolled]: a status snapshot was served
//
// # Execution Hooks
//
//   - [JobStarted]: worker began executing the job
//   - [AttemptFailed]: an attempt failed and another will run
//   - [JobFinished]: the final attempt succeeded
//   - [JobFailed]: the final attempt failed
//   - [JobStopped]: the worker abandoned the job
//
// # Other Hooks
//
//   - [Shutdown]: the worker pool is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never propagated.
package ext
