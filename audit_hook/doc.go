// Package audithook is a taskq extension that turns job lifecycle hooks
// into structured audit events.
//
// Every hook emits an [AuditEvent] through the [Recorder] interface with a
// severity (info for normal progress, warning for retried attempts and
// stopped jobs, critical for failed jobs) and metadata describing the
// operation, operands and queue.
//
// # Logging audit trail
//
//	x := extension.New(
//	    extension.WithStore(st),
//	    extension.WithExtension(audithook.New(audithook.SlogRecorder(logger))),
//	)
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobStopped,
//	    ),
//	)
package audithook
