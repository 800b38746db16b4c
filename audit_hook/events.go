package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobSubmitted  = "job.submitted"
	ActionJobPolled     = "job.polled"
	ActionJobStarted    = "job.started"
	ActionAttemptFailed = "job.attempt_failed"
	ActionJobFinished   = "job.finished"
	ActionJobFailed     = "job.failed"
	ActionJobStopped    = "job.stopped"
)

// CategoryJob groups every job action.
const CategoryJob = "taskq.job"

// ResourceJob is the Resource field of every event.
const ResourceJob = "job"

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobSubmitted,
		ActionJobPolled,
		ActionJobStarted,
		ActionAttemptFailed,
		ActionJobFinished,
		ActionJobFailed,
		ActionJobStopped,
	}
}
