package taskq

import "time"

// Config holds the tunables shared by the admission/query core and the
// reference Executor.
type Config struct {
	// Queue is the name of the pending queue jobs are admitted to.
	Queue string

	// PollInterval is the advisory interval returned to pollers. The
	// server never enforces it.
	PollInterval time.Duration

	// HistoryLimit is the maximum number of execution attempts returned
	// for a job (and retained by stores that honour it).
	HistoryLimit int

	// StoreTimeout bounds every individual Work Store call.
	StoreTimeout time.Duration

	// ResultTTL is how long a finished job is retained. Zero or negative
	// disables expiry.
	ResultTTL time.Duration

	// FailureTTL is how long a failed or stopped job is retained. Zero or
	// negative disables expiry.
	FailureTTL time.Duration

	// LocationPrefix is prepended to a job id to form the status location
	// returned by admission.
	LocationPrefix string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Queue:          "default",
		PollInterval:   2 * time.Second,
		HistoryLimit:   10,
		StoreTimeout:   2 * time.Second,
		ResultTTL:      500 * time.Second,
		FailureTTL:     365 * 24 * time.Hour,
		LocationPrefix: "/tasks/job/",
	}
}

// PollIntervalSeconds returns the advisory poll interval rounded to whole
// seconds, never less than one.
func (c Config) PollIntervalSeconds() int {
	s := int(c.PollInterval / time.Second)
	if s < 1 {
		return 1
	}
	return s
}
