package extension

import (
	"time"

	"github.com/xraph/taskq"
)

// Config holds configuration for the embedded taskq extension.
type Config struct {
	// BasePath is the URL prefix for the HTTP API routes.
	BasePath string `json:"base_path" yaml:"base_path"`

	// DisableRoutes disables the registration of HTTP routes.
	// Useful when embedding taskq for background processing only.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes"`

	// DisableWorker runs the extension as a pure admission/query front end.
	DisableWorker bool `json:"disable_worker" yaml:"disable_worker"`

	// EnableDWP mounts the wire protocol endpoints.
	EnableDWP bool `json:"enable_dwp" yaml:"enable_dwp"`

	// DWPBasePath overrides the wire protocol base path ("/dwp").
	DWPBasePath string `json:"dwp_base_path" yaml:"dwp_base_path"`

	// Concurrency is the number of worker goroutines.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// PollInterval is how long an idle worker waits before polling again.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// MaxAttempts bounds the executions of a single job.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// JobTimeout bounds a single execution attempt. Zero disables it.
	JobTimeout time.Duration `json:"job_timeout" yaml:"job_timeout"`

	// Core holds the engine configuration.
	Core taskq.Config `json:"core" yaml:"core"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		PollInterval: 250 * time.Millisecond,
		MaxAttempts:  1,
		Core:         taskq.DefaultConfig(),
	}
}
