package taskq

import "time"

// Option configures a Config.
type Option func(*Config)

// NewConfig returns DefaultConfig with the given options applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithQueue sets the pending queue name.
func WithQueue(name string) Option {
	return func(c *Config) { c.Queue = name }
}

// WithPollInterval sets the advisory client poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// WithHistoryLimit sets the maximum number of attempts returned per job.
func WithHistoryLimit(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.HistoryLimit = n
		}
	}
}

// WithStoreTimeout bounds each Work Store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Config) { c.StoreTimeout = d }
}

// WithResultTTL sets the retention of finished jobs.
func WithResultTTL(d time.Duration) Option {
	return func(c *Config) { c.ResultTTL = d }
}

// WithFailureTTL sets the retention of failed and stopped jobs.
func WithFailureTTL(d time.Duration) Option {
	return func(c *Config) { c.FailureTTL = d }
}

// WithLocationPrefix sets the prefix used to build status locations.
func WithLocationPrefix(prefix string) Option {
	return func(c *Config) { c.LocationPrefix = prefix }
}
