// Package config loads the configuration of the taskq binaries from a
// YAML file with TASKQ_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/dwp"
	"github.com/xraph/taskq/queue"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Engine  EngineConfig  `yaml:"engine"`
	Worker  WorkerConfig  `yaml:"worker"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	DWPPath         string        `yaml:"dwp_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver           string `yaml:"driver"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`
	AttemptRetention int    `yaml:"attempt_retention"`
	AttemptLog       bool   `yaml:"attempt_log"`
}

type EngineConfig struct {
	Queue          string        `yaml:"queue"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	HistoryLimit   int           `yaml:"history_limit"`
	StoreTimeout   time.Duration `yaml:"store_timeout"`
	ResultTTL      time.Duration `yaml:"result_ttl"`
	FailureTTL     time.Duration `yaml:"failure_ttl"`
	LocationPrefix string        `yaml:"location_prefix"`
}

type WorkerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Concurrency  int           `yaml:"concurrency"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Timeout      time.Duration `yaml:"timeout"`
	Backoff      BackoffConfig `yaml:"backoff"`
	Limits       []LimitConfig `yaml:"limits"`
}

type BackoffConfig struct {
	Kind    string        `yaml:"kind"`
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

type LimitConfig struct {
	Operation      string  `yaml:"operation"`
	MaxConcurrency int     `yaml:"max_concurrency"`
	RateLimit      float64 `yaml:"rate_limit"`
	RateBurst      int     `yaml:"rate_burst"`
}

type AuthConfig struct {
	Keys []KeyConfig `yaml:"keys"`
}

type KeyConfig struct {
	Token   string   `yaml:"token"`
	Subject string   `yaml:"subject"`
	Scopes  []string `yaml:"scopes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Audit emits one structured record per job lifecycle event.
	Audit bool `yaml:"audit"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	core := taskq.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			DWPPath:         "/dwp",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:           DriverMemory,
			RedisAddr:        "localhost:6379",
			AttemptRetention: core.HistoryLimit,
			AttemptLog:       true,
		},
		Engine: EngineConfig{
			Queue:          core.Queue,
			PollInterval:   core.PollInterval,
			HistoryLimit:   core.HistoryLimit,
			StoreTimeout:   core.StoreTimeout,
			ResultTTL:      core.ResultTTL,
			FailureTTL:     core.FailureTTL,
			LocationPrefix: core.LocationPrefix,
		},
		Worker: WorkerConfig{
			Enabled:      true,
			Concurrency:  4,
			PollInterval: 250 * time.Millisecond,
			MaxAttempts:  1,
			Backoff: BackoffConfig{
				Kind:    string(backoff.KindJitter),
				Initial: 100 * time.Millisecond,
				Max:     5 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TASKQ_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("TASKQ_ADDR", &c.Server.Addr)
	str("TASKQ_STORE", &c.Store.Driver)
	str("TASKQ_REDIS_ADDR", &c.Store.RedisAddr)
	str("TASKQ_REDIS_PASSWORD", &c.Store.RedisPassword)
	str("TASKQ_QUEUE", &c.Engine.Queue)
	str("TASKQ_LOG_LEVEL", &c.Logging.Level)
	str("TASKQ_LOG_FORMAT", &c.Logging.Format)

	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	return errors.Join(
		boolean("TASKQ_LOG_AUDIT", &c.Logging.Audit),
		num("TASKQ_REDIS_DB", &c.Store.RedisDB),
		num("TASKQ_HISTORY_LIMIT", &c.Engine.HistoryLimit),
		num("TASKQ_WORKER_CONCURRENCY", &c.Worker.Concurrency),
		num("TASKQ_MAX_ATTEMPTS", &c.Worker.MaxAttempts),
		dur("TASKQ_POLL_INTERVAL", &c.Engine.PollInterval),
		dur("TASKQ_RESULT_TTL", &c.Engine.ResultTTL),
		dur("TASKQ_FAILURE_TTL", &c.Engine.FailureTTL),
	)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server addr is required"))
	}
	if !strings.HasPrefix(c.Server.DWPPath, "/") {
		errs = append(errs, fmt.Errorf("server dwp_path must start with /, got %q", c.Server.DWPPath))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store redis_addr is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store driver: %s (valid: memory, redis)", c.Store.Driver))
	}

	if c.Engine.Queue == "" {
		errs = append(errs, errors.New("engine queue is required"))
	}
	if c.Engine.HistoryLimit < 1 {
		errs = append(errs, errors.New("engine history_limit must be at least 1"))
	}
	if c.Engine.StoreTimeout <= 0 {
		errs = append(errs, errors.New("engine store_timeout must be positive"))
	}

	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker concurrency must be at least 1"))
	}
	if c.Worker.MaxAttempts < 1 {
		errs = append(errs, errors.New("worker max_attempts must be at least 1"))
	}
	if _, err := c.Backoff(); err != nil {
		errs = append(errs, err)
	}
	for _, l := range c.Worker.Limits {
		if l.Operation == "" {
			errs = append(errs, errors.New("worker limit operation is required"))
		}
		if l.MaxConcurrency < 0 || l.RateLimit < 0 || l.RateBurst < 0 {
			errs = append(errs, fmt.Errorf("worker limit for %q must be non-negative", l.Operation))
		}
	}

	for i, k := range c.Auth.Keys {
		if k.Token == "" {
			errs = append(errs, fmt.Errorf("auth key %d has an empty token", i))
		}
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Core returns the library configuration.
func (c *Config) Core() taskq.Config {
	return taskq.NewConfig(
		taskq.WithQueue(c.Engine.Queue),
		taskq.WithPollInterval(c.Engine.PollInterval),
		taskq.WithHistoryLimit(c.Engine.HistoryLimit),
		taskq.WithStoreTimeout(c.Engine.StoreTimeout),
		taskq.WithResultTTL(c.Engine.ResultTTL),
		taskq.WithFailureTTL(c.Engine.FailureTTL),
		taskq.WithLocationPrefix(c.Engine.LocationPrefix),
	)
}

// Backoff builds the retry strategy.
func (c *Config) Backoff() (backoff.Strategy, error) {
	return backoff.Parse(c.Worker.Backoff.Kind, c.Worker.Backoff.Initial, c.Worker.Backoff.Max)
}

// Limits converts the per-operation limits.
func (c *Config) Limits() []queue.Config {
	out := make([]queue.Config, 0, len(c.Worker.Limits))
	for _, l := range c.Worker.Limits {
		out = append(out, queue.Config{
			Operation:      l.Operation,
			MaxConcurrency: l.MaxConcurrency,
			RateLimit:      l.RateLimit,
			RateBurst:      l.RateBurst,
		})
	}
	return out
}

// Authenticator returns an API-key authenticator, or a no-op one when no
// keys are configured.
func (c *Config) Authenticator() dwp.Authenticator {
	if len(c.Auth.Keys) == 0 {
		return &dwp.NoopAuthenticator{}
	}
	entries := make([]dwp.APIKeyEntry, 0, len(c.Auth.Keys))
	for _, k := range c.Auth.Keys {
		scopes := k.Scopes
		if len(scopes) == 0 {
			scopes = []string{dwp.ScopeJobRead}
		}
		entries = append(entries, dwp.APIKeyEntry{
			Token:    k.Token,
			Identity: dwp.Identity{Subject: k.Subject, Scopes: scopes},
		})
	}
	return dwp.NewAPIKeyAuthenticator(entries...)
}

// Logger builds a slog logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", s)
	}
}
