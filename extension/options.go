package extension

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskq/backoff"
	"github.com/xraph/taskq/dwp"
	"github.com/xraph/taskq/ext"
	mw "github.com/xraph/taskq/middleware"
	"github.com/xraph/taskq/queue"
	"github.com/xraph/taskq/store"
)

// ExtOption configures the taskq extension.
type ExtOption func(*Extension)

// WithStore sets the Work Store.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) { e.store = s }
}

// WithConcurrency sets the number of worker goroutines.
func WithConcurrency(n int) ExtOption {
	return func(e *Extension) { e.config.Concurrency = n }
}

// WithMaxAttempts sets the number of executions per job.
func WithMaxAttempts(n int) ExtOption {
	return func(e *Extension) { e.config.MaxAttempts = n }
}

// WithExtension registers a lifecycle hook extension.
func WithExtension(x ext.Extension) ExtOption {
	return func(e *Extension) {
		e.exts = append(e.exts, x)
	}
}

// WithMiddleware adds job middleware to the executor.
func WithMiddleware(m mw.Middleware) ExtOption {
	return func(e *Extension) {
		e.mws = append(e.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy.
func WithBackoff(b backoff.Strategy) ExtOption {
	return func(e *Extension) { e.bo = b }
}

// WithQueueLimits sets per-operation concurrency and rate limits.
func WithQueueLimits(limits ...queue.Config) ExtOption {
	return func(e *Extension) {
		e.limits = append(e.limits, limits...)
	}
}

// WithBasePath sets the URL prefix for the HTTP API routes.
func WithBasePath(path string) ExtOption {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes disables the registration of HTTP routes.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableWorker disables the in-process worker pool.
func WithDisableWorker() ExtOption {
	return func(e *Extension) { e.config.DisableWorker = true }
}

// WithDWP mounts the wire protocol endpoints with the given server options.
func WithDWP(opts ...dwp.Option) ExtOption {
	return func(e *Extension) {
		e.config.EnableDWP = true
		e.dwpOpts = append(e.dwpOpts, opts...)
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ExtOption {
	return func(e *Extension) { e.logger = l }
}

// WithTracerProvider sets the tracer provider for the engine and the
// tracing middleware.
func WithTracerProvider(tp trace.TracerProvider) ExtOption {
	return func(e *Extension) { e.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for the engine and the
// metrics middleware.
func WithMeterProvider(mp metric.MeterProvider) ExtOption {
	return func(e *Extension) { e.meterProvider = mp }
}
