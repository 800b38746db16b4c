// Package observability provides an OpenTelemetry metrics extension for
// taskq. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for admission, polling (by reconciliation source),
// retries and terminal outcomes.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
