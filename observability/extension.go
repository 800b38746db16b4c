package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/reconcile"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/taskq/observability"

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.JobSubmitted  = (*MetricsExtension)(nil)
	_ ext.JobPolled     = (*MetricsExtension)(nil)
	_ ext.AttemptFailed = (*MetricsExtension)(nil)
	_ ext.JobFinished   = (*MetricsExtension)(nil)
	_ ext.JobFailed     = (*MetricsExtension)(nil)
	_ ext.JobStopped    = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters through an OTel
// meter. Register it as an extension on the engine and the worker to
// track admission rates, poll sources, retries and terminal outcomes.
//
// Instruments (all Int64Counter, attribute "operation"):
//   - taskq.job.submitted
//   - taskq.job.polled (plus "source": latest_attempt, legacy_field, unavailable)
//   - taskq.job.retried
//   - taskq.job.finished
//   - taskq.job.failed
//   - taskq.job.stopped
type MetricsExtension struct {
	JobSubmitted metric.Int64Counter
	JobPolled    metric.Int64Counter
	JobRetried   metric.Int64Counter
	JobFinished  metric.Int64Counter
	JobFailed    metric.Int64Counter
	JobStopped   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. On instrument errors the OTel API returns noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit("{job}")) //nolint:errcheck // noop fallback guaranteed by OTel API contract
		return c
	}
	return &MetricsExtension{
		JobSubmitted: counter("taskq.job.submitted", "Jobs admitted to the pending queue"),
		JobPolled:    counter("taskq.job.polled", "Status snapshots served"),
		JobRetried:   counter("taskq.job.retried", "Failed attempts followed by another attempt"),
		JobFinished:  counter("taskq.job.finished", "Jobs whose final attempt succeeded"),
		JobFailed:    counter("taskq.job.failed", "Jobs whose final attempt failed"),
		JobStopped:   counter("taskq.job.stopped", "Jobs abandoned by a worker"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func opAttr(j *job.Job) attribute.KeyValue {
	return attribute.String("operation", string(j.Operation))
}

// ── Admission and query hooks ───────────────────────

// OnJobSubmitted implements ext.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	m.JobSubmitted.Add(ctx, 1, metric.WithAttributes(opAttr(j)))
	return nil
}

// OnJobPolled implements ext.JobPolled.
func (m *MetricsExtension) OnJobPolled(ctx context.Context, j *job.Job, source reconcile.Source) error {
	m.JobPolled.Add(ctx, 1, metric.WithAttributes(
		opAttr(j),
		attribute.String("status", string(j.Status)),
		attribute.String("source", source.String()),
	))
	return nil
}

// ── Execution hooks ─────────────────────────────────

// OnAttemptFailed implements ext.AttemptFailed.
func (m *MetricsExtension) OnAttemptFailed(ctx context.Context, j *job.Job, _ int, _ error, _ time.Duration) error {
	m.JobRetried.Add(ctx, 1, metric.WithAttributes(opAttr(j)))
	return nil
}

// OnJobFinished implements ext.JobFinished.
func (m *MetricsExtension) OnJobFinished(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.JobFinished.Add(ctx, 1, metric.WithAttributes(opAttr(j)))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, metric.WithAttributes(opAttr(j)))
	return nil
}

// OnJobStopped implements ext.JobStopped.
func (m *MetricsExtension) OnJobStopped(ctx context.Context, j *job.Job, _ error) error {
	m.JobStopped.Add(ctx, 1, metric.WithAttributes(opAttr(j)))
	return nil
}
