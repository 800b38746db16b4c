package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskq/job"
)

// meterName is the instrumentation scope name for taskq metrics.
const meterName = "github.com/xraph/taskq"

// Metrics returns middleware that records per-attempt execution metrics
// using the global OTel MeterProvider.
//
// Instruments:
//   - taskq.attempt.duration (Float64Histogram, seconds)
//   - taskq.attempt.count (Int64Counter)
//   - taskq.attempt.retries (Int64Counter), attempts after the first
//
// Duration and count carry operation, queue and outcome ("ok", "error" or
// "stopped").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The OTel API hands back noop instruments alongside any error.
	duration, _ := meter.Float64Histogram(
		"taskq.attempt.duration",
		metric.WithDescription("Duration of job attempts in seconds"),
		metric.WithUnit("s"),
	)
	count, _ := meter.Int64Counter(
		"taskq.attempt.count",
		metric.WithDescription("Job attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	retries, _ := meter.Int64Counter(
		"taskq.attempt.retries",
		metric.WithDescription("Job attempts beyond the first"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, j *job.Job, next Handler) error {
		if AttemptFrom(ctx) > 1 {
			retries.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", string(j.Operation)),
			))
		}

		start := time.Now()
		err := next(ctx)

		attrs := metric.WithAttributes(
			attribute.String("operation", string(j.Operation)),
			attribute.String("queue", j.Queue),
			attribute.String("outcome", outcomeOf(err)),
		)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		count.Add(ctx, 1, attrs)

		return err
	}
}
