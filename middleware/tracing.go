package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskq/job"
)

// tracerName is the instrumentation scope name for taskq tracing.
const tracerName = "github.com/xraph/taskq"

// Tracing returns middleware that wraps each attempt in a span from the
// global TracerProvider.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
//
// The span is named "taskq.<operation>" and carries the job id, queue,
// operands and attempt number. Failed attempts record the error; stopped
// attempts are marked with taskq.outcome=stopped but keep an unset status
// since the job did not fail.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		attrs := []attribute.KeyValue{
			attribute.String("taskq.job.id", j.ID.String()),
			attribute.String("taskq.queue", j.Queue),
			attribute.Int64("taskq.args.a", j.Args.A),
			attribute.Int("taskq.attempt", AttemptFrom(ctx)),
		}
		if j.Args.B != nil {
			attrs = append(attrs, attribute.Int64("taskq.args.b", *j.Args.B))
		}

		ctx, span := tracer.Start(ctx, "taskq."+string(j.Operation),
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindConsumer),
		)
		defer span.End()

		err := next(ctx)

		outcome := outcomeOf(err)
		span.SetAttributes(attribute.String("taskq.outcome", outcome))
		switch outcome {
		case outcomeOK:
			span.SetStatus(codes.Ok, "")
		case outcomeError:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return err
	}
}
