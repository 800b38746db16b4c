package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	mw "github.com/xraph/taskq/middleware"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func stringAttrs(set attribute.Set) map[string]string {
	out := make(map[string]string)
	for _, kv := range set.ToSlice() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestMetricsOutcome(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"ok", nil, "ok"},
		{"error", errors.New("division by zero"), "error"},
		{"stopped", fmt.Errorf("job stopped: %w", context.Canceled), "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reader := sdkmetric.NewManualReader()
			mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
			m := mw.MetricsWithMeter(mp.Meter("test"))

			err := m(context.Background(), newTestJob(), func(context.Context) error { return tt.err })
			if !errors.Is(err, tt.err) {
				t.Fatalf("error not passed through: %v", err)
			}

			metrics := collect(t, reader)

			count, ok := metrics["taskq.attempt.count"].Data.(metricdata.Sum[int64])
			if !ok || len(count.DataPoints) != 1 {
				t.Fatalf("taskq.attempt.count = %+v", metrics["taskq.attempt.count"])
			}
			if count.DataPoints[0].Value != 1 {
				t.Errorf("count = %d, want 1", count.DataPoints[0].Value)
			}
			want := map[string]string{"operation": "divide", "queue": "default", "outcome": tt.outcome}
			got := stringAttrs(count.DataPoints[0].Attributes)
			for k, v := range want {
				if got[k] != v {
					t.Errorf("attribute %s = %q, want %q", k, got[k], v)
				}
			}

			hist, ok := metrics["taskq.attempt.duration"].Data.(metricdata.Histogram[float64])
			if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
				t.Errorf("taskq.attempt.duration = %+v", metrics["taskq.attempt.duration"])
			}

			if r, ok := metrics["taskq.attempt.retries"].Data.(metricdata.Sum[int64]); ok && len(r.DataPoints) > 0 {
				t.Error("first attempt should not count as a retry")
			}
		})
	}
}

func TestMetricsRetries(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := mw.MetricsWithMeter(mp.Meter("test"))
	j := newTestJob()

	for n := 1; n <= 3; n++ {
		ctx := mw.WithAttempt(context.Background(), n)
		_ = m(ctx, j, func(context.Context) error { return nil })
	}

	retries, ok := collect(t, reader)["taskq.attempt.retries"].Data.(metricdata.Sum[int64])
	if !ok || len(retries.DataPoints) != 1 {
		t.Fatalf("retries = %+v", retries)
	}
	if retries.DataPoints[0].Value != 2 {
		t.Errorf("retries = %d, want 2", retries.DataPoints[0].Value)
	}
}

func TestMetricsDefaultProvider(t *testing.T) {
	called := false
	err := mw.Metrics()(context.Background(), newTestJob(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v", err, called)
	}
}
