package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/volshift/task"
)

// meterName is the instrumentation scope name for volshift metrics.
const meterName = "github.com/xraph/volshift"

// Metrics returns middleware that records per-stage execution metrics
// using the global MeterProvider.
//
// Instruments:
//   - volshift.stage.duration (Float64Histogram): execution time in
//     seconds, with attributes stage and status ("ok" or "error")
//   - volshift.stage.executions (Int64Counter): total executions, with
//     the same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The API returns noop instruments on error.
	duration, _ := meter.Float64Histogram(
		"volshift.stage.duration",
		metric.WithDescription("Duration of stage execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"volshift.stage.executions",
		metric.WithDescription("Total number of stage executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, t *task.Task, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("stage", t.Stage.String()),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
