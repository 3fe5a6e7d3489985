package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/volshift/task"
)

// tracerName is the instrumentation scope name for volshift tracing.
const tracerName = "github.com/xraph/volshift"

// Tracing returns middleware that wraps stage execution in an
// OpenTelemetry span. Without a global TracerProvider the noop tracer is
// used and this middleware is a pass-through.
//
// Span attributes: volshift.task.id, volshift.stage.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		ctx, span := tracer.Start(ctx, "volshift.stage.execute",
			trace.WithAttributes(
				attribute.String("volshift.task.id", t.ID),
				attribute.String("volshift.stage", t.Stage.String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
