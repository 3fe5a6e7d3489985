package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension        = (*MetricsExtension)(nil)
	_ ext.TaskCompleted    = (*MetricsExtension)(nil)
	_ ext.TaskFailed       = (*MetricsExtension)(nil)
	_ ext.StageInitiated   = (*MetricsExtension)(nil)
	_ ext.AttachRetrying   = (*MetricsExtension)(nil)
	_ ext.TokenRedeemed    = (*MetricsExtension)(nil)
	_ ext.CorrelationMiss  = (*MetricsExtension)(nil)
	_ ext.ExecutionStarted = (*MetricsExtension)(nil)
	_ ext.DLQ              = (*MetricsExtension)(nil)
)

// meterName is the instrumentation scope of the extension.
const meterName = "github.com/xraph/volshift/observability"

// MetricsExtension records lifecycle counters. Register it with the
// engine to track stage throughput, stalls and failures.
type MetricsExtension struct {
	TaskCompleted    metric.Int64Counter
	TaskFailed       metric.Int64Counter
	StageInitiated   metric.Int64Counter
	AttachRetries    metric.Int64Counter
	TokenRedeemed    metric.Int64Counter
	CorrelationMiss  metric.Int64Counter
	ExecutionStarted metric.Int64Counter
	DLQ              metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// The API returns a noop instrument on error.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		TaskCompleted:    counter("volshift.task.completed", "Stage handlers that returned without error"),
		TaskFailed:       counter("volshift.task.failed", "Stage handlers that returned an error"),
		StageInitiated:   counter("volshift.stage.initiated", "Tokens parked in the correlation store"),
		AttachRetries:    counter("volshift.attach.retries", "Failed attach attempts"),
		TokenRedeemed:    counter("volshift.token.redeemed", "Tokens redeemed by resumers"),
		CorrelationMiss:  counter("volshift.correlation.miss", "Events that matched no live record"),
		ExecutionStarted: counter("volshift.execution.started", "Runs started by alarms"),
		DLQ:              counter("volshift.dlq.entries", "Entries written to the dead letter queue"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func stageAttr(s workflow.Stage) metric.AddOption {
	return metric.WithAttributes(attribute.String("stage", s.String()))
}

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(ctx context.Context, t *task.Task, _ time.Duration) error {
	m.TaskCompleted.Add(ctx, 1, stageAttr(t.Stage))
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (m *MetricsExtension) OnTaskFailed(ctx context.Context, t *task.Task, err error) error {
	m.TaskFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", t.Stage.String()),
		attribute.String("code", task.ErrorCode(err)),
	))
	return nil
}

// OnStageInitiated implements ext.StageInitiated.
func (m *MetricsExtension) OnStageInitiated(ctx context.Context, t *task.Task, _ string) error {
	m.StageInitiated.Add(ctx, 1, stageAttr(t.Stage))
	return nil
}

// OnAttachRetrying implements ext.AttachRetrying.
func (m *MetricsExtension) OnAttachRetrying(ctx context.Context, t *task.Task, _ int, _ error) error {
	m.AttachRetries.Add(ctx, 1, stageAttr(t.Stage))
	return nil
}

// OnTokenRedeemed implements ext.TokenRedeemed.
func (m *MetricsExtension) OnTokenRedeemed(ctx context.Context, stage workflow.Stage, _ string) error {
	m.TokenRedeemed.Add(ctx, 1, stageAttr(stage))
	return nil
}

// OnCorrelationMiss implements ext.CorrelationMiss.
func (m *MetricsExtension) OnCorrelationMiss(ctx context.Context, kind event.Kind, _ string) error {
	m.CorrelationMiss.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	return nil
}

// OnExecutionStarted implements ext.ExecutionStarted.
func (m *MetricsExtension) OnExecutionStarted(ctx context.Context, _, _ string) error {
	m.ExecutionStarted.Add(ctx, 1)
	return nil
}

// OnDLQ implements ext.DLQ.
func (m *MetricsExtension) OnDLQ(ctx context.Context, e *dlq.Entry) error {
	m.DLQ.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", e.Stage.String()),
		attribute.String("code", e.Code),
	))
	return nil
}
