package observability_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/event"
	"github.com/xraph/volshift/ext"
	"github.com/xraph/volshift/observability"
	"github.com/xraph/volshift/task"
	"github.com/xraph/volshift/workflow"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

// counts sums every Int64 counter by name.
func counts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Counters(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()
	tk := task.New(workflow.StageStopTarget, "tok", nil)

	_ = e.OnStageInitiated(ctx, tk, "i-1")
	_ = e.OnStageInitiated(ctx, tk, "i-2")
	_ = e.OnTaskCompleted(ctx, tk, time.Second)
	_ = e.OnTaskFailed(ctx, tk, volshift.ErrExternalCall)
	_ = e.OnAttachRetrying(ctx, tk, 1, errors.New("busy"))
	_ = e.OnTokenRedeemed(ctx, workflow.StageStopTarget, "i-1")
	_ = e.OnCorrelationMiss(ctx, event.KindInstanceStateChange, "i-3")
	_ = e.OnExecutionStarted(ctx, "arn", "i-1")
	_ = e.OnDLQ(ctx, &dlq.Entry{Stage: workflow.StageStopTarget, Code: workflow.ErrorExternalCall})

	want := map[string]int64{
		"volshift.stage.initiated":   2,
		"volshift.task.completed":    1,
		"volshift.task.failed":       1,
		"volshift.attach.retries":    1,
		"volshift.token.redeemed":    1,
		"volshift.correlation.miss":  1,
		"volshift.execution.started": 1,
		"volshift.dlq.entries":       1,
	}
	got := counts(t, reader)
	for name, n := range want {
		if got[name] != n {
			t.Errorf("%s = %d, want %d", name, got[name], n)
		}
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()
	reg := ext.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.Register(e)

	reg.EmitCorrelationMiss(context.Background(), event.KindAgentActive, "i-1")

	if got := counts(t, reader)["volshift.correlation.miss"]; got != 1 {
		t.Errorf("correlation miss = %d, want 1", got)
	}
}

func TestMetricsExtension_DefaultMeterSafe(_ *testing.T) {
	e := observability.NewMetricsExtension()
	_ = e.OnExecutionStarted(context.Background(), "arn", "i-1")
}
