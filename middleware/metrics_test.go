package middleware_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	mw "github.com/xraph/volshift/middleware"
)

func setupTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestMetrics_RecordsDuration(t *testing.T) {
	reader, mp := setupTestMeter()
	m := mw.MetricsWithMeter(mp.Meter("test"))

	_ = m(context.Background(), newTestTask(), func(_ context.Context) error { return nil })

	metric := findMetric(collectMetrics(t, reader), "volshift.stage.duration")
	if metric == nil {
		t.Fatal("volshift.stage.duration metric not found")
	}
	hist, ok := metric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("expected Histogram[float64] data type")
	}
	if len(hist.DataPoints) == 0 || hist.DataPoints[0].Count != 1 {
		t.Fatalf("data points = %+v", hist.DataPoints)
	}
	if got := attrValue(hist.DataPoints[0].Attributes.ToSlice(), "stage"); got != "create-volume" {
		t.Errorf("stage attribute = %q", got)
	}
}

func TestMetrics_RecordsExecutionStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "ok"},
		{"failure", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, mp := setupTestMeter()
			m := mw.MetricsWithMeter(mp.Meter("test"))

			_ = m(context.Background(), newTestTask(), func(_ context.Context) error { return tt.err })

			metric := findMetric(collectMetrics(t, reader), "volshift.stage.executions")
			if metric == nil {
				t.Fatal("volshift.stage.executions metric not found")
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatal("expected Sum[int64] data type")
			}
			if len(sum.DataPoints) == 0 || sum.DataPoints[0].Value != 1 {
				t.Fatalf("data points = %+v", sum.DataPoints)
			}
			if got := attrValue(sum.DataPoints[0].Attributes.ToSlice(), "status"); got != tt.status {
				t.Errorf("status = %q, want %q", got, tt.status)
			}
		})
	}
}
