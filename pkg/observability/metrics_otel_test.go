package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider installs a meter provider backed by a manual reader
func setupTestMeterProvider(t *testing.T) (*metric.MeterProvider, *metric.ManualReader) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return provider, reader
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	return rm
}

func findSum(rm metricdata.ResourceMetrics, name string) (metricdata.Sum[int64], bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				return sum, ok
			}
		}
	}
	return metricdata.Sum[int64]{}, false
}

func TestNewOTelMetrics(t *testing.T) {
	provider, _ := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v, want nil", err)
	}
	if m == nil {
		t.Fatal("NewOTelMetrics() returned nil metrics")
	}

	if m.pageOperations == nil {
		t.Error("pageOperations is nil")
	}
	if m.pageViews == nil {
		t.Error("pageViews is nil")
	}
	if m.versionsCreated == nil {
		t.Error("versionsCreated is nil")
	}
}

func TestOTelMetrics_RecordPageOperation(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		err       error
	}{
		{
			name:      "successful create",
			operation: "create",
			err:       nil,
		},
		{
			name:      "failed update",
			operation: "update",
			err:       errors.New("version conflict"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, reader := setupTestMeterProvider(t)
			defer func() {
				if err := provider.Shutdown(context.Background()); err != nil {
					t.Logf("Error shutting down provider: %v", err)
				}
			}()

			m, err := NewOTelMetrics()
			if err != nil {
				t.Fatalf("NewOTelMetrics() error = %v", err)
			}

			m.RecordPageOperation(context.Background(), tt.operation, tt.err)

			rm := collectMetrics(t, reader)
			sum, ok := findSum(rm, "wiki.page.operations")
			if !ok {
				t.Fatal("Page operation counter not recorded")
			}
			if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
				t.Errorf("Expected one data point with value 1, got %+v", sum.DataPoints)
			}
		})
	}
}

func TestOTelMetrics_RecordPageView(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		m.RecordPageView(ctx)
	}

	rm := collectMetrics(t, reader)
	sum, ok := findSum(rm, "wiki.page.views")
	if !ok {
		t.Fatal("Page view counter not recorded")
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Errorf("Expected counter value 3, got %+v", sum.DataPoints)
	}
}

func TestOTelMetrics_RecordVersionCreated(t *testing.T) {
	provider, reader := setupTestMeterProvider(t)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	}()

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	m.RecordVersionCreated(context.Background())

	rm := collectMetrics(t, reader)
	sum, ok := findSum(rm, "wiki.versions.created")
	if !ok {
		t.Fatal("Version counter not recorded")
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("Expected counter value 1, got %+v", sum.DataPoints)
	}
}
