package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry counters for the domain operations. They
// mirror the Prometheus page counters for deployments that export through an
// OTLP collector; HTTP instrumentation comes from the otelhttp wrapper.
type OTelMetrics struct {
	pageOperations  metric.Int64Counter
	pageViews       metric.Int64Counter
	versionsCreated metric.Int64Counter
}

// NewOTelMetrics creates the OTel metric instruments.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/ridgeline/intranet")

	m := &OTelMetrics{}
	var err error

	m.pageOperations, err = meter.Int64Counter(
		"wiki.page.operations",
		metric.WithDescription("Total number of page operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create page operation counter: %w", err)
	}

	m.pageViews, err = meter.Int64Counter(
		"wiki.page.views",
		metric.WithDescription("Total number of recorded page views"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create page view counter: %w", err)
	}

	m.versionsCreated, err = meter.Int64Counter(
		"wiki.versions.created",
		metric.WithDescription("Total number of page versions created"),
		metric.WithUnit("{version}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create version counter: %w", err)
	}

	return m, nil
}

// RecordPageOperation records one page operation outcome.
func (m *OTelMetrics) RecordPageOperation(ctx context.Context, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.pageOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

// RecordPageView records one page view.
func (m *OTelMetrics) RecordPageView(ctx context.Context) {
	m.pageViews.Add(ctx, 1)
}

// RecordVersionCreated records one new page version.
func (m *OTelMetrics) RecordVersionCreated(ctx context.Context) {
	m.versionsCreated.Add(ctx, 1)
}
