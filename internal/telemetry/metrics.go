// Package telemetry provides OpenTelemetry instrumentation for the registry
// daemon.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RefreshMetricsMeterName is the name used for the refresh metrics meter
const RefreshMetricsMeterName = "github.com/caskhub/caskd/registry"

// RefreshMetrics holds the OpenTelemetry instruments for refresh passes
type RefreshMetrics struct {
	refreshDuration   metric.Float64Histogram
	repositoriesTotal metric.Int64Gauge
}

// NewRefreshMetrics creates a new RefreshMetrics instance with the given
// meter provider. If provider is nil, it returns nil (no-op metrics).
func NewRefreshMetrics(provider metric.MeterProvider) (*RefreshMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RefreshMetricsMeterName)

	refreshDuration, err := meter.Float64Histogram(
		"caskd_repository_refresh_duration_seconds",
		metric.WithDescription("Duration of per-repository refresh operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	repositoriesTotal, err := meter.Int64Gauge(
		"caskd_repositories_total",
		metric.WithDescription("Number of registered repositories"),
		metric.WithUnit("{repository}"),
	)
	if err != nil {
		return nil, err
	}

	return &RefreshMetrics{
		refreshDuration:   refreshDuration,
		repositoriesTotal: repositoriesTotal,
	}, nil
}

// RecordRefreshDuration records the duration of one repository refresh
func (m *RefreshMetrics) RecordRefreshDuration(ctx context.Context, repository string, duration time.Duration, success bool) {
	if m == nil || m.refreshDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("repository", repository),
		attribute.Bool("success", success),
	}

	m.refreshDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRepositoriesTotal records the current number of registered repositories
func (m *RefreshMetrics) RecordRepositoriesTotal(ctx context.Context, count int64) {
	if m == nil || m.repositoriesTotal == nil {
		return
	}

	m.repositoriesTotal.Record(ctx, count)
}
