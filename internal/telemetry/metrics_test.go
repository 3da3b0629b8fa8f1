package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewRefreshMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	metrics, err := NewRefreshMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)

	// Nil metrics must be safe to use
	metrics.RecordRefreshDuration(context.Background(), "https://apps.example", time.Second, true)
	metrics.RecordRepositoriesTotal(context.Background(), 3)
}

func TestRefreshMetrics_Record(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewRefreshMetrics(provider)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	metrics.RecordRefreshDuration(ctx, "https://apps.example", 2*time.Second, true)
	metrics.RecordRefreshDuration(ctx, "https://apps.example", time.Second, false)
	metrics.RecordRepositoriesTotal(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := make(map[string]bool)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}
	assert.True(t, names["caskd_repository_refresh_duration_seconds"])
	assert.True(t, names["caskd_repositories_total"])
}

func TestNewPrometheusMeter(t *testing.T) {
	t.Parallel()

	meter, err := NewPrometheusMeter()
	require.NoError(t, err)
	require.NotNil(t, meter)
	assert.NotNil(t, meter.Provider)
	assert.NotNil(t, meter.Handler)

	_, err = NewRefreshMetrics(meter.Provider)
	require.NoError(t, err)
}
