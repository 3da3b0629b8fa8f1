package telemetry

import (
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Meter bundles the meter provider with the HTTP handler that serves its
// metrics in Prometheus exposition format
type Meter struct {
	Provider metric.MeterProvider
	Handler  http.Handler
}

// NewPrometheusMeter creates a meter provider backed by a Prometheus
// registry and the handler to expose it
func NewPrometheusMeter() (*Meter, error) {
	promRegistry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(promRegistry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return &Meter{
		Provider: provider,
		Handler:  promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	}, nil
}
