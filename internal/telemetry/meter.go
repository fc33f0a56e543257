package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultMetricsInterval is how often metrics are pushed with the otlp exporter
const DefaultMetricsInterval = 60 * time.Second

// NewMeterProvider builds the meter provider for mc. The prometheus exporter
// also returns the scrape handler; the otlp exporter pushes on an interval and
// returns a nil handler. A nil or disabled mc yields a no-op provider.
func NewMeterProvider(ctx context.Context, col Collector, mc *MetricsConfig) (metric.MeterProvider, http.Handler, error) {
	if mc == nil || !mc.Enabled {
		slog.Debug("Metrics disabled")
		return noop.NewMeterProvider(), nil, nil
	}

	col = col.resolved()
	res, err := newResource(ctx, col)
	if err != nil {
		return nil, nil, err
	}

	var (
		reader  sdkmetric.Reader
		handler http.Handler
	)
	if mc.GetExporter() == ExporterOTLP {
		reader, err = otlpReader(ctx, col, mc.GetInterval())
	} else {
		reader, handler, err = prometheusReader()
	}
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	slog.Info("Metrics enabled", "exporter", mc.GetExporter())
	return mp, handler, nil
}

// prometheusReader serves the instruments plus the Go runtime and process
// collectors from a private registry.
func prometheusReader() (sdkmetric.Reader, http.Handler, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func otlpReader(ctx context.Context, col Collector, interval time.Duration) (sdkmetric.Reader, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(col.Endpoint)}
	if col.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

// newResource uses resource.New rather than merging into resource.Default,
// which can fail on a schema URL mismatch.
func newResource(ctx context.Context, col Collector) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(col.ServiceName), semconv.ServiceVersion(col.ServiceVersion)),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return res, nil
}
