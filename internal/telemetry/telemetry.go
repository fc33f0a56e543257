package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer and meter providers for one process.
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
}

// Option configures New
type Option func(*options)

type options struct {
	config *Config
}

// WithTelemetryConfig supplies the telemetry section of the configuration
func WithTelemetryConfig(cfg *Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// New sets up the providers described by the configuration. Without a config,
// or with Enabled false, both providers are no-ops. Callers must Shutdown the
// result to flush pending spans and metrics.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.config
	if cfg == nil || !cfg.Enabled {
		return NewNoOp(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	col := cfg.Collector()
	slog.Info("Starting telemetry", "service_name", col.ServiceName, "service_version", col.ServiceVersion)

	tp, err := NewTracerProvider(ctx, col, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}

	mp, handler, err := NewMeterProvider(ctx, col, cfg.Metrics)
	if err != nil {
		if sdk, ok := tp.(*sdktrace.TracerProvider); ok {
			_ = sdk.Shutdown(ctx)
		}
		return nil, fmt.Errorf("meter provider: %w", err)
	}

	return &Telemetry{tracerProvider: tp, meterProvider: mp, metricsHandler: handler}, nil
}

// NewNoOp returns telemetry that records nothing
func NewNoOp() *Telemetry {
	tp, _ := NewTracerProvider(context.Background(), Collector{}, nil)
	mp, _, _ := NewMeterProvider(context.Background(), Collector{}, nil)
	return &Telemetry{tracerProvider: tp, meterProvider: mp}
}

// TracerProvider returns the tracer provider
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the meter provider
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler. It is nil unless
// metrics are enabled with the prometheus exporter.
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Shutdown flushes and stops whichever providers are SDK backed
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if tp, ok := t.tracerProvider.(*sdktrace.TracerProvider); ok {
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if mp, ok := t.meterProvider.(*sdkmetric.MeterProvider); ok {
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) == 0 {
		slog.Debug("Telemetry stopped")
	}
	return errors.Join(errs...)
}
