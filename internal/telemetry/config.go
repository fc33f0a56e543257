// Package telemetry provides OpenTelemetry instrumentation for the sync engine.
// It supports configurable tracing and metrics with OTLP or Prometheus exporters.
package telemetry

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultServiceName is reported as service.name when none is configured
	DefaultServiceName = "possync"

	// DefaultEndpoint is the local collector's OTLP/HTTP port
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling keeps one trace in twenty
	DefaultSampling = 0.05

	// ExporterPrometheus exposes metrics on the /metrics route for scraping
	ExporterPrometheus = "prometheus"

	// ExporterOTLP pushes metrics to the OTLP collector
	ExporterOTLP = "otlp"

	unknownVersion = "unknown"
)

// Config is the telemetry section of the configuration file. Nothing is
// exported unless Enabled is set along with the signal's own Enabled flag.
type Config struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"serviceName,omitempty"`
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector as "host:port"
	Endpoint string `yaml:"endpoint,omitempty"`
	// Insecure exports over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the head sampling ratio in [0, 1]; zero means DefaultSampling
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is "prometheus" (default) or "otlp"
	Exporter string `yaml:"exporter,omitempty"`

	// Interval is the OTLP push interval, e.g. "60s"
	Interval string `yaml:"interval,omitempty"`
}

// Collector identifies the service and the OTLP collector both providers export to
type Collector struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
}

// Collector returns the exporter settings with defaults applied
func (c *Config) Collector() Collector {
	return Collector{
		ServiceName:    c.ServiceName,
		ServiceVersion: c.ServiceVersion,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
	}.resolved()
}

func (c Collector) resolved() Collector {
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = unknownVersion
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	return c
}

// GetSampling returns the configured ratio or DefaultSampling
func (c *TracingConfig) GetSampling() float64 {
	if c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetExporter returns the metrics exporter, prometheus when unset
func (c *MetricsConfig) GetExporter() string {
	if c.Exporter == "" {
		return ExporterPrometheus
	}
	return c.Exporter
}

// GetInterval returns the push interval. Unset or unparsable values fall back
// to DefaultMetricsInterval; Validate reports the latter.
func (c *MetricsConfig) GetInterval() time.Duration {
	if d, err := time.ParseDuration(c.Interval); err == nil && d > 0 {
		return d
	}
	return DefaultMetricsInterval
}

// Validate checks the enabled signals. A disabled section is never rejected.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	var errs []error
	if err := c.Tracing.validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	if err := c.Metrics.validate(); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}
	return errors.Join(errs...)
}

func (c *TracingConfig) validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if c.Sampling < 0 || c.Sampling > 1 {
		return fmt.Errorf("sampling must be between 0.0 and 1.0, got %g", c.Sampling)
	}
	return nil
}

func (c *MetricsConfig) validate() error {
	if c == nil || !c.Enabled {
		return nil
	}
	if exp := c.GetExporter(); exp != ExporterPrometheus && exp != ExporterOTLP {
		return fmt.Errorf("exporter must be %q or %q, got %q", ExporterPrometheus, ExporterOTLP, exp)
	}
	if c.Interval == "" {
		return nil
	}
	if d, err := time.ParseDuration(c.Interval); err != nil || d <= 0 {
		return fmt.Errorf("invalid interval %q", c.Interval)
	}
	return nil
}
