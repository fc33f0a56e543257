package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	col := (&Config{}).Collector()
	assert.Equal(t, DefaultServiceName, col.ServiceName)
	assert.Equal(t, "unknown", col.ServiceVersion)
	assert.Equal(t, DefaultEndpoint, col.Endpoint)
	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
	assert.Equal(t, ExporterPrometheus, (&MetricsConfig{}).GetExporter())
	assert.Equal(t, DefaultMetricsInterval, (&MetricsConfig{}).GetInterval())
	assert.Equal(t, 15*time.Second, (&MetricsConfig{Interval: "15s"}).GetInterval())

	col = (&Config{ServiceName: "pos-1", ServiceVersion: "1.2.0", Endpoint: "otel:4318", Insecure: true}).Collector()
	assert.Equal(t, Collector{ServiceName: "pos-1", ServiceVersion: "1.2.0", Endpoint: "otel:4318", Insecure: true}, col)
	assert.Equal(t, DefaultMetricsInterval, (&MetricsConfig{Interval: "-5s"}).GetInterval())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{name: "disabled ignores bad values", config: &Config{
			Tracing: &TracingConfig{Enabled: true, Sampling: 3},
		}},
		{name: "valid", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: 0.5},
			Metrics: &MetricsConfig{Enabled: true, Exporter: ExporterOTLP, Interval: "30s"},
		}},
		{name: "sampling out of range", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
		}, wantErr: "tracing: sampling must be between"},
		{name: "unknown exporter", config: &Config{
			Enabled: true,
			Metrics: &MetricsConfig{Enabled: true, Exporter: "statsd"},
		}, wantErr: "metrics: exporter must be"},
		{name: "bad interval", config: &Config{
			Enabled: true,
			Metrics: &MetricsConfig{Enabled: true, Interval: "soon"},
		}, wantErr: "invalid interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
