package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	for _, cfg := range []*Config{nil, {Enabled: false}} {
		tel, err := New(context.Background(), WithTelemetryConfig(cfg))
		require.NoError(t, err)
		assert.NotNil(t, tel.TracerProvider())
		assert.NotNil(t, tel.MeterProvider())
		assert.Nil(t, tel.MetricsHandler())
		assert.NoError(t, tel.Shutdown(context.Background()))
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: "graphite"},
	}))
	assert.ErrorContains(t, err, "invalid telemetry configuration")
}

func TestNewMeterProvider_Prometheus(t *testing.T) {
	t.Parallel()

	mp, handler, err := NewMeterProvider(context.Background(),
		Collector{ServiceName: "possync-test"},
		&MetricsConfig{Enabled: true},
	)
	require.NoError(t, err)
	require.NotNil(t, handler)

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)
	metrics.RecordRecordsSynced(context.Background(), "producto", "pull", 7)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "possync_records_synced")
	assert.Contains(t, string(body), `table="producto"`)
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	t.Parallel()

	for _, tc := range []*TracingConfig{nil, {Enabled: false}} {
		tp, err := NewTracerProvider(context.Background(), Collector{}, tc)
		require.NoError(t, err)
		_, isSDK := tp.(*sdktrace.TracerProvider)
		assert.False(t, isSDK)
	}
}
