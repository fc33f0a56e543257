package health_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/possync/possync/internal/db/dbtest"
	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/health"
	"github.com/possync/possync/internal/telemetry"
	"github.com/possync/possync/internal/transport"
	"github.com/possync/possync/internal/transport/mocks"
)

func TestCheck_WithoutClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         *queries.UpsertConfigurationParams
		wantMessage string
	}{
		{
			name:        "no configuration row",
			wantMessage: health.MessageNotConfigured,
		},
		{
			name:        "configuration without url",
			cfg:         &queries.UpsertConfigurationParams{EmpresaID: "emp-1", AuthToken: "token"},
			wantMessage: health.MessageNotConfigured,
		},
		{
			name:        "configured but no client built",
			cfg:         &queries.UpsertConfigurationParams{APIURL: "http://example.invalid", AuthToken: "token"},
			wantMessage: health.MessageNotInitialized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conn := dbtest.NewConnection(t)
			if tt.cfg != nil {
				tt.cfg.Now = time.Now()
				require.NoError(t, conn.Queries.UpsertConfiguration(context.Background(), *tt.cfg))
			}

			monitor := health.NewMonitor(conn.Queries, func() transport.Client { return nil })
			status := monitor.Check(context.Background())
			assert.False(t, status.Connected)
			assert.Equal(t, tt.wantMessage, status.Message)
		})
	}
}

func TestCheck_DelegatesToClient(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().CheckConnection(gomock.Any()).Return(&transport.ConnectionStatus{
		Connected:  true,
		Message:    "ok",
		ServerTime: "2024-06-01T12:00:00Z",
	})

	monitor := health.NewMonitor(nil, func() transport.Client { return client })
	status := monitor.Check(context.Background())
	assert.True(t, status.Connected)
	assert.Equal(t, "2024-06-01T12:00:00Z", status.ServerTime)
}

func TestCheck_RecordsConnectionGauge(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := telemetry.NewHealthMetrics(mp)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().CheckConnection(gomock.Any()).Return(&transport.ConnectionStatus{Connected: true, Message: "ok"}),
		client.EXPECT().CheckConnection(gomock.Any()).Return(&transport.ConnectionStatus{Message: "HTTP 503"}),
	)

	monitor := health.NewMonitor(nil, func() transport.Client { return client }, health.WithHealthMetrics(metrics))

	assert.Equal(t, int64(1), gaugeValue(t, reader, monitor))
	assert.Equal(t, int64(0), gaugeValue(t, reader, monitor))
}

func gaugeValue(t *testing.T, reader *sdkmetric.ManualReader, monitor *health.Monitor) int64 {
	t.Helper()

	monitor.Check(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "possync_remote_connected" {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			require.True(t, ok)
			require.Len(t, gauge.DataPoints, 1)
			return gauge.DataPoints[0].Value
		}
	}
	t.Fatal("possync_remote_connected not recorded")
	return 0
}
