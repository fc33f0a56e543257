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

func collect(t *testing.T, reader *sdkmetric.ManualReader, scopeName string) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != scopeName {
			continue
		}
		for _, m := range scope.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func TestNewSyncMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewSyncMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		t.Parallel()

		var metrics *SyncMetrics
		ctx := context.Background()
		metrics.RecordSyncDuration(ctx, "producto", "pull", time.Second, true)
		metrics.RecordRecordsSynced(ctx, "producto", "pull", 3)
		metrics.RecordRecordsRejected(ctx, "producto", 1)
		metrics.RecordConflicts(ctx, "producto", "manual", 1)
	})
}

func TestSyncMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordSyncDuration(ctx, "producto", "pull", 250*time.Millisecond, true)
	metrics.RecordRecordsSynced(ctx, "producto", "pull", 4)
	metrics.RecordRecordsSynced(ctx, "producto", "pull", 0)
	metrics.RecordRecordsRejected(ctx, "cliente", 2)
	metrics.RecordConflicts(ctx, "producto", "manual", 1)

	found := collect(t, reader, SyncMetricsMeterName)

	hist, ok := found["possync_sync_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	synced, ok := found["possync_records_synced_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, synced.DataPoints, 1)
	assert.Equal(t, int64(4), synced.DataPoints[0].Value)

	rejected, ok := found["possync_records_rejected_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(2), rejected.DataPoints[0].Value)

	conflicts, ok := found["possync_conflicts_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), conflicts.DataPoints[0].Value)
}

func TestHealthMetrics_RecordConnection(t *testing.T) {
	t.Parallel()

	var nilMetrics *HealthMetrics
	nilMetrics.RecordConnection(context.Background(), true)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewHealthMetrics(mp)
	require.NoError(t, err)

	metrics.RecordConnection(context.Background(), true)
	metrics.RecordConnection(context.Background(), false)

	found := collect(t, reader, HealthMetricsMeterName)
	gauge, ok := found["possync_remote_connected"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(0), gauge.DataPoints[0].Value)
}
