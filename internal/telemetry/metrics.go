package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/possync/possync/sync"

	// HealthMetricsMeterName is the name used for the connection health meter
	HealthMetricsMeterName = "github.com/possync/possync/health"
)

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	syncDuration    metric.Float64Histogram
	recordsSynced   metric.Int64Counter
	recordsRejected metric.Int64Counter
	conflicts       metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"possync_sync_duration_seconds",
		metric.WithDescription("Duration of per-table sync passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	recordsSynced, err := meter.Int64Counter(
		"possync_records_synced_total",
		metric.WithDescription("Records applied locally or accepted by the remote"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	recordsRejected, err := meter.Int64Counter(
		"possync_records_rejected_total",
		metric.WithDescription("Records the remote refused during push"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter(
		"possync_conflicts_total",
		metric.WithDescription("Conflicts detected during pull"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:    syncDuration,
		recordsSynced:   recordsSynced,
		recordsRejected: recordsRejected,
		conflicts:       conflicts,
	}, nil
}

// RecordSyncDuration records the duration of one table pass in one direction
func (m *SyncMetrics) RecordSyncDuration(
	ctx context.Context, table, direction string, duration time.Duration, success bool,
) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("table", table),
		attribute.String("direction", direction),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRecordsSynced adds count to the synced records of table
func (m *SyncMetrics) RecordRecordsSynced(ctx context.Context, table, direction string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsSynced.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("direction", direction),
	))
}

// RecordRecordsRejected adds count to the rejected pushes of table
func (m *SyncMetrics) RecordRecordsRejected(ctx context.Context, table string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsRejected.Add(ctx, int64(count), metric.WithAttributes(attribute.String("table", table)))
}

// RecordConflicts adds count to the detected conflicts of table
func (m *SyncMetrics) RecordConflicts(ctx context.Context, table, policy string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.conflicts.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("policy", policy),
	))
}

// HealthMetrics holds the connection health instruments
type HealthMetrics struct {
	connected metric.Int64Gauge
}

// NewHealthMetrics creates a new HealthMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewHealthMetrics(provider metric.MeterProvider) (*HealthMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	connected, err := provider.Meter(HealthMetricsMeterName).Int64Gauge(
		"possync_remote_connected",
		metric.WithDescription("1 when the last status probe reached the remote API, 0 otherwise"),
	)
	if err != nil {
		return nil, err
	}
	return &HealthMetrics{connected: connected}, nil
}

// RecordConnection records the outcome of a status probe
func (m *HealthMetrics) RecordConnection(ctx context.Context, connected bool) {
	if m == nil || m.connected == nil {
		return
	}
	var v int64
	if connected {
		v = 1
	}
	m.connected.Record(ctx, v)
}
