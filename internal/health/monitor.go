// Package health reports whether the remote sync API is reachable.
package health

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/telemetry"
	"github.com/possync/possync/internal/transport"
)

const (
	// MessageNotConfigured is reported when no remote endpoint is stored
	MessageNotConfigured = "not configured"

	// MessageNotInitialized is reported when a configuration exists but no client was built from it
	MessageNotInitialized = "sync engine not initialized"
)

// ClientFunc returns the transport client currently in use, or nil
type ClientFunc func() transport.Client

// Option configures a Monitor
type Option func(*Monitor)

// WithHealthMetrics records every probe outcome on the connection gauge
func WithHealthMetrics(m *telemetry.HealthMetrics) Option {
	return func(mon *Monitor) {
		mon.metrics = m
	}
}

// Monitor probes the remote API on demand
type Monitor struct {
	queries *queries.Queries
	client  ClientFunc
	metrics *telemetry.HealthMetrics
}

// NewMonitor creates a monitor.
// client is consulted on every Check because the transport is rebuilt when the configuration changes.
func NewMonitor(q *queries.Queries, client ClientFunc, opts ...Option) *Monitor {
	m := &Monitor{
		queries: q,
		client:  client,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check reports the connection status. It never returns an error: failures are
// described by the status message.
func (m *Monitor) Check(ctx context.Context) *transport.ConnectionStatus {
	status := m.check(ctx)
	m.metrics.RecordConnection(ctx, status.Connected)
	if !status.Connected {
		slog.Debug("Remote API not reachable", "message", status.Message)
	}
	return status
}

func (m *Monitor) check(ctx context.Context) *transport.ConnectionStatus {
	if m.client != nil {
		if client := m.client(); client != nil {
			return client.CheckConnection(ctx)
		}
	}

	if m.queries == nil {
		return &transport.ConnectionStatus{Message: MessageNotConfigured}
	}

	cfg, err := m.queries.GetConfiguration(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &transport.ConnectionStatus{Message: MessageNotConfigured}
	case err != nil:
		slog.Warn("Failed to read sync configuration", "error", err)
		return &transport.ConnectionStatus{Message: "failed to read configuration: " + err.Error()}
	case cfg.APIURL == "":
		return &transport.ConnectionStatus{Message: MessageNotConfigured}
	default:
		return &transport.ConnectionStatus{Message: MessageNotInitialized}
	}
}
