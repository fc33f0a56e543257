package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/possync/possync/internal/db"
	"github.com/possync/possync/internal/service"
	"github.com/possync/possync/internal/sync/coordinator"
	"github.com/possync/possync/internal/telemetry"
)

// Components groups all application components
type Components struct {
	// Database is the shared SQLite connection
	Database *db.Connection

	// Service runs the sync commands
	Service *service.Host

	// SyncCoordinator manages background synchronization
	SyncCoordinator coordinator.Coordinator

	// Telemetry owns the tracer and meter providers
	Telemetry *telemetry.Telemetry

	ownsDatabase bool
}

// Close flushes telemetry and closes the database when the components opened it
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	if c.Telemetry != nil {
		if err := c.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ownsDatabase && c.Database != nil {
		if err := c.Database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error("Failed to release components", "error", err)
		return err
	}
	return nil
}
