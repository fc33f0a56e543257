// Package app wires the sync engine, its scheduler and the command API into
// one process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/possync/possync/internal/config"
)

// App is a running sync server: the background coordinator plus the HTTP
// command surface, sharing one set of components.
type App struct {
	config     *config.Config
	components *Components
	httpServer *http.Server

	// ctx scopes the coordinator; cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
}

// Start listens on the configured address and serves until Stop
func (app *App) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve launches the coordinator and blocks serving HTTP on listener. It
// returns nil once Stop has closed the server.
func (app *App) Serve(listener net.Listener) error {
	go func() {
		if err := app.components.SyncCoordinator.Start(app.ctx); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()

	slog.Info("Command API listening",
		"address", listener.Addr().String(),
		"tables", len(app.config.Tables),
	)
	err := app.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("HTTP server failed: %w", err)
}

// Stop halts scheduled syncs before draining HTTP requests, then releases the
// database and telemetry. timeout bounds the drain and the release together.
func (app *App) Stop(timeout time.Duration) error {
	slog.Info("Stopping sync server", "timeout", timeout)

	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}
	if app.cancel != nil {
		app.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}
	if err := app.components.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		slog.Info("Sync server stopped")
	}
	return errors.Join(errs...)
}
