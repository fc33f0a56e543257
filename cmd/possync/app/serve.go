package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	syncapp "github.com/possync/possync/internal/app"
)

const defaultGracefulTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the sync command server",
	Long: `Start the sync command server.

The server exposes the sync commands on POST /commands/{command} and runs
scheduled synchronization when autoSync is enabled in the stored configuration.
The configuration file (--config) lists the database and the synchronized tables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Error binding address flag", "error", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []syncapp.Option{
		syncapp.WithConfig(cfg),
		syncapp.WithTelemetry(tel),
	}
	if address := viper.GetString("address"); address != "" {
		opts = append(opts, syncapp.WithAddress(address))
	}

	app, err := syncapp.NewApp(ctx, opts...)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return fmt.Errorf("failed to create application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case <-quit:
	case serveErr = <-errCh:
		if serveErr != nil {
			slog.Error("Server failed", "error", serveErr)
		}
	}

	if err := app.Stop(defaultGracefulTimeout); err != nil {
		slog.Error("Shutdown completed with errors", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
