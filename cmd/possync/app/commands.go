// Package app provides the command line entry points for the POS sync engine.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/possync/possync/internal/config"
	"github.com/possync/possync/internal/service"
	"github.com/possync/possync/internal/telemetry"
	"github.com/possync/possync/internal/versions"

	syncapp "github.com/possync/possync/internal/app"
)

var rootCmd = &cobra.Command{
	Use:               "possync",
	DisableAutoGenTag: true,
	Short:             "POS to ERP synchronization engine",
	Long: `possync keeps the tables of a local point-of-sale database in step with a
remote ERP sync API. It runs as a background server or as one-shot commands.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates the root command with every subcommand attached
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("Error binding config flag", "error", err)
	}
	viper.SetEnvPrefix(config.EnvPrefix)
	if err := viper.BindEnv("config"); err != nil {
		slog.Error("Error binding config environment variable", "error", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(conflictsCmd)
	rootCmd.AddCommand(cleanLogCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

// loadConfig reads the file named by --config (or POSSYNC_CONFIG) and applies its logging section
func loadConfig() (*config.Config, io.Closer, error) {
	path := viper.GetString("config")
	if path == "" {
		return nil, nil, fmt.Errorf("a configuration file is required (--config or %s_CONFIG)", config.EnvPrefix)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	closer := configureLogging(cfg.Logging)
	slog.Info("Loaded configuration", "path", path, "tables", len(cfg.Tables))
	return cfg, closer, nil
}

// newTelemetry builds the telemetry providers, falling back to no-op providers when disabled
func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	if cfg.Telemetry != nil && cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = versions.Version
	}
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tel, nil
}

// runCommand executes a single sync command against a freshly built service and
// prints its envelope to stdout. A failed envelope makes the process exit non-zero.
func runCommand(cmd *cobra.Command, run func(service.Service, context.Context) *service.Envelope) error {
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

	components, err := syncapp.BuildComponents(ctx,
		syncapp.WithConfig(cfg),
		syncapp.WithTelemetry(tel),
	)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return err
	}
	defer func() { _ = components.Close(context.Background()) }()

	envelope := run(components.Service, ctx)
	if err := printJSON(cmd.OutOrStdout(), envelope); err != nil {
		return err
	}
	if !envelope.Success {
		return fmt.Errorf("%s: %s", envelope.Code, envelope.Error)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := versions.GetVersionInfo()
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			slog.Error("Error retrieving format flag", "error", err)
			return
		}

		if format == "json" {
			if err := printJSON(cmd.OutOrStdout(), info); err != nil {
				slog.Error("Error formatting version info as JSON", "error", err)
			}
			return
		}
		slog.Info("possync version",
			"version", info.Version,
			"commit", info.Commit,
			"built", info.BuildDate,
			"go", info.GoVersion,
			"platform", info.Platform)
	},
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
