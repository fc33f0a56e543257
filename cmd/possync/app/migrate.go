package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/possync/possync/database"
	"github.com/possync/possync/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the version of the sync bookkeeping schema",
	Long: `Manage the sync_* tables that possync keeps next to the host tables.
The server applies pending migrations on startup; use these commands to
inspect or revert them. Host business tables are never touched.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Usage()
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert migrations",
	Long: `Revert sync schema migrations.
WARNING: reverting drops the sync tables together with their cursors, log and conflicts.

Examples:
  # Revert the last migration
  possync migrate down --config config.yaml --num-steps 1 --yes

  # Revert everything
  possync migrate down --config config.yaml --yes`,
	RunE: runMigrateDown,
}

func init() {
	migrateCmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	migrateDownCmd.Flags().UintP("num-steps", "n", 0, "Number of steps to revert (0 = all)")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

// withMigrator opens the configured store without migrating it and hands fn a migrator over it
func withMigrator(cmd *cobra.Command, fn func(database.Migrator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	m, err := database.NewMigrator(conn.DB)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := fn(m); err != nil {
		return err
	}
	displayMigrationVersion(m)
	return nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd, func(m database.Migrator) error {
		slog.Info("Applying pending migrations")
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				slog.Info("Schema is already at the latest version")
				return nil
			}
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("Migration completed successfully")
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}
	if err := confirmMigrateDown(cmd, numSteps); err != nil {
		return err
	}

	return withMigrator(cmd, func(m database.Migrator) error {
		return executeMigrateDown(m, numSteps)
	})
}

func confirmMigrateDown(cmd *cobra.Command, numSteps uint) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return nil
	}

	prompt := "WARNING: This will revert ALL migrations and drop every sync table. Continue?"
	if numSteps > 0 {
		prompt = fmt.Sprintf("WARNING: This will revert %d migration(s) and may drop sync tables. Continue?", numSteps)
	}
	if !confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), prompt) {
		slog.Info("Migration cancelled")
		return fmt.Errorf("migration cancelled by user")
	}
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func executeMigrateDown(m database.Migrator, numSteps uint) error {
	var err error
	if numSteps == 0 {
		slog.Warn("Reverting all migrations")
		err = m.Down()
	} else {
		slog.Info("Reverting migrations", "steps", numSteps)
		err = m.Steps(-int(numSteps))
	}

	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No migrations to revert")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Migration completed successfully")
	return nil
}

func displayMigrationVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		slog.Info("Sync schema is not installed")
		return
	}
	if err != nil {
		slog.Warn("Failed to get migration version", "error", err)
		return
	}
	if dirty {
		slog.Warn("Current migration version is dirty, manual intervention may be required", "version", version)
		return
	}
	slog.Info("Current migration version", "version", version)
}
