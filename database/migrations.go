// Package database provides the versioned schema of the sync bookkeeping tables.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// MigrationsTable records the applied schema version next to the host's tables
const MigrationsTable = "possync_schema_migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator is the interface for the migration tooling.
type Migrator interface {
	Up() error
	Down() error
	Steps(int) error
	Version() (uint, bool, error)
	Close() error
}

type migrator struct {
	*migrate.Migrate
	src source.Driver
}

// Close releases the embedded source. The *sql.DB belongs to the caller and
// stays open.
func (m *migrator) Close() error {
	return m.src.Close()
}

// NewMigrator returns a migrator over the embedded migrations targeting db
func NewMigrator(db *sql.DB) (Migrator, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	drv, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to prepare migration table: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return &migrator{Migrate: m, src: src}, nil
}

// MigrateUp applies every pending migration. A store already at the latest
// version is left untouched.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := NewMigrator(db)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
