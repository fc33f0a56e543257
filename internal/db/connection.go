// Package db contains code for connecting to the local embedded database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // Registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // Embeds the SQLite library

	"github.com/possync/possync/database"
	"github.com/possync/possync/internal/config"
	"github.com/possync/possync/internal/db/queries"
)

const (
	defaultMaxOpenConns    = 8
	defaultMaxIdleConns    = 4
	defaultConnMaxLifetime = 30 * time.Minute
	defaultBusyTimeout     = 5 * time.Second
)

// Connection wraps the database connection and query interface
type Connection struct {
	DB      *sql.DB
	Queries *queries.Queries
	path    string
}

// NewConnection opens the SQLite file shared with the host application and
// applies the sync schema.
//
// Every pooled connection runs in WAL mode with a busy timeout, and write
// transactions take the write lock up front, so readers (stats, log and
// conflict listings) proceed while a sync holds a table transaction.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig) (*Connection, error) {
	conn, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := database.MigrateUp(ctx, conn.DB); err != nil {
		if closeErr := conn.DB.Close(); closeErr != nil {
			slog.Error("Failed to close database connection after schema failure", "error", closeErr)
		}
		return nil, err
	}
	return conn, nil
}

// Open connects to the SQLite file without touching the schema. Migration
// commands use it to manage the schema version themselves.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Connection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dataSourceName(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)
	sqlDB.SetMaxIdleConns(defaultMaxIdleConns)
	sqlDB.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			slog.Error("Failed to close database connection after ping failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connection established", "path", cfg.Path)

	return &Connection{
		DB:      sqlDB,
		Queries: queries.New(sqlDB),
		path:    cfg.Path,
	}, nil
}

func dataSourceName(path string) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", defaultBusyTimeout.Milliseconds()))
	params.Add("_pragma", "journal_mode(wal)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	return "file:" + path + "?" + params.Encode()
}

// RunInTx runs fn inside one write transaction, committing when fn returns nil
func (c *Connection) RunInTx(ctx context.Context, fn func(tx *sql.Tx, q *queries.Queries) error) error {
	return RunInTx(ctx, c.DB, fn)
}

// RunInTx runs fn inside one write transaction on db
func RunInTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx, q *queries.Queries) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx, queries.New(db).WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Path returns the database file location
func (c *Connection) Path() string {
	return c.path
}

// Close checkpoints the WAL and closes the database connection
func (c *Connection) Close() error {
	if c.DB == nil {
		return nil
	}
	slog.Info("Closing database connection")
	if _, err := c.DB.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		slog.Warn("Failed to checkpoint WAL", "error", err)
	}
	return c.DB.Close()
}

// Ping verifies the database connection is still alive
func (c *Connection) Ping(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.PingContext(ctx)
	}
	return fmt.Errorf("database connection is nil")
}
