// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/possync/possync/internal/config"
	"github.com/possync/possync/internal/db"
)

// NewConnection opens a migrated database in a temporary directory that is
// closed when the test finishes
func NewConnection(t *testing.T) *db.Connection {
	t.Helper()

	conn, err := db.NewConnection(context.Background(), &config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "pos.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// Exec runs setup statements, such as creating host business tables
func Exec(t *testing.T, conn *db.Connection, statements ...string) {
	t.Helper()

	for _, stmt := range statements {
		_, err := conn.DB.ExecContext(context.Background(), stmt)
		require.NoError(t, err, stmt)
	}
}
