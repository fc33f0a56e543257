package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const getConfiguration = `-- name: GetConfiguration :one
SELECT api_url, empresa_id, auth_token, auto_sync, sync_interval, last_sync_at, enabled, created_at, updated_at
FROM sync_configuration
WHERE id = 1
`

// GetConfiguration returns the configuration row or sql.ErrNoRows
func (q *Queries) GetConfiguration(ctx context.Context) (SyncConfiguration, error) {
	row := q.db.QueryRowContext(ctx, getConfiguration)
	var (
		i          SyncConfiguration
		lastSyncAt sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(
		&i.APIURL,
		&i.EmpresaID,
		&i.AuthToken,
		&i.AutoSync,
		&i.SyncInterval,
		&lastSyncAt,
		&i.Enabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return i, err
	}
	if i.LastSyncAt, err = parseNullTime(lastSyncAt); err != nil {
		return i, fmt.Errorf("last_sync_at: %w", err)
	}
	if i.CreatedAt, err = ParseTime(createdAt); err != nil {
		return i, fmt.Errorf("created_at: %w", err)
	}
	if i.UpdatedAt, err = ParseTime(updatedAt); err != nil {
		return i, fmt.Errorf("updated_at: %w", err)
	}
	return i, nil
}

const upsertConfiguration = `-- name: UpsertConfiguration :exec
INSERT INTO sync_configuration (
    id, api_url, empresa_id, auth_token, auto_sync, sync_interval, enabled, created_at, updated_at
) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    api_url = excluded.api_url,
    empresa_id = excluded.empresa_id,
    auth_token = excluded.auth_token,
    auto_sync = excluded.auto_sync,
    sync_interval = excluded.sync_interval,
    enabled = excluded.enabled,
    updated_at = excluded.updated_at
`

// UpsertConfigurationParams holds the caller-editable configuration fields
type UpsertConfigurationParams struct {
	APIURL       string
	EmpresaID    string
	AuthToken    string
	AutoSync     bool
	SyncInterval int64
	Enabled      bool
	Now          time.Time
}

// UpsertConfiguration creates or replaces the configuration row, keeping created_at and last_sync_at
func (q *Queries) UpsertConfiguration(ctx context.Context, arg UpsertConfigurationParams) error {
	now := FormatTime(arg.Now)
	_, err := q.db.ExecContext(ctx, upsertConfiguration,
		arg.APIURL,
		arg.EmpresaID,
		arg.AuthToken,
		arg.AutoSync,
		arg.SyncInterval,
		arg.Enabled,
		now,
		now,
	)
	return err
}

const touchLastSync = `-- name: TouchLastSync :exec
UPDATE sync_configuration SET last_sync_at = ? WHERE id = 1
`

// TouchLastSync records the completion time of a successful sync run
func (q *Queries) TouchLastSync(ctx context.Context, at time.Time) error {
	_, err := q.db.ExecContext(ctx, touchLastSync, FormatTime(at))
	return err
}
