package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const metadataColumns = `table_name, last_sync_at, status, total_records, synced_records, last_error,
    pull_cursor, push_cursor, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetadata(row rowScanner) (SyncMetadata, error) {
	var (
		i          SyncMetadata
		lastSyncAt sql.NullString
		lastError  sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(
		&i.TableName,
		&lastSyncAt,
		&i.Status,
		&i.TotalRecords,
		&i.SyncedRecords,
		&lastError,
		&i.PullCursor,
		&i.PushCursor,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return i, err
	}
	i.LastError = ptrString(lastError)
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

const getMetadata = `-- name: GetMetadata :one
SELECT ` + metadataColumns + `
FROM sync_metadata
WHERE table_name = ?
`

// GetMetadata returns the metadata row of a table or sql.ErrNoRows
func (q *Queries) GetMetadata(ctx context.Context, tableName string) (SyncMetadata, error) {
	return scanMetadata(q.db.QueryRowContext(ctx, getMetadata, tableName))
}

const listMetadata = `-- name: ListMetadata :many
SELECT ` + metadataColumns + `
FROM sync_metadata
ORDER BY table_name
`

// ListMetadata returns every metadata row by table name
func (q *Queries) ListMetadata(ctx context.Context) ([]SyncMetadata, error) {
	rows, err := q.db.QueryContext(ctx, listMetadata)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SyncMetadata
	for rows.Next() {
		i, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const ensureMetadata = `-- name: EnsureMetadata :exec
INSERT INTO sync_metadata (table_name, status, created_at, updated_at)
VALUES (?, 'pending', ?, ?)
ON CONFLICT (table_name) DO NOTHING
`

// EnsureMetadata lazily creates a pending metadata row for a table
func (q *Queries) EnsureMetadata(ctx context.Context, tableName string, now time.Time) error {
	ts := FormatTime(now)
	_, err := q.db.ExecContext(ctx, ensureMetadata, tableName, ts, ts)
	return err
}

const markMetadataInProgress = `-- name: MarkMetadataInProgress :exec
UPDATE sync_metadata
SET status = 'in_progress', updated_at = ?
WHERE table_name = ?
`

// MarkMetadataInProgress moves a table to in_progress before any transport I/O
func (q *Queries) MarkMetadataInProgress(ctx context.Context, tableName string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, markMetadataInProgress, FormatTime(now), tableName)
	return err
}

const markPullSuccess = `-- name: MarkPullSuccess :exec
UPDATE sync_metadata
SET status = 'success',
    pull_cursor = ?,
    total_records = ?,
    synced_records = ?,
    last_error = NULL,
    last_sync_at = ?,
    updated_at = ?
WHERE table_name = ?
`

const markPushSuccess = `-- name: MarkPushSuccess :exec
UPDATE sync_metadata
SET status = 'success',
    push_cursor = ?,
    total_records = ?,
    synced_records = ?,
    last_error = NULL,
    last_sync_at = ?,
    updated_at = ?
WHERE table_name = ?
`

// MarkSuccessParams is the terminal write of a successful table attempt
type MarkSuccessParams struct {
	TableName     string
	Cursor        string
	TotalRecords  int64
	SyncedRecords int64
	Now           time.Time
}

// MarkPullSuccess commits the pull cursor together with the success status
func (q *Queries) MarkPullSuccess(ctx context.Context, arg MarkSuccessParams) error {
	return q.markSuccess(ctx, markPullSuccess, arg)
}

// MarkPushSuccess commits the push cursor together with the success status
func (q *Queries) MarkPushSuccess(ctx context.Context, arg MarkSuccessParams) error {
	return q.markSuccess(ctx, markPushSuccess, arg)
}

func (q *Queries) markSuccess(ctx context.Context, query string, arg MarkSuccessParams) error {
	now := FormatTime(arg.Now)
	res, err := q.db.ExecContext(ctx, query,
		arg.Cursor,
		arg.TotalRecords,
		arg.SyncedRecords,
		now,
		now,
		arg.TableName,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

const markMetadataFailed = `-- name: MarkMetadataFailed :exec
UPDATE sync_metadata
SET status = 'failed', last_error = ?, updated_at = ?
WHERE table_name = ?
`

// MarkMetadataFailed records a failed attempt; cursors are left untouched
func (q *Queries) MarkMetadataFailed(ctx context.Context, tableName, message string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, markMetadataFailed, message, FormatTime(now), tableName)
	return err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
