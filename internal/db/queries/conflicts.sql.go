package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/possync/possync/internal/status"
)

const conflictColumns = `id, table_name, record_id, local_data, remote_data, remote_operation,
    resolution, resolved, created_at, resolved_at`

func scanConflict(row rowScanner) (SyncConflict, error) {
	var (
		i          SyncConflict
		localData  string
		remoteData string
		resolution sql.NullString
		createdAt  string
		resolvedAt sql.NullString
	)
	err := row.Scan(
		&i.ID,
		&i.TableName,
		&i.RecordID,
		&localData,
		&remoteData,
		&i.RemoteOperation,
		&resolution,
		&i.Resolved,
		&createdAt,
		&resolvedAt,
	)
	if err != nil {
		return i, err
	}
	i.LocalData = json.RawMessage(localData)
	i.RemoteData = json.RawMessage(remoteData)
	if resolution.Valid {
		r := status.Resolution(resolution.String)
		i.Resolution = &r
	}
	if i.CreatedAt, err = ParseTime(createdAt); err != nil {
		return i, fmt.Errorf("created_at: %w", err)
	}
	if i.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return i, fmt.Errorf("resolved_at: %w", err)
	}
	return i, nil
}

const upsertUnresolvedConflict = `-- name: UpsertUnresolvedConflict :one
INSERT INTO sync_conflicts (id, table_name, record_id, local_data, remote_data, remote_operation, resolved, created_at)
VALUES (?, ?, ?, ?, ?, ?, 0, ?)
ON CONFLICT (table_name, record_id) WHERE resolved = 0 DO UPDATE SET
    local_data = excluded.local_data,
    remote_data = excluded.remote_data,
    remote_operation = excluded.remote_operation
RETURNING id
`

// ConflictParams describes one divergence of a record
type ConflictParams struct {
	ID              string
	TableName       string
	RecordID        string
	LocalData       json.RawMessage
	RemoteData      json.RawMessage
	RemoteOperation status.Operation
	Now             time.Time
}

// UpsertUnresolvedConflict records an unresolved conflict. When the record
// already has one, that row is overwritten in place and its id returned.
func (q *Queries) UpsertUnresolvedConflict(ctx context.Context, arg ConflictParams) (string, error) {
	row := q.db.QueryRowContext(ctx, upsertUnresolvedConflict,
		arg.ID,
		arg.TableName,
		arg.RecordID,
		string(arg.LocalData),
		string(arg.RemoteData),
		arg.RemoteOperation,
		FormatTime(arg.Now),
	)
	var id string
	err := row.Scan(&id)
	return id, err
}

const insertResolvedConflict = `-- name: InsertResolvedConflict :exec
INSERT INTO sync_conflicts (
    id, table_name, record_id, local_data, remote_data, remote_operation, resolution, resolved, created_at, resolved_at
) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
`

// InsertResolvedConflict records a conflict that a default policy already settled
func (q *Queries) InsertResolvedConflict(ctx context.Context, arg ConflictParams, resolution status.Resolution) error {
	now := FormatTime(arg.Now)
	_, err := q.db.ExecContext(ctx, insertResolvedConflict,
		arg.ID,
		arg.TableName,
		arg.RecordID,
		string(arg.LocalData),
		string(arg.RemoteData),
		arg.RemoteOperation,
		resolution,
		now,
		now,
	)
	return err
}

const getConflict = `-- name: GetConflict :one
SELECT ` + conflictColumns + `
FROM sync_conflicts
WHERE id = ?
`

// GetConflict returns a conflict by id or sql.ErrNoRows
func (q *Queries) GetConflict(ctx context.Context, id string) (SyncConflict, error) {
	return scanConflict(q.db.QueryRowContext(ctx, getConflict, id))
}

const getUnresolvedConflictForRecord = `-- name: GetUnresolvedConflictForRecord :one
SELECT ` + conflictColumns + `
FROM sync_conflicts
WHERE table_name = ? AND record_id = ? AND resolved = 0
`

// GetUnresolvedConflictForRecord returns the open conflict of a record or sql.ErrNoRows
func (q *Queries) GetUnresolvedConflictForRecord(ctx context.Context, tableName, recordID string) (SyncConflict, error) {
	return scanConflict(q.db.QueryRowContext(ctx, getUnresolvedConflictForRecord, tableName, recordID))
}

const listUnresolvedConflicts = `-- name: ListUnresolvedConflicts :many
SELECT ` + conflictColumns + `
FROM sync_conflicts
WHERE resolved = 0
ORDER BY created_at DESC, id DESC
`

// ListUnresolvedConflicts returns every open conflict, newest first
func (q *Queries) ListUnresolvedConflicts(ctx context.Context) ([]SyncConflict, error) {
	rows, err := q.db.QueryContext(ctx, listUnresolvedConflicts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SyncConflict{}
	for rows.Next() {
		i, err := scanConflict(rows)
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

const countUnresolvedConflicts = `-- name: CountUnresolvedConflicts :one
SELECT COUNT(*) FROM sync_conflicts WHERE resolved = 0
`

// CountUnresolvedConflicts returns the number of open conflicts
func (q *Queries) CountUnresolvedConflicts(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUnresolvedConflicts).Scan(&n)
	return n, err
}

const listUnresolvedRecordIDs = `-- name: ListUnresolvedRecordIDs :many
SELECT record_id FROM sync_conflicts WHERE table_name = ? AND resolved = 0
`

// ListUnresolvedRecordIDs returns the records of a table blocked by an open conflict
func (q *Queries) ListUnresolvedRecordIDs(ctx context.Context, tableName string) (map[string]bool, error) {
	rows, err := q.db.QueryContext(ctx, listUnresolvedRecordIDs, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

const markConflictResolved = `-- name: MarkConflictResolved :execrows
UPDATE sync_conflicts
SET resolved = 1, resolution = ?, resolved_at = ?
WHERE id = ? AND resolved = 0
`

// MarkConflictResolved transitions an open conflict to resolved. It returns
// false when the conflict was already resolved or does not exist.
func (q *Queries) MarkConflictResolved(ctx context.Context, id string, resolution status.Resolution, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, markConflictResolved, resolution, FormatTime(now), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
