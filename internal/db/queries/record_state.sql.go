package queries

import (
	"context"
	"time"
)

const getRecordState = `-- name: GetRecordState :one
SELECT table_name, record_id, row_hash, dirty, synced_at
FROM sync_record_state
WHERE table_name = ? AND record_id = ?
`

// GetRecordState returns the ledger entry of a record or sql.ErrNoRows
func (q *Queries) GetRecordState(ctx context.Context, tableName, recordID string) (RecordState, error) {
	var (
		i        RecordState
		syncedAt string
	)
	err := q.db.QueryRowContext(ctx, getRecordState, tableName, recordID).Scan(
		&i.TableName,
		&i.RecordID,
		&i.RowHash,
		&i.Dirty,
		&syncedAt,
	)
	if err != nil {
		return i, err
	}
	i.SyncedAt, err = ParseTime(syncedAt)
	return i, err
}

const upsertRecordState = `-- name: UpsertRecordState :exec
INSERT INTO sync_record_state (table_name, record_id, row_hash, dirty, synced_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (table_name, record_id) DO UPDATE SET
    row_hash = excluded.row_hash,
    dirty = excluded.dirty,
    synced_at = excluded.synced_at
`

// UpsertRecordStateParams is the agreed version of a record
type UpsertRecordStateParams struct {
	TableName string
	RecordID  string
	RowHash   string
	Dirty     bool
	SyncedAt  time.Time
}

// UpsertRecordState stores the last agreed hash of a record
func (q *Queries) UpsertRecordState(ctx context.Context, arg UpsertRecordStateParams) error {
	_, err := q.db.ExecContext(ctx, upsertRecordState,
		arg.TableName,
		arg.RecordID,
		arg.RowHash,
		arg.Dirty,
		FormatTime(arg.SyncedAt),
	)
	return err
}

const markRecordDirty = `-- name: MarkRecordDirty :exec
INSERT INTO sync_record_state (table_name, record_id, row_hash, dirty, synced_at)
VALUES (?, ?, '', 1, ?)
ON CONFLICT (table_name, record_id) DO UPDATE SET dirty = 1
`

// MarkRecordDirty forces a record into the next push regardless of its cursor
func (q *Queries) MarkRecordDirty(ctx context.Context, tableName, recordID string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, markRecordDirty, tableName, recordID, FormatTime(now))
	return err
}

const deleteRecordState = `-- name: DeleteRecordState :exec
DELETE FROM sync_record_state WHERE table_name = ? AND record_id = ?
`

// DeleteRecordState forgets a record, e.g. after its delete was agreed
func (q *Queries) DeleteRecordState(ctx context.Context, tableName, recordID string) error {
	_, err := q.db.ExecContext(ctx, deleteRecordState, tableName, recordID)
	return err
}

const listDirtyRecordIDs = `-- name: ListDirtyRecordIDs :many
SELECT record_id FROM sync_record_state
WHERE table_name = ? AND dirty = 1
ORDER BY record_id
`

// ListDirtyRecordIDs returns the records of a table flagged for push
func (q *Queries) ListDirtyRecordIDs(ctx context.Context, tableName string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listDirtyRecordIDs, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
