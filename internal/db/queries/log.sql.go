package queries

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/possync/possync/internal/status"
)

const insertLogEntry = `-- name: InsertLogEntry :one
INSERT INTO sync_log (
    run_id, sync_type, table_name, operation, record_id, status, error_message, started_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

// InsertLogEntryParams describes a new log row. A nil CompletedAt opens the entry.
type InsertLogEntryParams struct {
	RunID        string
	SyncType     status.SyncType
	TableName    string
	Operation    *status.Operation
	RecordID     *string
	Status       status.LogStatus
	ErrorMessage *string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// InsertLogEntry appends a log row and returns its id
func (q *Queries) InsertLogEntry(ctx context.Context, arg InsertLogEntryParams) (int64, error) {
	var operation sql.NullString
	if arg.Operation != nil {
		operation = sql.NullString{String: string(*arg.Operation), Valid: true}
	}
	row := q.db.QueryRowContext(ctx, insertLogEntry,
		arg.RunID,
		arg.SyncType,
		arg.TableName,
		operation,
		nullString(arg.RecordID),
		arg.Status,
		nullString(arg.ErrorMessage),
		FormatTime(arg.StartedAt),
		nullTime(arg.CompletedAt),
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const completeLogEntry = `-- name: CompleteLogEntry :exec
UPDATE sync_log
SET status = ?, error_message = ?, completed_at = ?
WHERE id = ? AND completed_at IS NULL
`

// CompleteLogEntryParams is the terminal write of an open log row
type CompleteLogEntryParams struct {
	ID           int64
	Status       status.LogStatus
	ErrorMessage *string
	CompletedAt  time.Time
}

// CompleteLogEntry finalizes an open entry. Completed entries are never
// rewritten; sql.ErrNoRows is returned when the entry is missing or closed.
func (q *Queries) CompleteLogEntry(ctx context.Context, arg CompleteLogEntryParams) error {
	res, err := q.db.ExecContext(ctx, completeLogEntry,
		arg.Status,
		nullString(arg.ErrorMessage),
		FormatTime(arg.CompletedAt),
		arg.ID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

const listLogEntries = `-- name: ListLogEntries :many
SELECT id, run_id, sync_type, table_name, operation, record_id, status, error_message, started_at, completed_at
FROM sync_log
ORDER BY started_at DESC, id DESC
LIMIT ?
`

// ListLogEntries returns the newest log rows first
func (q *Queries) ListLogEntries(ctx context.Context, limit int64) ([]SyncLogEntry, error) {
	rows, err := q.db.QueryContext(ctx, listLogEntries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SyncLogEntry{}
	for rows.Next() {
		var (
			i            SyncLogEntry
			operation    sql.NullString
			recordID     sql.NullString
			errorMessage sql.NullString
			startedAt    string
			completedAt  sql.NullString
		)
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.SyncType,
			&i.TableName,
			&operation,
			&recordID,
			&i.Status,
			&errorMessage,
			&startedAt,
			&completedAt,
		); err != nil {
			return nil, err
		}
		if operation.Valid {
			op := status.Operation(operation.String)
			i.Operation = &op
		}
		i.RecordID = ptrString(recordID)
		i.ErrorMessage = ptrString(errorMessage)
		if i.StartedAt, err = ParseTime(startedAt); err != nil {
			return nil, fmt.Errorf("started_at: %w", err)
		}
		if i.CompletedAt, err = parseNullTime(completedAt); err != nil {
			return nil, fmt.Errorf("completed_at: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteLogEntriesBefore = `-- name: DeleteLogEntriesBefore :execrows
DELETE FROM sync_log WHERE started_at < ?
`

// DeleteLogEntriesBefore purges rows started strictly before cutoff and returns the count removed
func (q *Queries) DeleteLogEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteLogEntriesBefore, FormatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
