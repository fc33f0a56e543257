package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/possync/possync/internal/conflict"
	"github.com/possync/possync/internal/db"
	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/detector"
	"github.com/possync/possync/internal/otel"
	"github.com/possync/possync/internal/status"
	"github.com/possync/possync/internal/syncerr"
	"github.com/possync/possync/internal/tables"
	"github.com/possync/possync/internal/transport"
)

// passOutcome counts what one table pass did
type passOutcome struct {
	synced    int
	conflicts int
	rejected  int
}

// pass carries the bookkeeping of one table pass in one direction
type pass struct {
	runID    string
	syncType status.SyncType
	dir      Direction
	table    *tables.Table
	meta     queries.SyncMetadata
	logID    int64
	// priorErr is the failure of this table's pull earlier in the same full sync
	priorErr string
}

func (e *defaultEngine) syncTable(
	ctx context.Context, runID string, syncType status.SyncType, dir Direction, table *tables.Table, priorErr string,
) (passOutcome, error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, fmt.Sprintf("sync.%s %s", dir, table.Name),
		trace.WithAttributes(
			otel.AttrTable.String(table.Name),
			otel.AttrDirection.String(string(dir)),
		))
	defer span.End()

	start := e.now()
	p, err := e.begin(ctx, runID, syncType, dir, table)
	if err != nil {
		otel.RecordError(span, err)
		return passOutcome{}, err
	}
	p.priorErr = priorErr

	var out passOutcome
	switch dir {
	case DirectionPull:
		out, err = e.pull(ctx, p)
	default:
		out, err = e.push(ctx, p)
	}

	duration := e.now().Sub(start)
	e.metrics.RecordSyncDuration(ctx, table.Name, string(dir), duration, err == nil)

	if err != nil {
		otel.RecordError(span, err)
		if ctx.Err() != nil {
			// Left in_progress; the next operation redoes the table from its cursor
			return out, err
		}
		e.fail(ctx, p, err)
		return out, err
	}

	e.metrics.RecordRecordsSynced(ctx, table.Name, string(dir), out.synced)
	e.metrics.RecordRecordsRejected(ctx, table.Name, out.rejected)
	e.metrics.RecordConflicts(ctx, table.Name, string(e.resolver.Policy()), out.conflicts)
	span.SetAttributes(
		otel.AttrRecordsSynced.Int(out.synced),
		otel.AttrConflicts.Int(out.conflicts),
		otel.AttrRecordsRejected.Int(out.rejected),
	)
	otel.RecordSuccess(span)

	slog.Info("Table synced",
		"run_id", runID,
		"table", table.Name,
		"direction", dir,
		"records_synced", out.synced,
		"conflicts", out.conflicts,
		"rejected", out.rejected,
		"duration", duration)
	return out, nil
}

// begin commits the in_progress status and opens the table-level log entry
func (e *defaultEngine) begin(
	ctx context.Context, runID string, syncType status.SyncType, dir Direction, table *tables.Table,
) (*pass, error) {
	p := &pass{runID: runID, syncType: syncType, dir: dir, table: table}
	err := db.RunInTx(ctx, e.db, func(_ *sql.Tx, q *queries.Queries) error {
		now := e.now()
		if err := q.EnsureMetadata(ctx, table.Name, now); err != nil {
			return fmt.Errorf("failed to create metadata of %s: %w", table.Name, err)
		}
		meta, err := q.GetMetadata(ctx, table.Name)
		if err != nil {
			return fmt.Errorf("failed to read metadata of %s: %w", table.Name, err)
		}
		if meta.Status == status.TablePhaseInProgress {
			slog.Warn("Resuming interrupted table",
				"table", table.Name,
				"pull_cursor", meta.PullCursor,
				"push_cursor", meta.PushCursor)
		}
		if err := q.MarkMetadataInProgress(ctx, table.Name, now); err != nil {
			return fmt.Errorf("failed to mark %s in progress: %w", table.Name, err)
		}
		p.logID, err = q.InsertLogEntry(ctx, queries.InsertLogEntryParams{
			RunID:     runID,
			SyncType:  syncType,
			TableName: table.Name,
			Status:    status.LogStatusInProgress,
			StartedAt: now,
		})
		if err != nil {
			return fmt.Errorf("failed to open log entry of %s: %w", table.Name, err)
		}
		p.meta = meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// fail records the terminal failed state of a pass
func (e *defaultEngine) fail(ctx context.Context, p *pass, cause error) {
	message := cause.Error()
	err := db.RunInTx(ctx, e.db, func(_ *sql.Tx, q *queries.Queries) error {
		now := e.now()
		if err := q.MarkMetadataFailed(ctx, p.table.Name, message, now); err != nil {
			return err
		}
		return q.CompleteLogEntry(ctx, queries.CompleteLogEntryParams{
			ID:           p.logID,
			Status:       status.LogStatusFailed,
			ErrorMessage: &message,
			CompletedAt:  now,
		})
	})
	if err != nil {
		slog.Error("Failed to record table failure",
			"table", p.table.Name,
			"direction", p.dir,
			"cause", message,
			"error", err)
		return
	}
	slog.Warn("Table sync failed",
		"run_id", p.runID,
		"table", p.table.Name,
		"direction", p.dir,
		"error", message)
}

// complete finalizes the table-level log entry inside the data transaction
func (e *defaultEngine) complete(ctx context.Context, q *queries.Queries, p *pass, now time.Time) error {
	err := q.CompleteLogEntry(ctx, queries.CompleteLogEntryParams{
		ID:          p.logID,
		Status:      status.LogStatusSuccess,
		CompletedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to close log entry of %s: %w", p.table.Name, err)
	}
	return nil
}

// recordLog appends a completed per-record entry
func (*defaultEngine) recordLog(
	ctx context.Context, q *queries.Queries, p *pass, op status.Operation, recordID string,
	logStatus status.LogStatus, message string, now time.Time,
) error {
	var errMsg *string
	if message != "" {
		errMsg = &message
	}
	_, err := q.InsertLogEntry(ctx, queries.InsertLogEntryParams{
		RunID:        p.runID,
		SyncType:     p.syncType,
		TableName:    p.table.Name,
		Operation:    &op,
		RecordID:     &recordID,
		Status:       logStatus,
		ErrorMessage: errMsg,
		StartedAt:    now,
		CompletedAt:  &now,
	})
	if err != nil {
		return fmt.Errorf("failed to log %s/%s: %w", p.table.Name, recordID, err)
	}
	return nil
}

func (e *defaultEngine) pull(ctx context.Context, p *pass) (passOutcome, error) {
	resp, err := retry(ctx, e.settings, fmt.Sprintf("pull %s", p.table.Name),
		func() (*transport.PullResponse, error) {
			return e.client.PullChanges(ctx, p.table.Name, p.meta.PullCursor)
		})
	if err != nil {
		return passOutcome{}, err
	}

	var out passOutcome
	err = db.RunInTx(ctx, e.db, func(tx *sql.Tx, q *queries.Queries) error {
		out = passOutcome{}
		now := e.now()
		cursor := p.meta.PullCursor
		for _, change := range resp.Changes {
			outcome, err := e.resolver.Reconcile(ctx, tx, q, p.table, p.meta.PushCursor, change)
			if err != nil {
				return fmt.Errorf("failed to apply %s/%s: %w", p.table.Name, change.RecordID, err)
			}

			logStatus, message := status.LogStatusSuccess, ""
			if outcome.Action.IsConflict() {
				out.conflicts++
				logStatus = status.LogStatusConflict
				conflictErr := &syncerr.ConflictError{
					ConflictID: outcome.ConflictID,
					Table:      p.table.Name,
					RecordID:   change.RecordID,
				}
				message = fmt.Sprintf("%s (%s)", conflictErr, outcome.Action)
			}
			if outcome.Action != conflict.ActionConflict && outcome.Action != conflict.ActionKeptLocal {
				out.synced++
			}
			if err := e.recordLog(ctx, q, p, change.Operation, change.RecordID, logStatus, message, now); err != nil {
				return err
			}
			if change.Timestamp > cursor {
				cursor = change.Timestamp
			}
		}

		err := q.MarkPullSuccess(ctx, queries.MarkSuccessParams{
			TableName:     p.table.Name,
			Cursor:        cursor,
			TotalRecords:  int64(len(resp.Changes)),
			SyncedRecords: int64(out.synced),
			Now:           now,
		})
		if err != nil {
			return fmt.Errorf("failed to commit pull cursor of %s: %w", p.table.Name, err)
		}
		return e.complete(ctx, q, p, now)
	})
	return out, err
}

func (e *defaultEngine) push(ctx context.Context, p *pass) (passOutcome, error) {
	q := queries.New(e.db)
	set, err := e.detector.Changes(ctx, q, p.table, p.meta.PushCursor)
	if err != nil {
		return passOutcome{}, err
	}
	blocked, err := q.ListUnresolvedRecordIDs(ctx, p.table.Name)
	if err != nil {
		return passOutcome{}, fmt.Errorf("failed to list conflicted records of %s: %w", p.table.Name, err)
	}

	var sendable, skipped []detector.Change
	for _, change := range set.Changes {
		if blocked[change.RecordID] {
			skipped = append(skipped, change)
			continue
		}
		sendable = append(sendable, change)
	}

	accepted := make(map[string]bool, len(sendable))
	rejected := make(map[string]string)
	for start := 0; start < len(sendable); start += e.settings.BatchSize {
		end := min(start+e.settings.BatchSize, len(sendable))
		batch := toWire(sendable[start:end])
		res, err := retry(ctx, e.settings, fmt.Sprintf("push %s", p.table.Name),
			func() (*transport.PushResult, error) {
				return e.client.PushChanges(ctx, p.table.Name, batch)
			})
		if err != nil {
			return passOutcome{}, err
		}
		for _, id := range res.Accepted {
			accepted[id] = true
		}
		for _, r := range res.Rejected {
			rejected[r.RecordID] = r.Error
		}
	}

	var out passOutcome
	err = db.RunInTx(ctx, e.db, func(_ *sql.Tx, q *queries.Queries) error {
		out = passOutcome{}
		now := e.now()
		for _, change := range sendable {
			reason, isRejected := rejected[change.RecordID]
			if !isRejected && !accepted[change.RecordID] {
				isRejected, reason = true, "not acknowledged by server"
			}
			if isRejected {
				out.rejected++
				// Re-offered on the next push regardless of its cursor
				if err := q.MarkRecordDirty(ctx, p.table.Name, change.RecordID, now); err != nil {
					return fmt.Errorf("failed to flag %s/%s: %w", p.table.Name, change.RecordID, err)
				}
				if err := e.recordLog(ctx, q, p, change.Operation, change.RecordID,
					status.LogStatusFailed, reason, now); err != nil {
					return err
				}
				continue
			}

			out.synced++
			if err := e.acknowledge(ctx, q, p.table, change, now); err != nil {
				return err
			}
			if err := e.recordLog(ctx, q, p, change.Operation, change.RecordID,
				status.LogStatusSuccess, "", now); err != nil {
				return err
			}
		}

		for _, change := range skipped {
			if err := e.recordLog(ctx, q, p, change.Operation, change.RecordID,
				status.LogStatusSkipped, "unresolved conflict", now); err != nil {
				return err
			}
		}

		err := q.MarkPushSuccess(ctx, queries.MarkSuccessParams{
			TableName:     p.table.Name,
			Cursor:        set.Cursor,
			TotalRecords:  int64(len(set.Changes)),
			SyncedRecords: int64(out.synced),
			Now:           now,
		})
		if err != nil {
			return fmt.Errorf("failed to commit push cursor of %s: %w", p.table.Name, err)
		}
		if p.priorErr != "" {
			// The table keeps its failed status until both directions succeed
			if err := q.MarkMetadataFailed(ctx, p.table.Name, p.priorErr, now); err != nil {
				return fmt.Errorf("failed to keep failure of %s: %w", p.table.Name, err)
			}
		}
		return e.complete(ctx, q, p, now)
	})
	return out, err
}

// acknowledge records an accepted change as the agreed version
func (*defaultEngine) acknowledge(
	ctx context.Context, q *queries.Queries, table *tables.Table, change detector.Change, now time.Time,
) error {
	if change.Operation == status.OperationDelete && change.Fields == nil {
		if err := q.DeleteRecordState(ctx, table.Name, change.RecordID); err != nil {
			return fmt.Errorf("failed to forget %s/%s: %w", table.Name, change.RecordID, err)
		}
		return nil
	}
	err := q.UpsertRecordState(ctx, queries.UpsertRecordStateParams{
		TableName: table.Name,
		RecordID:  change.RecordID,
		RowHash:   change.Hash,
		Dirty:     false,
		SyncedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("failed to update record state of %s/%s: %w", table.Name, change.RecordID, err)
	}
	return nil
}

func toWire(changes []detector.Change) []transport.Change {
	out := make([]transport.Change, 0, len(changes))
	for _, c := range changes {
		fields := map[string]any(c.Fields)
		if fields == nil {
			fields = map[string]any{}
		}
		out = append(out, transport.Change{
			RecordID:  c.RecordID,
			Operation: c.Operation,
			Fields:    fields,
		})
	}
	return out
}
