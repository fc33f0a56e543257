// Package conflict detects and settles divergent edits of the same record.
//
// The base version of a record is the hash stored in the record-state ledger
// the last time both sides agreed. A local side has changed when the live row
// no longer matches that hash or the ledger flags it dirty.
package conflict

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/possync/possync/internal/db"
	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/status"
	"github.com/possync/possync/internal/syncerr"
	"github.com/possync/possync/internal/tables"
	"github.com/possync/possync/internal/transport"
)

// Action is what reconciling one remote change did
type Action string

const (
	// ActionApplied means only the remote side changed and it was applied
	ActionApplied Action = "applied"
	// ActionConverged means both sides changed to identical content
	ActionConverged Action = "converged"
	// ActionConflict means an unresolved conflict was recorded and nothing was applied
	ActionConflict Action = "conflict"
	// ActionKeptLocal means the local-wins policy kept the local version
	ActionKeptLocal Action = "kept_local"
	// ActionAppliedRemote means the remote-wins policy applied the remote version
	ActionAppliedRemote Action = "applied_remote"
)

// IsConflict reports whether the action settled or recorded a divergence
func (a Action) IsConflict() bool {
	return a == ActionConflict || a == ActionKeptLocal || a == ActionAppliedRemote
}

// Outcome describes the handling of one remote change
type Outcome struct {
	Action     Action
	ConflictID string
}

// Conflict is a detected divergence, before it is recorded
type Conflict struct {
	Table    string
	RecordID string
	Local    tables.Row
	Remote   transport.Change
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver applies a conflict policy while pulling and settles recorded conflicts on demand
type Resolver struct {
	db     *sql.DB
	policy status.Policy
	tables map[string]*tables.Table
	now    func() time.Time
}

// NewResolver creates a Resolver over the synchronized tables
func NewResolver(sqlDB *sql.DB, policy status.Policy, synced []*tables.Table, opts ...Option) *Resolver {
	if policy == "" {
		policy = status.PolicyManual
	}
	r := &Resolver{
		db:     sqlDB,
		policy: policy,
		tables: make(map[string]*tables.Table, len(synced)),
		now:    time.Now,
	}
	for _, t := range synced {
		r.tables[t.Name] = t
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured policy
func (r *Resolver) Policy() status.Policy {
	return r.policy
}

// LocalChanged reports whether the live record moved away from its last agreed
// version. Without a ledger entry the record counts as changed when its cursor
// is at or after the push cursor, i.e. the next push would send it.
func LocalChanged(table *tables.Table, local *tables.Record, state *queries.RecordState, pushCursor string) bool {
	if local == nil {
		return false
	}
	if state == nil {
		return table.CompareCursors(local.Cursor, pushCursor) >= 0
	}
	return state.Dirty || state.RowHash != table.Hash(local.Fields)
}

// Detect returns the conflict between the local record and a remote change,
// or nil when only one side changed or both carry the same field values.
func Detect(
	table *tables.Table, local *tables.Record, state *queries.RecordState, pushCursor string, remote transport.Change,
) *Conflict {
	if !LocalChanged(table, local, state, pushCursor) {
		return nil
	}
	if remote.Operation != status.OperationDelete && table.Equal(local.Fields, tables.Row(remote.Fields)) {
		return nil
	}
	if remote.Operation == status.OperationDelete && table.Deleted(local.Fields) {
		return nil
	}
	return &Conflict{
		Table:    table.Name,
		RecordID: remote.RecordID,
		Local:    local.Fields,
		Remote:   remote,
	}
}

// Reconcile handles one remote change inside the caller's table transaction.
// pushCursor is the table's committed push cursor.
func (r *Resolver) Reconcile(
	ctx context.Context, tx queries.DBTX, q *queries.Queries, table *tables.Table, pushCursor string, remote transport.Change,
) (Outcome, error) {
	local, state, err := loadLocal(ctx, tx, q, table, remote.RecordID)
	if err != nil {
		return Outcome{}, err
	}

	open, err := q.GetUnresolvedConflictForRecord(ctx, table.Name, remote.RecordID)
	hasOpen := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Outcome{}, fmt.Errorf("failed to read open conflict of %s/%s: %w", table.Name, remote.RecordID, err)
	}

	c := Detect(table, local, state, pushCursor, remote)
	if c == nil && hasOpen {
		// The record is still waiting for a decision; keep the newest remote
		// version with it. A record deleted locally meanwhile is not recreated.
		c = &Conflict{Table: table.Name, RecordID: remote.RecordID, Remote: remote}
		if local != nil {
			c.Local = local.Fields
		}
	}

	if c == nil {
		if local != nil && remote.Operation != status.OperationDelete && table.Equal(local.Fields, tables.Row(remote.Fields)) &&
			LocalChanged(table, local, state, pushCursor) {
			if err := r.remember(ctx, q, table, local); err != nil {
				return Outcome{}, err
			}
			return Outcome{Action: ActionConverged}, nil
		}
		if err := r.applyRemote(ctx, tx, q, table, remote); err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionApplied}, nil
	}

	params, err := r.conflictParams(table, c)
	if err != nil {
		return Outcome{}, err
	}
	if c.Local == nil && hasOpen {
		params.LocalData = open.LocalData
	}

	switch r.policy {
	case status.PolicyLocalWins:
		if err := q.MarkRecordDirty(ctx, table.Name, c.RecordID, r.now()); err != nil {
			return Outcome{}, fmt.Errorf("failed to flag %s/%s for push: %w", table.Name, c.RecordID, err)
		}
		id, err := r.recordResolved(ctx, q, params, open, hasOpen, status.ResolutionLocal)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionKeptLocal, ConflictID: id}, nil

	case status.PolicyRemoteWins:
		if err := r.applyRemote(ctx, tx, q, table, remote); err != nil {
			return Outcome{}, err
		}
		id, err := r.recordResolved(ctx, q, params, open, hasOpen, status.ResolutionRemote)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Action: ActionAppliedRemote, ConflictID: id}, nil

	default:
		id, err := q.UpsertUnresolvedConflict(ctx, params)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to record conflict on %s/%s: %w", table.Name, c.RecordID, err)
		}
		slog.Info("Conflict recorded",
			"table", table.Name,
			"record_id", c.RecordID,
			"conflict_id", id)
		return Outcome{Action: ActionConflict, ConflictID: id}, nil
	}
}

func (r *Resolver) recordResolved(
	ctx context.Context, q *queries.Queries, params queries.ConflictParams,
	open queries.SyncConflict, hasOpen bool, resolution status.Resolution,
) (string, error) {
	if hasOpen {
		if _, err := q.MarkConflictResolved(ctx, open.ID, resolution, r.now()); err != nil {
			return "", fmt.Errorf("failed to resolve conflict %s: %w", open.ID, err)
		}
		return open.ID, nil
	}
	if err := q.InsertResolvedConflict(ctx, params, resolution); err != nil {
		return "", fmt.Errorf("failed to record conflict on %s/%s: %w", params.TableName, params.RecordID, err)
	}
	return params.ID, nil
}

func (r *Resolver) conflictParams(table *tables.Table, c *Conflict) (queries.ConflictParams, error) {
	localData, err := json.Marshal(table.Payload(c.Local))
	if err != nil {
		return queries.ConflictParams{}, fmt.Errorf("failed to serialize local version: %w", err)
	}
	remoteFields := c.Remote.Fields
	if remoteFields == nil {
		remoteFields = map[string]any{}
	}
	remoteData, err := json.Marshal(remoteFields)
	if err != nil {
		return queries.ConflictParams{}, fmt.Errorf("failed to serialize remote version: %w", err)
	}
	return queries.ConflictParams{
		ID:              uuid.NewString(),
		TableName:       table.Name,
		RecordID:        c.RecordID,
		LocalData:       localData,
		RemoteData:      remoteData,
		RemoteOperation: c.Remote.Operation,
		Now:             r.now(),
	}, nil
}

// applyRemote writes a remote change to the live record and records it as agreed
func (r *Resolver) applyRemote(
	ctx context.Context, tx queries.DBTX, q *queries.Queries, table *tables.Table, remote transport.Change,
) error {
	if remote.Operation == status.OperationDelete {
		if _, err := table.Delete(ctx, tx, remote.RecordID); err != nil {
			return err
		}
		if err := q.DeleteRecordState(ctx, table.Name, remote.RecordID); err != nil {
			return fmt.Errorf("failed to forget %s/%s: %w", table.Name, remote.RecordID, err)
		}
		return nil
	}

	if err := table.Upsert(ctx, tx, remote.RecordID, tables.Row(remote.Fields), r.now()); err != nil {
		return err
	}
	stored, found, err := table.Get(ctx, tx, remote.RecordID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("record %s/%s missing after write", table.Name, remote.RecordID)
	}
	return r.remember(ctx, q, table, &stored)
}

// remember stores the record's current content as the agreed version
func (r *Resolver) remember(ctx context.Context, q *queries.Queries, table *tables.Table, rec *tables.Record) error {
	err := q.UpsertRecordState(ctx, queries.UpsertRecordStateParams{
		TableName: table.Name,
		RecordID:  rec.ID,
		RowHash:   table.Hash(rec.Fields),
		Dirty:     false,
		SyncedAt:  r.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to update record state of %s/%s: %w", table.Name, rec.ID, err)
	}
	return nil
}

func loadLocal(
	ctx context.Context, tx queries.DBTX, q *queries.Queries, table *tables.Table, id string,
) (*tables.Record, *queries.RecordState, error) {
	rec, found, err := table.Get(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	var local *tables.Record
	if found {
		local = &rec
	}

	state, err := q.GetRecordState(ctx, table.Name, id)
	if errors.Is(err, sql.ErrNoRows) {
		return local, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read record state of %s/%s: %w", table.Name, id, err)
	}
	return local, &state, nil
}

// Resolve settles a recorded conflict by writing the chosen side to the live
// record. The conflict row, the record and its ledger entry change in one
// transaction.
func (r *Resolver) Resolve(ctx context.Context, conflictID string, resolution status.Resolution) error {
	if !resolution.Valid() {
		return syncerr.NewValidationError("resolution", fmt.Sprintf("must be local or remote, got %q", resolution))
	}

	return db.RunInTx(ctx, r.db, func(tx *sql.Tx, q *queries.Queries) error {
		c, err := q.GetConflict(ctx, conflictID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("conflict %s: %w", conflictID, syncerr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read conflict %s: %w", conflictID, err)
		}
		if c.Resolved {
			return fmt.Errorf("conflict %s: %w", conflictID, syncerr.ErrAlreadyResolved)
		}

		table, ok := r.tables[c.TableName]
		if !ok {
			return fmt.Errorf("table %s of conflict %s: %w", c.TableName, conflictID, syncerr.ErrNotFound)
		}
		if _, found, err := table.Get(ctx, tx, c.RecordID); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("record %s/%s: %w", c.TableName, c.RecordID, syncerr.ErrNotFound)
		}

		if err := r.writeSide(ctx, tx, q, table, c, resolution); err != nil {
			return err
		}

		ok, err = q.MarkConflictResolved(ctx, c.ID, resolution, r.now())
		if err != nil {
			return fmt.Errorf("failed to resolve conflict %s: %w", c.ID, err)
		}
		if !ok {
			return fmt.Errorf("conflict %s: %w", conflictID, syncerr.ErrAlreadyResolved)
		}

		slog.Info("Conflict resolved",
			"conflict_id", c.ID,
			"table", c.TableName,
			"record_id", c.RecordID,
			"resolution", resolution)
		return nil
	})
}

// writeSide replaces the non-identifier columns of the live record with the chosen version
func (r *Resolver) writeSide(
	ctx context.Context, tx *sql.Tx, q *queries.Queries, table *tables.Table, c queries.SyncConflict,
	resolution status.Resolution,
) error {
	data := c.LocalData
	if resolution == status.ResolutionRemote {
		if c.RemoteOperation == status.OperationDelete {
			return r.applyRemote(ctx, tx, q, table, transport.Change{
				RecordID:  c.RecordID,
				Operation: status.OperationDelete,
			})
		}
		data = c.RemoteData
	}

	var fields tables.Row
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to decode %s version of conflict %s: %w", resolution, c.ID, err)
	}
	if _, err := table.Replace(ctx, tx, c.RecordID, fields); err != nil {
		return err
	}

	if resolution == status.ResolutionLocal {
		if err := q.MarkRecordDirty(ctx, table.Name, c.RecordID, r.now()); err != nil {
			return fmt.Errorf("failed to flag %s/%s for push: %w", table.Name, c.RecordID, err)
		}
		return nil
	}

	stored, found, err := table.Get(ctx, tx, c.RecordID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("record %s/%s: %w", c.TableName, c.RecordID, syncerr.ErrNotFound)
	}
	return r.remember(ctx, q, table, &stored)
}
