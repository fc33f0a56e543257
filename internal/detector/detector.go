// Package detector determines which local records changed since a table's
// push cursor.
//
// A record is a change when its cursor column is at or after the cursor or
// when the record-state ledger flags it dirty. Records whose content hash
// equals the last agreed hash are echoes of pulled or already pushed data and
// are not changes, which is what lets the cursor bound be inclusive.
package detector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/possync/possync/internal/db/queries"
	"github.com/possync/possync/internal/status"
	"github.com/possync/possync/internal/tables"
)

// Change is one local record mutation to push
type Change struct {
	RecordID  string
	Operation status.Operation
	Fields    tables.Row
	Cursor    string
	Hash      string
	// Dirty is true when the ledger forced the record into the change-set
	Dirty bool
}

// ChangeSet is the ordered result of a detection pass
type ChangeSet struct {
	Changes []Change
	// Cursor is the highest cursor value seen, echoes included. Committing it
	// after a successful push skips everything this pass examined.
	Cursor string
}

// Detector produces change-sets. It is stateless and safe for concurrent use.
type Detector struct{}

// New returns a Detector
func New() *Detector {
	return &Detector{}
}

// Changes returns the change-set of table since cursor, oldest first by cursor
// value then primary key, followed by dirty records outside that window.
// Running it twice with the same cursor and no intervening writes yields the same set.
func (*Detector) Changes(ctx context.Context, q *queries.Queries, table *tables.Table, cursor string) (*ChangeSet, error) {
	db := q.DB()
	records, err := table.ChangedSince(ctx, db, cursor)
	if err != nil {
		return nil, err
	}

	dirtyIDs, err := q.ListDirtyRecordIDs(ctx, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty records of %s: %w", table.Name, err)
	}
	dirty := make(map[string]bool, len(dirtyIDs))
	for _, id := range dirtyIDs {
		dirty[id] = true
	}

	set := &ChangeSet{Cursor: cursor}
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		seen[rec.ID] = true
		if table.CompareCursors(rec.Cursor, set.Cursor) > 0 {
			set.Cursor = rec.Cursor
		}
		change, ok, err := classify(ctx, q, table, rec, dirty[rec.ID])
		if err != nil {
			return nil, err
		}
		if ok {
			set.Changes = append(set.Changes, change)
		}
	}

	for _, id := range dirtyIDs {
		if seen[id] {
			continue
		}
		rec, found, err := table.Get(ctx, db, id)
		if err != nil {
			return nil, err
		}
		if !found {
			// Hard-deleted locally after being flagged
			set.Changes = append(set.Changes, Change{
				RecordID:  id,
				Operation: status.OperationDelete,
				Dirty:     true,
			})
			continue
		}
		change, ok, err := classify(ctx, q, table, rec, true)
		if err != nil {
			return nil, err
		}
		if ok {
			set.Changes = append(set.Changes, change)
		}
	}

	return set, nil
}

// Pending counts the records a push from cursor would send. Records held back
// by an unresolved conflict are not counted.
func (d *Detector) Pending(ctx context.Context, q *queries.Queries, table *tables.Table, cursor string) (int, error) {
	set, err := d.Changes(ctx, q, table, cursor)
	if err != nil {
		return 0, err
	}
	blocked, err := q.ListUnresolvedRecordIDs(ctx, table.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to list conflicted records of %s: %w", table.Name, err)
	}
	pending := 0
	for _, change := range set.Changes {
		if !blocked[change.RecordID] {
			pending++
		}
	}
	return pending, nil
}

func classify(
	ctx context.Context, q *queries.Queries, table *tables.Table, rec tables.Record, forced bool,
) (Change, bool, error) {
	hash := table.Hash(rec.Fields)

	state, err := q.GetRecordState(ctx, table.Name, rec.ID)
	hasState := true
	if errors.Is(err, sql.ErrNoRows) {
		hasState = false
	} else if err != nil {
		return Change{}, false, fmt.Errorf("failed to read record state of %s/%s: %w", table.Name, rec.ID, err)
	}

	if hasState && !forced && !state.Dirty && state.RowHash == hash {
		return Change{}, false, nil
	}

	change := Change{
		RecordID:  rec.ID,
		Operation: status.OperationUpdate,
		Fields:    table.Payload(rec.Fields),
		Cursor:    rec.Cursor,
		Hash:      hash,
		Dirty:     forced || (hasState && state.Dirty),
	}
	switch {
	case table.Deleted(rec.Fields):
		change.Operation = status.OperationDelete
	case !hasState || state.RowHash == "":
		change.Operation = status.OperationInsert
	}
	return change, true, nil
}
