// Package tables reads and writes the host application's business tables.
//
// Column names come from PRAGMA table_info and are the only identifiers ever
// interpolated into SQL; every value is bound as a parameter.
package tables

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/possync/possync/internal/config"
	"github.com/possync/possync/internal/db/queries"
)

const cursorAlias = "__possync_cursor"

// ErrUnknownTable is returned when a configured table does not exist in the store
var ErrUnknownTable = errors.New("table does not exist")

// Row is a record keyed by column name
type Row map[string]any

// Table is a validated handle on one synchronized business table
type Table struct {
	Name          string
	PrimaryKey    string
	CursorColumn  string
	DeletedColumn string

	// NumericCursor is set when the cursor column has INTEGER or REAL
	// affinity, i.e. it holds a version number rather than a timestamp
	NumericCursor bool

	columns []string
	known   map[string]bool
}

// Introspect resolves the columns of a configured table
func Introspect(ctx context.Context, db queries.DBTX, cfg config.TableConfig) (*Table, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(cfg.Name)))
	if err != nil {
		return nil, fmt.Errorf("failed to introspect table %s: %w", cfg.Name, err)
	}
	defer rows.Close()

	t := &Table{
		Name:          cfg.Name,
		PrimaryKey:    cfg.PrimaryKey,
		CursorColumn:  cfg.CursorColumn,
		DeletedColumn: cfg.DeletedColumn,
		known:         make(map[string]bool),
	}
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to read columns of %s: %w", cfg.Name, err)
		}
		t.columns = append(t.columns, name)
		t.known[name] = true
		if name == cfg.CursorColumn {
			t.NumericCursor = numericAffinity(colType)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(t.columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, cfg.Name)
	}
	for _, col := range []string{cfg.PrimaryKey, cfg.CursorColumn, cfg.DeletedColumn} {
		if col != "" && !t.HasColumn(col) {
			return nil, fmt.Errorf("table %s has no column %s", cfg.Name, col)
		}
	}
	return t, nil
}

// HasColumn reports whether the column exists
func (t *Table) HasColumn(name string) bool {
	return t.known[name]
}

// Record is a business row read for synchronization
type Record struct {
	ID     string
	Cursor string
	Fields Row
}

// Deleted reports whether the soft-delete column marks the record as removed
func (t *Table) Deleted(r Row) bool {
	if t.DeletedColumn == "" {
		return false
	}
	return truthy(r[t.DeletedColumn])
}

// ChangedSince returns rows whose cursor is at or after cursor, oldest first.
// The bound is inclusive because rows written within the same timestamp tick
// as the committed cursor would otherwise never be seen; callers drop the
// re-read rows by content hash. An empty cursor returns every row.
func (t *Table) ChangedSince(ctx context.Context, db queries.DBTX, cursor string) ([]Record, error) {
	col := quote(t.CursorColumn)
	bound, order := fmt.Sprintf("CAST(%s AS TEXT) >= ?", col), fmt.Sprintf("CAST(%s AS TEXT)", col)
	if t.NumericCursor {
		bound, order = fmt.Sprintf("%s >= CAST(? AS NUMERIC)", col), col
	}
	query := fmt.Sprintf(
		"SELECT *, CAST(%s AS TEXT) AS %s FROM %s WHERE (? = '' OR %s) ORDER BY %s, %s",
		col, cursorAlias, quote(t.Name), bound, order, quote(t.PrimaryKey),
	)
	rows, err := db.QueryContext(ctx, query, cursor, cursor)
	if err != nil {
		return nil, fmt.Errorf("failed to read changes of %s: %w", t.Name, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := t.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns the live record, or false when it does not exist
func (t *Table) Get(ctx context.Context, db queries.DBTX, id string) (Record, bool, error) {
	query := fmt.Sprintf(
		"SELECT *, CAST(%s AS TEXT) AS %s FROM %s WHERE %s = ?",
		quote(t.CursorColumn), cursorAlias, quote(t.Name), quote(t.PrimaryKey),
	)
	rows, err := db.QueryContext(ctx, query, id)
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to read %s/%s: %w", t.Name, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return Record{}, false, rows.Err()
	}
	r, err := t.scan(rows)
	if err != nil {
		return Record{}, false, err
	}
	return r, true, rows.Err()
}

func (t *Table) scan(rows *sql.Rows) (Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return Record{}, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Record{}, fmt.Errorf("failed to scan %s row: %w", t.Name, err)
	}

	rec := Record{Fields: make(Row, len(cols))}
	for i, col := range cols {
		if col == cursorAlias {
			if s, ok := values[i].(string); ok {
				rec.Cursor = s
			}
			continue
		}
		rec.Fields[col] = normalize(values[i])
	}
	rec.ID = FormatID(rec.Fields[t.PrimaryKey])
	return rec, nil
}

// Upsert writes fields onto the record, creating it when missing. Unknown
// columns are ignored. Unless fields carry it, the cursor column is set to now,
// or to one past the table's highest version for a numeric cursor.
func (t *Table) Upsert(ctx context.Context, db queries.DBTX, id string, fields Row, now time.Time) error {
	cols := []string{t.PrimaryKey}
	values := []string{"?"}
	args := []any{id}
	for _, col := range t.writable(fields) {
		cols = append(cols, col)
		values = append(values, "?")
		args = append(args, toSQL(fields[col]))
	}
	if _, ok := fields[t.CursorColumn]; !ok {
		cols = append(cols, t.CursorColumn)
		if t.NumericCursor {
			values = append(values, fmt.Sprintf("(SELECT COALESCE(MAX(%s), 0) + 1 FROM %s)",
				quote(t.CursorColumn), quote(t.Name)))
		} else {
			values = append(values, "?")
			args = append(args, queries.FormatTime(now))
		}
	}

	quoted := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		quoted[i] = quote(col)
		if col != t.PrimaryKey {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quote(col), quote(col)))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quote(t.Name), strings.Join(quoted, ", "), strings.Join(values, ", "),
		quote(t.PrimaryKey), strings.Join(updates, ", "))
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", t.Name, id, err)
	}
	return nil
}

// Replace overwrites every non-identifier column present in fields on an
// existing record. It returns false when the record does not exist.
func (t *Table) Replace(ctx context.Context, db queries.DBTX, id string, fields Row) (bool, error) {
	cols := t.writable(fields)
	if len(cols) == 0 {
		_, found, err := t.Get(ctx, db, id)
		return found, err
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = ?", quote(col))
		args = append(args, toSQL(fields[col]))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quote(t.Name), strings.Join(sets, ", "), quote(t.PrimaryKey))
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to replace %s/%s: %w", t.Name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes the record. It returns false when there was nothing to delete.
func (t *Table) Delete(ctx context.Context, db queries.DBTX, id string) (bool, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(t.Name), quote(t.PrimaryKey))
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s/%s: %w", t.Name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// writable returns the known non-identifier columns of fields in a stable order
func (t *Table) writable(fields Row) []string {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if col == t.PrimaryKey || !t.known[col] {
			continue
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// CompareCursors orders two cursor values of this table, returning -1, 0 or +1.
// The empty cursor sorts first. Version cursors compare numerically and
// timestamp cursors as text.
func (t *Table) CompareCursors(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	if t.NumericCursor {
		if x, errA := strconv.ParseInt(a, 10, 64); errA == nil {
			if y, errB := strconv.ParseInt(b, 10, 64); errB == nil {
				return cmp.Compare(x, y)
			}
		}
		if x, errA := strconv.ParseFloat(a, 64); errA == nil {
			if y, errB := strconv.ParseFloat(b, 64); errB == nil {
				return cmp.Compare(x, y)
			}
		}
	}
	return strings.Compare(a, b)
}

// Payload returns the fields exchanged with the server: every column except the primary key
func (t *Table) Payload(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		if k == t.PrimaryKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Hash fingerprints the business content of a row. Only known columns count,
// the primary key and the cursor column are excluded and NULL equals absent,
// so a row rewritten by a pull hashes equal to what the server sent.
func (t *Table) Hash(r Row) string {
	content := make(map[string]any, len(r))
	for k, v := range r {
		if k == t.PrimaryKey || k == t.CursorColumn || !t.known[k] || v == nil {
			continue
		}
		content[k] = canonical(v)
	}
	// encoding/json sorts map keys, which makes the encoding canonical
	data, err := json.Marshal(content)
	if err != nil {
		data = []byte(fmt.Sprint(content))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two rows carry the same business content
func (t *Table) Equal(a, b Row) bool {
	return t.Hash(a) == t.Hash(b)
}

// FormatID renders a primary key value as the record identifier string
func FormatID(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// normalize converts driver values into JSON-friendly values
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// canonical maps numerically equal values onto one representation so that
// 10, 10.0 and json.Number("10") hash identically
func canonical(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return canonical(f)
		}
		return x.String()
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case int:
		return int64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

// toSQL converts a wire value into a bindable parameter
func toSQL(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return v
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "f", "no", "n":
			return false
		}
		return true
	default:
		return true
	}
}

// numericAffinity reports whether SQLite gives a declared column type INTEGER
// or REAL affinity. NUMERIC affinity does not count: DATETIME columns have it
// and usually hold ISO-8601 text.
func numericAffinity(declType string) bool {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return true
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return false
	}
	return strings.Contains(t, "REAL") || strings.Contains(t, "FLOA") || strings.Contains(t, "DOUB")
}

// quote renders an SQL identifier
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
