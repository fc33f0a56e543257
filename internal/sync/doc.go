// Package sync orchestrates synchronization between the local store and the
// remote sync API.
//
// # Core Interfaces
//
//   - Engine: runs full, pull and push operations over the configured tables
//
// The sync/coordinator subpackage schedules periodic full syncs on top of an
// Engine. See internal/sync/coordinator for details.
//
// # Table Passes
//
// Each operation walks the configured tables in order, parents before
// children. A pass over one table in one direction moves its metadata row
// through pending, in_progress and then success or failed:
//
//   - The in_progress write and the table-level log entry are committed before
//     any transport call.
//   - The transport call is retried with exponential backoff while the failure
//     is retryable (network errors, timeouts, 5xx, 429).
//   - Applied records, per-record log entries, ledger updates, cursors and the
//     success status are committed in one transaction.
//
// A failing table is recorded as failed and never stops the next table. A
// cancelled context stops the walk and leaves the current table in_progress;
// the next operation redoes it from its committed cursor.
//
// # Results
//
// Result summarizes the tables processed, records synced and conflicts
// detected. The error is a *syncerr.PartialFailureError when some passes
// failed and others succeeded, and the underlying *syncerr.TransportError
// when every pass failed on transport.
//
// # Exclusion
//
// At most one operation runs at a time. A second caller receives
// syncerr.ErrSyncInProgress instead of waiting.
package sync
