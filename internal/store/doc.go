// Package store persists scenario traces in SQLite.
//
// Each harness run becomes one row in runs, keyed by a time-ordered UUIDv7,
// and its trace becomes rows in events keyed by (run_id, seq). Event values
// are stored as JSON text.
//
// # Ordering
//
// Events are always read back ORDER BY seq, the logical clock of the run;
// runs are listed in ID order, which for UUIDv7 is creation order.
//
// # Database Configuration
//
//   - WAL mode: readers do not block the writer
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: deleting a run deletes its events
package store
