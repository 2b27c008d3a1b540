// Package store provides the SQLite-backed mapping table.
//
// Each row binds the LOCAL and REMOTE ids of one network, subnet or port,
// keyed by (kind, sync_key), together with its lifecycle status and the last
// agreed snapshot of its update fields.
//
// # Invariants
//
// The schema enforces them with CHECK constraints, so no write can leave a
// row whose status disagrees with the nullness of its ids:
//   - ACTIVE: both ids set
//   - CREATING, DELETING: exactly one id set
//   - (kind, sync_key) unique
//
// The reconciler is the only writer. CLI queries and the driver facade open
// the database read-only.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//
// Queries that return several rows are ordered by kind, sync_key and id so
// that dumps of the table are byte-stable.
package store
