// Package journal records bake passes in SQLite.
//
// Each pass gets a row in passes, keyed by a UUIDv7, and one row per
// designated member in members. ord is the scan order; seq is the order
// the member was invoked in, 0 when it never was.
//
// Reads order by ord, then key with binary collation, so listings are
// identical across runs.
//
// # Database Configuration
//
//   - WAL mode: the CLI may list passes while a generate is writing
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package journal
