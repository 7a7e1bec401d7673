// Package store provides the SQLite journal of bindings and frame events.
//
// The journal is append-only:
//   - bindings: one row per (re)bind, with the keys, compilation values,
//     counters and levels the unit was bound with
//   - frame_events: one row per use-site per frame, with the outcome and
//     the first changed key
//
// # Ordering
//
// All ordering uses seq, the engine's logical frame clock, never wall time.
// Queries order by seq ASC and then id ASC COLLATE BINARY, so two reads of
// the same journal return identical results.
//
// # Drivers
//
// Open uses mattn/go-sqlite3 (driver "sqlite3", cgo). OpenWithDriver also
// accepts "sqlite" for the pure-Go modernc.org/sqlite driver, for builds
// without cgo.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Compilation values are stored as canonical JSON (ir.MarshalCanonical).
package store
