// Package journal records completed schedule invocations.
//
// It is write-mostly: the runner appends one Entry per finished run and the
// CLI reads recent entries back for display. Nothing here is used to resume
// schedules or replay missed runs after a restart.
//
// Backends:
//   - file: <prefix>.runs.jsonl (append-only JSON Lines)
//   - sqlite: a single SQLite database file (modernc.org/sqlite, no cgo)
package journal
