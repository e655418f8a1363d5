// Package store persists the conversion audit log.
//
// Every orchestrator run is journaled: the resolution result, each
// item's terminal outcome and final state, and whether the change was
// submitted. The journal is append-only and keyed by request token, so
// re-recording a run (idempotent re-run of the orchestrator) is a
// no-op rather than a duplicate.
//
// Storage is SQLite with WAL mode. The connection pool is capped at a
// single connection: SQLite allows one writer at a time and a second
// connection would only manufacture SQLITE_BUSY errors.
package store
