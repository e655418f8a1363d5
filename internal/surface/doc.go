// Package surface defines the ports onto the externally-owned mutable
// surface: change notifications scoped to subtrees, synchronous state
// queries through control interfaces, and mutation requests (open
// dialog, select option, commit, remove, rewrite, finalize).
//
// The engine is written purely against these interfaces. Fake is the
// in-memory implementation used by tests and scenario runs; a
// production adapter binds the same interfaces to a real rendering
// process.
//
// Delivery model: notifications are delivered synchronously on the
// goroutine that caused the change. The surface is owned by a single
// external rendering process, so the engine follows a wait-before-
// proceed discipline instead of locking - it never issues the next
// mutating action until the previous one's effect has been observed.
package surface
