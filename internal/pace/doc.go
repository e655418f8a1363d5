// Package pace implements the rate-limited dispatcher for calls to
// rate-constrained external services.
//
// ARCHITECTURE:
//
// Named channels:
// Each channel carries a fixed pacing budget supplied at construction:
// a minimum inter-dispatch interval and a number of parallel lanes.
// Channel configuration is never renegotiated at runtime.
//
// Lanes:
// A lane is a single goroutine draining a FIFO queue. Submissions are
// assigned to lanes round-robin, so a channel with K lanes sustains up
// to K dispatches per interval while every lane preserves submission
// order for the subsequence routed to it. Global ordering across lanes
// is NOT guaranteed.
//
// Pacing:
// The interval is applied between consecutive dispatches on a lane
// whether the prior operation succeeded or failed - a failing call
// still consumes its time slot. Callers always receive either the
// operation's result or a propagated failure, never silence.
//
// Time is injected through the Clock interface so pacing behavior is
// testable without real sleeps.
package pace
