package testutil

import (
	"context"
	"sync"
	"time"
)

// RecordingClock is a deterministic pace.Clock for tests.
//
// Sleep never blocks: it advances a virtual now by the requested
// duration and records the request. Tests assert on the recorded
// durations instead of measuring wall-clock time, which keeps pacing
// tests deterministic and fast.
//
// Thread-safety: all methods are safe for concurrent use via internal
// mutex (lanes sleep concurrently when a channel has several).
type RecordingClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

// NewRecordingClock creates a clock positioned at start.
func NewRecordingClock(start time.Time) *RecordingClock {
	return &RecordingClock{now: start}
}

// Now returns the virtual current time.
func (c *RecordingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the virtual now by d and records the request.
// Honors context cancellation without advancing.
func (c *RecordingClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

// Advance moves the virtual now forward without recording a sleep.
// Used to simulate time passing between dispatches.
func (c *RecordingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns a copy of the recorded sleep durations in order.
func (c *RecordingClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Slept returns the total of all recorded sleep durations.
func (c *RecordingClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		total += d
	}
	return total
}
