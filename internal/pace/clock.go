package pace

import (
	"context"
	"time"
)

// Clock abstracts time for pacing decisions.
//
// Implemented by WallClock (production) and testutil.RecordingClock
// (tests). Injecting the clock keeps pacing deterministic under test:
// a recording clock advances a virtual now instead of sleeping.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is cancelled, whichever first.
	// Returns ctx.Err() when cancelled early, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}

// WallClock is the production Clock backed by the system clock.
//
// Thread-safety: WallClock is stateless and safe for concurrent use.
type WallClock struct{}

// Now returns time.Now().
func (WallClock) Now() time.Time { return time.Now() }

// Sleep blocks for d using a timer, honoring context cancellation.
func (WallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
