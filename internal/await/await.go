// Package await provides bounded waits on externally-mutated state.
//
// The waiters never poll on a fixed clock: they check once
// immediately, then re-check only on change notifications from the
// surface, bounding the worst case with a deadline. Every exit path
// (resolve, timeout, cancellation) removes the subscription, so no
// callback ever fires after a waiter returns.
package await

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chaban-mb/wikilift/internal/surface"
)

// TimeoutError is returned when the awaited condition did not hold
// (or did not clear) before the deadline elapsed.
type TimeoutError struct {
	// Scope is the notification scope that was being watched.
	Scope string

	// Waited is the deadline that elapsed.
	Waited time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("await: condition not met within %s (scope=%s)", e.Waited, e.Scope)
}

// IsTimeout returns true if the error is a TimeoutError.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Appearance waits for check to report the condition holding, within
// deadline. The condition is checked immediately (it may already
// hold), then on every change notification within scope.
//
// At most one of {resolve, timeout} happens: when a notification races
// the deadline timer, a final re-check on expiry decides in favor of
// the condition.
func Appearance[T any](
	ctx context.Context,
	n surface.Notifier,
	scope string,
	deadline time.Duration,
	check func() (T, bool),
) (T, error) {
	var zero T

	if v, ok := check(); ok {
		return v, nil
	}

	// Coalescing wakeup: a full buffer means a re-check is already due.
	signal := make(chan struct{}, 1)
	cancel := n.Subscribe(scope, func(surface.Change) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})
	defer cancel()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()

		case <-signal:
			if v, ok := check(); ok {
				return v, nil
			}

		case <-timer.C:
			if v, ok := check(); ok {
				return v, nil
			}
			return zero, &TimeoutError{Scope: scope, Waited: deadline}
		}
	}
}

// Removal waits for check to stop holding, within deadline. Symmetric
// to Appearance: immediate check first, then notification-driven
// re-checks, final re-check on deadline expiry.
func Removal(
	ctx context.Context,
	n surface.Notifier,
	scope string,
	deadline time.Duration,
	check func() bool,
) error {
	_, err := Appearance(ctx, n, scope, deadline, func() (struct{}, bool) {
		return struct{}{}, !check()
	})
	return err
}
