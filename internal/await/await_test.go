package await

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaban-mb/wikilift/internal/surface"
)

// countingNotifier wraps a Fake and counts Subscribe calls.
type countingNotifier struct {
	*surface.Fake

	mu         sync.Mutex
	subscribes int
}

func (n *countingNotifier) Subscribe(scope string, fn func(surface.Change)) func() {
	n.mu.Lock()
	n.subscribes++
	n.mu.Unlock()
	return n.Fake.Subscribe(scope, fn)
}

func (n *countingNotifier) Subscribes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.subscribes
}

// TestAppearance_ImmediateResolve verifies a condition that already
// holds resolves without subscribing at all.
func TestAppearance_ImmediateResolve(t *testing.T) {
	n := &countingNotifier{Fake: surface.NewFake()}

	v, err := Appearance(context.Background(), n, "x", time.Hour, func() (string, bool) {
		return "present", true
	})
	require.NoError(t, err)
	assert.Equal(t, "present", v)
	assert.Zero(t, n.Subscribes(), "immediate resolve must not subscribe")
}

// TestAppearance_ResolvesOnNotification verifies the waiter re-checks
// when a notification arrives and resolves once the condition holds.
func TestAppearance_ResolvesOnNotification(t *testing.T) {
	f := surface.NewFake()

	var mu sync.Mutex
	present := false

	done := make(chan struct{})
	var v int
	var err error
	go func() {
		defer close(done)
		// Deadline is a backstop: if the notification beats the
		// subscription, the final expiry check still resolves.
		v, err = Appearance(context.Background(), f, "x", time.Second, func() (int, bool) {
			mu.Lock()
			defer mu.Unlock()
			return 42, present
		})
	}()

	// Unrelated scope: must not resolve.
	f.Notify("y")

	mu.Lock()
	present = true
	mu.Unlock()
	f.Notify("x")

	<-done
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

// TestAppearance_Timeout verifies the timeout error fires and no
// further re-check happens after the waiter returned.
func TestAppearance_Timeout(t *testing.T) {
	f := surface.NewFake()

	var mu sync.Mutex
	checks := 0

	_, err := Appearance(context.Background(), f, "x", 20*time.Millisecond, func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		checks++
		return 0, false
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "x", te.Scope)
	assert.Equal(t, 20*time.Millisecond, te.Waited)

	// Subscription is gone: a notification after timeout must not
	// trigger another check.
	mu.Lock()
	before := checks
	mu.Unlock()
	f.Notify("x")
	mu.Lock()
	assert.Equal(t, before, checks)
	mu.Unlock()
}

// TestAppearance_DeadlineRaceFavorsCondition verifies the final
// re-check on expiry resolves when the condition turned true just as
// the deadline elapsed.
func TestAppearance_DeadlineRaceFavorsCondition(t *testing.T) {
	f := surface.NewFake()

	calls := 0
	v, err := Appearance(context.Background(), f, "x", 0, func() (string, bool) {
		calls++
		// False on the immediate check, true by the time the already-
		// expired timer triggers the final check.
		return "late", calls > 1
	})
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

// TestAppearance_ContextCancelled verifies cancellation wins over the
// deadline and unsubscribes.
func TestAppearance_ContextCancelled(t *testing.T) {
	f := surface.NewFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Appearance(ctx, f, "x", time.Hour, func() (int, bool) {
		return 0, false
	})
	require.ErrorIs(t, err, context.Canceled)
}

// TestRemoval_ImmediateResolve verifies an already-cleared condition
// resolves at once.
func TestRemoval_ImmediateResolve(t *testing.T) {
	f := surface.NewFake()

	err := Removal(context.Background(), f, "x", time.Hour, func() bool {
		return false
	})
	require.NoError(t, err)
}

// TestRemoval_ResolvesWhenConditionClears verifies the symmetric wait.
func TestRemoval_ResolvesWhenConditionClears(t *testing.T) {
	f := surface.NewFake()

	var mu sync.Mutex
	present := true

	done := make(chan error, 1)
	go func() {
		done <- Removal(context.Background(), f, "x", time.Second, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return present
		})
	}()

	mu.Lock()
	present = false
	mu.Unlock()
	f.Notify("x")

	require.NoError(t, <-done)
}

// TestRemoval_Timeout verifies a condition that never clears times out.
func TestRemoval_Timeout(t *testing.T) {
	f := surface.NewFake()

	err := Removal(context.Background(), f, "x", 20*time.Millisecond, func() bool {
		return true
	})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}
