package pace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaban-mb/wikilift/internal/testutil"
)

// TestDispatcher_SingleLanePacing verifies that M sequential operations
// on a 1-lane channel request (M-1) pacing sleeps of the full interval.
func TestDispatcher_SingleLanePacing(t *testing.T) {
	clock := testutil.NewRecordingClock(time.Unix(1000, 0))
	d := New(clock, map[string]ChannelConfig{
		"lookup": {Interval: time.Second, Lanes: 1},
	})
	defer d.Close()

	const m = 5
	var order []int
	for i := 0; i < m; i++ {
		i := i
		v, err := d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
			order = append(order, i)
			return i, nil
		})
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	// First dispatch is immediate; every later one waits the full
	// interval because the virtual clock only advances inside Sleep.
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, m-1)
	for _, s := range sleeps {
		assert.Equal(t, time.Second, s)
	}
	assert.GreaterOrEqual(t, clock.Slept(), time.Duration(m-1)*time.Second)

	// Sequential submission preserves execution order.
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, int64(m), d.LaneSeq("lookup", 0))
}

// TestDispatcher_RoundRobinLanes verifies lane assignment rotates and
// each lane keeps its own sequence counter.
func TestDispatcher_RoundRobinLanes(t *testing.T) {
	clock := testutil.NewRecordingClock(time.Unix(1000, 0))
	d := New(clock, map[string]ChannelConfig{
		"lookup": {Interval: time.Second, Lanes: 2},
	})
	defer d.Close()

	for i := 0; i < 4; i++ {
		_, err := d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(2), d.LaneSeq("lookup", 0))
	assert.Equal(t, int64(2), d.LaneSeq("lookup", 1))

	// Lane 0's second dispatch waits the interval, advancing the shared
	// virtual clock; by then lane 1's interval has elapsed too. Four
	// operations cost a single interval of waiting - the K-lane
	// throughput gain.
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, time.Second, sleeps[0])
}

// TestDispatcher_FailureConsumesSlot verifies a failing operation still
// occupies its pacing slot and its error reaches the caller.
func TestDispatcher_FailureConsumesSlot(t *testing.T) {
	clock := testutil.NewRecordingClock(time.Unix(1000, 0))
	d := New(clock, map[string]ChannelConfig{
		"lookup": {Interval: time.Second, Lanes: 1},
	})
	defer d.Close()

	boom := errors.New("boom")
	_, err := d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, err = d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	// The second dispatch waited the full interval despite the failure.
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, time.Second, sleeps[0])
}

// TestDispatcher_ElapsedTimeReducesWait verifies that time already
// passed since the last dispatch is credited against the interval.
func TestDispatcher_ElapsedTimeReducesWait(t *testing.T) {
	clock := testutil.NewRecordingClock(time.Unix(1000, 0))
	d := New(clock, map[string]ChannelConfig{
		"lookup": {Interval: time.Second, Lanes: 1},
	})
	defer d.Close()

	_, err := d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	clock.Advance(700 * time.Millisecond)

	_, err = d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1)
	assert.Equal(t, 300*time.Millisecond, sleeps[0])
}

// TestDispatcher_UnknownChannel verifies the coded error for
// unconfigured channels.
func TestDispatcher_UnknownChannel(t *testing.T) {
	d := New(WallClock{}, map[string]ChannelConfig{})
	defer d.Close()

	_, err := d.Submit(context.Background(), "nope", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, IsUnknownChannel(err))

	var ue *UnknownChannelError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "nope", ue.Channel)
}

// TestDispatcher_SubmitAfterClose verifies ErrClosed after shutdown.
func TestDispatcher_SubmitAfterClose(t *testing.T) {
	d := New(WallClock{}, map[string]ChannelConfig{
		"lookup": {Interval: 0, Lanes: 1},
	})
	d.Close()
	d.Close() // idempotent

	_, err := d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, ErrClosed)
}

// TestDispatcher_CancelledContext verifies a submission whose context
// is already cancelled fails with the context error and does not run.
func TestDispatcher_CancelledContext(t *testing.T) {
	d := New(WallClock{}, map[string]ChannelConfig{
		"lookup": {Interval: 0, Lanes: 1},
	})
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err := d.Submit(ctx, "lookup", func(ctx context.Context) (any, error) {
		ran = true
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

// TestDispatcher_ZeroLanesNormalized verifies Lanes: 0 behaves as one lane.
func TestDispatcher_ZeroLanesNormalized(t *testing.T) {
	d := New(WallClock{}, map[string]ChannelConfig{
		"lookup": {Interval: 0},
	})
	defer d.Close()

	for i := 0; i < 3; i++ {
		_, err := d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), d.LaneSeq("lookup", 0))
}

// TestDispatcher_ResultValuePropagation verifies arbitrary result
// values pass through untouched.
func TestDispatcher_ResultValuePropagation(t *testing.T) {
	d := New(WallClock{}, map[string]ChannelConfig{
		"lookup": {Interval: 0, Lanes: 1},
	})
	defer d.Close()

	type payload struct{ N int }
	v, err := d.Submit(context.Background(), "lookup", func(ctx context.Context) (any, error) {
		return &payload{N: 7}, nil
	})
	require.NoError(t, err)
	p, ok := v.(*payload)
	require.True(t, ok, "expected *payload, got %T", v)
	assert.Equal(t, 7, p.N)
}

// TestDispatcher_ManyChannelsIndependent verifies channels pace
// independently of each other.
func TestDispatcher_ManyChannelsIndependent(t *testing.T) {
	clock := testutil.NewRecordingClock(time.Unix(1000, 0))
	d := New(clock, map[string]ChannelConfig{
		"a": {Interval: time.Second, Lanes: 1},
		"b": {Interval: time.Second, Lanes: 1},
	})
	defer d.Close()

	for _, ch := range []string{"a", "b"} {
		_, err := d.Submit(context.Background(), ch, func(ctx context.Context) (any, error) {
			return fmt.Sprintf("first on %s", ch), nil
		})
		require.NoError(t, err)
	}

	// One dispatch per channel: no pacing sleep anywhere.
	assert.Empty(t, clock.Sleeps())
}
