package convert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaban-mb/wikilift/internal/surface"
	"github.com/chaban-mb/wikilift/internal/testutil"
)

// testConfig keeps the failure-path waits short; happy paths resolve
// on the immediate check and never wait at all.
func testConfig() Config {
	return Config{
		CanonicalLabel:   "Wikidata",
		AcceptedLabels:   []string{"Wikidata", "has a Wikidata page at"},
		DialogDeadline:   25 * time.Millisecond,
		CloseDeadline:    25 * time.Millisecond,
		RecoveryDeadline: 10 * time.Millisecond,
		Settle:           600 * time.Millisecond,
	}
}

func newTestConverter(f *surface.Fake) (*Converter, *testutil.RecordingClock) {
	clock := testutil.NewRecordingClock(time.Unix(1000, 0))
	return New(f, clock, testConfig()), clock
}

// TestConvert_PreloadedOption verifies the happy path: dialog opens,
// a preloaded option matches, selection commits, dialog closes.
func TestConvert_PreloadedOption(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{Options: []string{"Wikipedia", "Wikidata"}})
	item := NewItem(fi, "Wikipedia")
	c, clock := newTestConverter(f)

	c.Convert(context.Background(), item)

	assert.Equal(t, OutcomeConverted, item.Outcome())
	assert.Equal(t, StateConfirmed, item.State())
	assert.Empty(t, clock.Sleeps(), "no settle needed without search fallback")
	_, open := fi.Dialog()
	assert.False(t, open)
}

// TestConvert_LabelCaseVariance verifies caseless label matching and
// that selection uses the surface's own spelling.
func TestConvert_LabelCaseVariance(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{Options: []string{"WIKIDATA"}})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Convert(context.Background(), item)
	assert.Equal(t, OutcomeConverted, item.Outcome())
}

// TestConvert_SearchFallback verifies the typed-search path: no
// preloaded option matches, the canonical label is searched, and the
// re-scan after the settle delay finds an accepted variant.
func TestConvert_SearchFallback(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{
		Options:       []string{"Wikipedia", "Discogs"},
		SearchResults: map[string][]string{"Wikidata": {"has a Wikidata page at"}},
	})
	item := NewItem(fi, "Wikipedia")
	c, clock := newTestConverter(f)

	c.Convert(context.Background(), item)

	assert.Equal(t, OutcomeConverted, item.Outcome())
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 1, "one settle delay after typing the search")
	assert.Equal(t, 600*time.Millisecond, sleeps[0])
}

// TestConvert_DialogNeverAppears verifies the timeout path ends in a
// terminal Failed outcome, not a hang and not Pending.
func TestConvert_DialogNeverAppears(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{DialogNeverOpens: true})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Convert(context.Background(), item)

	assert.Equal(t, OutcomeFailed, item.Outcome())
	assert.Equal(t, StateFailed, item.State())
	assert.Equal(t, 1, fi.EditRequests())
}

// TestConvert_NoMatchingLabel verifies failure when neither the
// preloaded options nor the search results carry an accepted label,
// and that recovery commits the dialog away.
func TestConvert_NoMatchingLabel(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{
		Options:       []string{"Wikipedia"},
		SearchResults: map[string][]string{"Wikidata": {"Discogs"}},
	})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Convert(context.Background(), item)

	assert.Equal(t, OutcomeFailed, item.Outcome())
	_, open := fi.Dialog()
	assert.False(t, open, "recovery commits the lingering dialog")
}

// TestConvert_MissingCommitControl verifies the commit-less dialog
// fails terminally; recovery cannot commit either.
func TestConvert_MissingCommitControl(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{
		Options:         []string{"Wikidata"},
		NoCommitControl: true,
	})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Convert(context.Background(), item)

	assert.Equal(t, OutcomeFailed, item.Outcome())
}

// TestConvert_DialogNeverCloses verifies the close-wait timeout path:
// commit succeeds but the dialog stays, recovery re-commits, and the
// item still fails.
func TestConvert_DialogNeverCloses(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{
		Options:           []string{"Wikidata"},
		DialogNeverCloses: true,
	})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Convert(context.Background(), item)

	assert.Equal(t, OutcomeFailed, item.Outcome())
	d, open := fi.Dialog()
	require.True(t, open)
	assert.Equal(t, 2, d.(*surface.FakeDialog).Commits(), "original commit plus recovery re-commit")
}

// TestConvert_NonActionable verifies items without an edit control are
// trivially confirmed without touching the surface.
func TestConvert_NonActionable(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{NoEditControl: true})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Convert(context.Background(), item)

	assert.Equal(t, OutcomeConverted, item.Outcome())
	assert.Zero(t, f.Mutations())
}

// TestConvert_Monotonic verifies a terminal item is never re-driven.
func TestConvert_Monotonic(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{Options: []string{"Wikidata"}})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Convert(context.Background(), item)
	require.Equal(t, OutcomeConverted, item.Outcome())
	edits := fi.EditRequests()

	c.Convert(context.Background(), item)
	c.Remove(context.Background(), item)

	assert.Equal(t, OutcomeConverted, item.Outcome(), "outcome never reversed")
	assert.Equal(t, edits, fi.EditRequests(), "no further surface interaction")
}

// TestRemove_Success verifies the removal path and its settle delay.
func TestRemove_Success(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{})
	item := NewItem(fi, "Wikipedia")
	c, clock := newTestConverter(f)

	c.Remove(context.Background(), item)

	assert.Equal(t, OutcomeRemoved, item.Outcome())
	assert.Equal(t, StateRemoved, item.State())
	assert.True(t, fi.Removed())
	require.Len(t, clock.Sleeps(), 1)
	assert.Equal(t, 600*time.Millisecond, clock.Sleeps()[0])
}

// TestRemove_NoControl verifies a missing removal control fails the
// item terminally.
func TestRemove_NoControl(t *testing.T) {
	f := surface.NewFake()
	fi := f.NewItem("rel/1", surface.ItemScript{NoRemovalControl: true})
	item := NewItem(fi, "Wikipedia")
	c, _ := newTestConverter(f)

	c.Remove(context.Background(), item)

	assert.Equal(t, OutcomeFailed, item.Outcome())
	assert.False(t, fi.Removed())
}

// TestConvert_NeverLeavesPending sweeps every scripted deviation and
// asserts the invariant: exactly one terminal outcome, always.
func TestConvert_NeverLeavesPending(t *testing.T) {
	scripts := map[string]surface.ItemScript{
		"cooperative":         {Options: []string{"Wikidata"}},
		"dialog never opens":  {DialogNeverOpens: true},
		"no matching label":   {Options: []string{"Wikipedia"}},
		"no commit control":   {Options: []string{"Wikidata"}, NoCommitControl: true},
		"dialog never closes": {Options: []string{"Wikidata"}, DialogNeverCloses: true},
		"non-actionable":      {NoEditControl: true},
	}
	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			f := surface.NewFake()
			item := NewItem(f.NewItem("rel/1", script), "Wikipedia")
			c, _ := newTestConverter(f)

			c.Convert(context.Background(), item)

			assert.True(t, item.Outcome().Terminal(), "outcome %s", item.Outcome())
		})
	}
}
