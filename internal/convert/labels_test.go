package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFoldLabel verifies trimming, whitespace collapsing, and Unicode
// case folding.
func TestFoldLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Wikidata", "wikidata"},
		{"  Wikidata  ", "wikidata"},
		{"has a  Wikidata   page at", "has a wikidata page at"},
		{"WIKIDATA", "wikidata"},
		{"Straße", "strasse"}, // ß folds to ss
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, foldLabel(tc.in), "foldLabel(%q)", tc.in)
	}
}

// TestMatchAccepted verifies the first offered match wins and the
// surface's spelling is returned verbatim.
func TestMatchAccepted(t *testing.T) {
	accepted := []string{"Wikidata", "has a Wikidata page at"}

	t.Run("exact", func(t *testing.T) {
		got, ok := matchAccepted([]string{"Wikipedia", "Wikidata"}, accepted)
		assert.True(t, ok)
		assert.Equal(t, "Wikidata", got)
	})

	t.Run("case variant keeps surface spelling", func(t *testing.T) {
		got, ok := matchAccepted([]string{"wikiDATA"}, accepted)
		assert.True(t, ok)
		assert.Equal(t, "wikiDATA", got)
	})

	t.Run("second accepted variant", func(t *testing.T) {
		got, ok := matchAccepted([]string{"Has a Wikidata Page At"}, accepted)
		assert.True(t, ok)
		assert.Equal(t, "Has a Wikidata Page At", got)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := matchAccepted([]string{"Wikipedia", "Discogs"}, accepted)
		assert.False(t, ok)
	})

	t.Run("empty options", func(t *testing.T) {
		_, ok := matchAccepted(nil, accepted)
		assert.False(t, ok)
	})
}
