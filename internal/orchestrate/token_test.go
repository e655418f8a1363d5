package orchestrate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUUIDv7Generator verifies tokens are valid version-7 UUIDs and
// unique across calls.
func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}

	a := g.Generate()
	b := g.Generate()

	assert.NotEqual(t, a, b)
	for _, token := range []string{a, b} {
		id, err := uuid.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	}
}

// TestFixedGenerator verifies deterministic order and the exhaustion
// panic.
func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("one", "two")

	assert.Equal(t, "one", g.Generate())
	assert.Equal(t, "two", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
