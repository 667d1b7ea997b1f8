package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorAllocator_UniqueWhilePaletteLasts(t *testing.T) {
	a := newColorAllocator()

	seen := map[string]bool{}
	for i := 0; i < len(Palette); i++ {
		c := a.assign()
		assert.False(t, seen[c], "color %s assigned twice", c)
		seen[c] = true
	}
	assert.Len(t, seen, len(Palette))
}

func TestColorAllocator_AssignsInPaletteOrder(t *testing.T) {
	a := newColorAllocator()
	assert.Equal(t, Palette[0], a.assign())
	assert.Equal(t, Palette[1], a.assign())
	assert.Equal(t, Palette[2], a.assign())
}

func TestColorAllocator_ReleaseMakesColorAvailable(t *testing.T) {
	a := newColorAllocator()
	first := a.assign()
	a.assign()

	a.release(first)
	assert.Equal(t, first, a.assign(), "released color should go to the next joiner")
}

func TestColorAllocator_CyclesWhenExhausted(t *testing.T) {
	a := newColorAllocator()
	for i := 0; i < len(Palette); i++ {
		a.assign()
	}

	// Palette exhausted: the oldest assignment gets reused first.
	assert.Equal(t, Palette[0], a.assign())
	assert.Equal(t, Palette[1], a.assign())
}

func TestColorAllocator_ReleaseUnknownColor(t *testing.T) {
	a := newColorAllocator()
	a.release("#000000") // not assigned, must not panic
	assert.Equal(t, Palette[0], a.assign())
}
