package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-collab/internal/collab"
)

func TestCanvasState_AddAndDelete(t *testing.T) {
	s := newCanvasState()

	s.apply(collab.Operation{Kind: collab.OpAdd, Add: &collab.CanvasItem{ID: "r1", Type: "shape", X: 1, Y: 2}})
	s.apply(collab.Operation{Kind: collab.OpAdd, Add: &collab.CanvasItem{ID: "r2", Type: "text"}})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 1.0, items["r1"].X)

	s.apply(collab.Operation{Kind: collab.OpDelete, ItemIDs: []string{"r1", "nope"}})
	items = s.Items()
	require.Len(t, items, 1)
	_, ok := items["r2"]
	assert.True(t, ok)
}

func TestCanvasState_UpdateMergesFields(t *testing.T) {
	s := newCanvasState()
	s.apply(collab.Operation{Kind: collab.OpAdd, Add: &collab.CanvasItem{
		ID: "r1", Type: "shape", Props: map[string]string{"fill": "red", "stroke": "black"},
	}})

	s.apply(collab.Operation{Kind: collab.OpUpdate, ItemID: "r1",
		Update: &collab.ItemUpdate{Fields: map[string]string{"fill": "blue", "opacity": "0.5"}}})

	it := s.Items()["r1"]
	assert.Equal(t, "blue", it.Props["fill"])
	assert.Equal(t, "black", it.Props["stroke"])
	assert.Equal(t, "0.5", it.Props["opacity"])
}

func TestCanvasState_MoveAndResize(t *testing.T) {
	s := newCanvasState()
	s.apply(collab.Operation{Kind: collab.OpAdd, Add: &collab.CanvasItem{ID: "r1", Type: "shape", Width: 10, Height: 10}})

	s.apply(collab.Operation{Kind: collab.OpMove, ItemID: "r1", Move: &collab.Position{X: 30, Y: 40}})
	s.apply(collab.Operation{Kind: collab.OpResize, ItemID: "r1", Resize: &collab.Dimensions{Width: 100, Height: 50}})

	it := s.Items()["r1"]
	assert.Equal(t, 30.0, it.X)
	assert.Equal(t, 40.0, it.Y)
	assert.Equal(t, 100.0, it.Width)
	assert.Equal(t, 50.0, it.Height)
}

func TestCanvasState_OpsOnMissingItemsIgnored(t *testing.T) {
	s := newCanvasState()

	// Operations racing with a concurrent delete must not create ghosts.
	s.apply(collab.Operation{Kind: collab.OpMove, ItemID: "ghost", Move: &collab.Position{X: 1, Y: 2}})
	s.apply(collab.Operation{Kind: collab.OpResize, ItemID: "ghost", Resize: &collab.Dimensions{Width: 1, Height: 2}})
	s.apply(collab.Operation{Kind: collab.OpUpdate, ItemID: "ghost",
		Update: &collab.ItemUpdate{Fields: map[string]string{"fill": "red"}}})

	assert.Empty(t, s.Items())
}

func TestCanvasState_ItemsReturnsCopies(t *testing.T) {
	s := newCanvasState()
	s.apply(collab.Operation{Kind: collab.OpAdd, Add: &collab.CanvasItem{
		ID: "r1", Type: "shape", Props: map[string]string{"fill": "red"},
	}})

	items := s.Items()
	items["r1"].Props["fill"] = "mutated"

	assert.Equal(t, "red", s.Items()["r1"].Props["fill"])
}
