package collab

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_JoinCreatesRoom(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	state, snapshot := r.Join("proj1", "alice", "Alice")

	assert.Equal(t, "proj1", state.ProjectID)
	assert.Equal(t, "alice", state.ParticipantID)
	assert.Equal(t, Palette[0], state.Color)
	require.Len(t, state.Participants, 1)
	assert.Equal(t, "Alice", state.Participants[0].Name)
	assert.NotNil(t, snapshot, "joiner gets a document snapshot")
	assert.Equal(t, 1, r.Rooms())
}

func TestRegistry_SecondJoinerGetsNextColor(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	r.Join("proj1", "alice", "Alice")
	state, _ := r.Join("proj1", "bob", "Bob")

	assert.Equal(t, Palette[1], state.Color)
	assert.Len(t, state.Participants, 2)
	assert.Equal(t, 1, r.Rooms(), "same project shares one room")
}

func TestRegistry_RoomsArePerProject(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	r.Join("proj1", "alice", "Alice")
	state, _ := r.Join("proj2", "bob", "Bob")

	assert.Equal(t, Palette[0], state.Color, "fresh room starts the palette over")
	assert.Equal(t, 2, r.Rooms())
	assert.Len(t, r.Participants("proj1"), 1)
	assert.Len(t, r.Participants("proj2"), 1)
}

func TestRegistry_LeaveReleasesColor(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	r.Join("proj1", "alice", "Alice")
	r.Join("proj1", "bob", "Bob")
	r.Leave("proj1", "alice")

	state, _ := r.Join("proj1", "carol", "Carol")
	assert.Equal(t, Palette[0], state.Color, "alice's color is free again")
}

func TestRegistry_LastLeaveDestroysRoom(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	_, first := r.Join("proj1", "alice", "Alice")
	doc, ok := r.Doc("proj1")
	require.True(t, ok)
	doc.Set("item1", "label", "hello")

	r.Leave("proj1", "alice")
	assert.Equal(t, 0, r.Rooms())
	assert.Empty(t, r.Participants("proj1"))
	_, ok = r.Doc("proj1")
	assert.False(t, ok)

	// Rejoining recreates a room with an empty-history document.
	_, fresh := r.Join("proj1", "alice", "Alice")
	assert.JSONEq(t, string(first), string(fresh), "new room must not inherit old document state")
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	r.Leave("proj1", "ghost")         // no room at all
	r.Join("proj1", "alice", "Alice") // now a room exists
	r.Leave("proj1", "ghost")         // not a member
	r.Leave("proj1", "alice")
	r.Leave("proj1", "alice") // already gone

	assert.Equal(t, 0, r.Rooms())
}

func TestRegistry_UpdateCursor(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	r.Join("proj1", "alice", "Alice")

	r.UpdateCursor("proj1", "alice", 10, 20)

	p, ok := r.Participant("proj1", "alice")
	require.True(t, ok)
	require.NotNil(t, p.Cursor)
	assert.Equal(t, 10.0, p.Cursor.X)
	assert.Equal(t, 20.0, p.Cursor.Y)
}

func TestRegistry_UpdateCursorUnknownRoomIsNoop(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	r.UpdateCursor("nope", "alice", 1, 2) // must not panic or create a room
	assert.Equal(t, 0, r.Rooms())
}

func TestRegistry_SelectionClearedVsNeverSet(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	r.Join("proj1", "alice", "Alice")

	p, _ := r.Participant("proj1", "alice")
	assert.Nil(t, p.Selection, "selection starts never-set")

	r.UpdateSelection("proj1", "alice", []string{"item1", "item2"})
	p, _ = r.Participant("proj1", "alice")
	assert.Equal(t, []string{"item1", "item2"}, p.Selection)

	r.UpdateSelection("proj1", "alice", []string{})
	p, _ = r.Participant("proj1", "alice")
	require.NotNil(t, p.Selection, "cleared selection is distinguishable from never-set")
	assert.Empty(t, p.Selection)
}

func TestRegistry_ParticipantsInJoinOrder(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	r.Join("proj1", "alice", "Alice")
	r.Join("proj1", "bob", "Bob")
	r.Join("proj1", "carol", "Carol")
	r.Leave("proj1", "bob")

	ps := r.Participants("proj1")
	require.Len(t, ps, 2)
	assert.Equal(t, "alice", ps[0].ID)
	assert.Equal(t, "carol", ps[1].ID)
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	r.Join("proj1", "alice", "Alice")
	r.UpdateSelection("proj1", "alice", []string{"item1"})

	ps := r.Participants("proj1")
	ps[0].Selection[0] = "mutated"
	ps[0].Name = "Mallory"

	p, _ := r.Participant("proj1", "alice")
	assert.Equal(t, "Alice", p.Name)
	assert.Equal(t, []string{"item1"}, p.Selection)
}

func TestRegistry_IsolatedInstances(t *testing.T) {
	a := NewRegistry(testLogger(), nil)
	b := NewRegistry(testLogger(), nil)

	a.Join("proj1", "alice", "Alice")
	assert.Empty(t, b.Participants("proj1"), "registries must not share state")
}

func TestRegistry_Shutdown(t *testing.T) {
	r := NewRegistry(testLogger(), nil)
	r.Join("proj1", "alice", "Alice")
	r.Join("proj2", "bob", "Bob")

	r.Shutdown()
	assert.Equal(t, 0, r.Rooms())
}
