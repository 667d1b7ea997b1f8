package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvas-collab/internal/collab"
)

func TestRemoteCursors_ObserveAndRead(t *testing.T) {
	rc := newRemoteCursors(3 * time.Second)

	rc.observe("alice", collab.Cursor{X: 1, Y: 2}, "#E74C3C", "Alice")
	rc.observe("bob", collab.Cursor{X: 3, Y: 4}, "#3498DB", "Bob")
	rc.observe("alice", collab.Cursor{X: 5, Y: 6}, "#E74C3C", "Alice") // refresh

	live := rc.live()
	require.Len(t, live, 2)
	byID := map[string]RemoteCursor{}
	for _, c := range live {
		byID[c.ParticipantID] = c
	}
	assert.Equal(t, 5.0, byID["alice"].Cursor.X, "latest position wins")
}

func TestRemoteCursors_SilenceCountsAsDeparture(t *testing.T) {
	rc := newRemoteCursors(3 * time.Second)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rc.now = func() time.Time { return clock }

	rc.observe("alice", collab.Cursor{X: 1, Y: 2}, "#E74C3C", "Alice")
	clock = clock.Add(2 * time.Second)
	rc.observe("bob", collab.Cursor{X: 3, Y: 4}, "#3498DB", "Bob")

	clock = clock.Add(1500 * time.Millisecond) // alice is now 3.5s stale, bob 1.5s
	live := rc.live()
	require.Len(t, live, 1)
	assert.Equal(t, "bob", live[0].ParticipantID)

	// A fresh frame brings a pruned cursor back.
	rc.observe("alice", collab.Cursor{X: 9, Y: 9}, "#E74C3C", "Alice")
	assert.Len(t, rc.live(), 2)
}

func TestRemoteCursors_ForgetAndReset(t *testing.T) {
	rc := newRemoteCursors(3 * time.Second)
	rc.observe("alice", collab.Cursor{}, "#E74C3C", "Alice")
	rc.observe("bob", collab.Cursor{}, "#3498DB", "Bob")

	rc.forget("alice")
	assert.Len(t, rc.live(), 1)

	rc.reset()
	assert.Empty(t, rc.live())
}
