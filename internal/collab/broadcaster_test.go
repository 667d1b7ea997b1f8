package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	frames [][]byte
	dead   bool
}

func (r *recorder) send(frame []byte) bool {
	if r.dead {
		return false
	}
	r.frames = append(r.frames, frame)
	return true
}

func TestBroadcaster_ExcludesOriginator(t *testing.T) {
	b := NewBroadcaster(testLogger())
	alice, bob, carol := &recorder{}, &recorder{}, &recorder{}
	b.Attach("proj1", "alice", "conn-a", alice.send)
	b.Attach("proj1", "bob", "conn-b", bob.send)
	b.Attach("proj1", "carol", "conn-c", carol.send)

	b.Fanout("proj1", "alice", []byte("hi"))

	assert.Empty(t, alice.frames, "originator never hears its own frame")
	assert.Len(t, bob.frames, 1)
	assert.Len(t, carol.frames, 1)
}

func TestBroadcaster_EmptyExcludeReachesEveryone(t *testing.T) {
	b := NewBroadcaster(testLogger())
	alice, bob := &recorder{}, &recorder{}
	b.Attach("proj1", "alice", "conn-a", alice.send)
	b.Attach("proj1", "bob", "conn-b", bob.send)

	b.Fanout("proj1", "", []byte("relayed"))

	assert.Len(t, alice.frames, 1)
	assert.Len(t, bob.frames, 1)
}

func TestBroadcaster_DeadRecipientDoesNotAffectOthers(t *testing.T) {
	b := NewBroadcaster(testLogger())
	alice, bob, carol := &recorder{}, &recorder{dead: true}, &recorder{}
	b.Attach("proj1", "alice", "conn-a", alice.send)
	b.Attach("proj1", "bob", "conn-b", bob.send)
	b.Attach("proj1", "carol", "conn-c", carol.send)

	b.Fanout("proj1", "alice", []byte("hi"))

	assert.Empty(t, bob.frames)
	assert.Len(t, carol.frames, 1, "delivery continues past a dead recipient")
}

func TestBroadcaster_RoomsAreIsolated(t *testing.T) {
	b := NewBroadcaster(testLogger())
	alice, bob := &recorder{}, &recorder{}
	b.Attach("proj1", "alice", "conn-a", alice.send)
	b.Attach("proj2", "bob", "conn-b", bob.send)

	b.Fanout("proj1", "", []byte("hi"))

	assert.Len(t, alice.frames, 1)
	assert.Empty(t, bob.frames)
}

func TestBroadcaster_DetachIsIdempotent(t *testing.T) {
	b := NewBroadcaster(testLogger())
	alice := &recorder{}
	b.Attach("proj1", "alice", "conn-a", alice.send)
	assert.True(t, b.Detach("proj1", "alice", "conn-a"))
	assert.False(t, b.Detach("proj1", "alice", "conn-a"))
	assert.False(t, b.Detach("nope", "ghost", "conn-a"))

	b.Fanout("proj1", "", []byte("hi"))
	assert.Empty(t, alice.frames)
}

func TestBroadcaster_StaleDetachKeepsSuccessorAttached(t *testing.T) {
	b := NewBroadcaster(testLogger())
	tab1, tab2 := &recorder{}, &recorder{}
	b.Attach("proj1", "alice", "conn-1", tab1.send)
	b.Attach("proj1", "alice", "conn-2", tab2.send) // second tab takes over

	assert.False(t, b.Detach("proj1", "alice", "conn-1"), "replaced connection no longer owns the entry")

	b.Fanout("proj1", "", []byte("hi"))
	assert.Empty(t, tab1.frames)
	assert.Len(t, tab2.frames, 1, "the live connection keeps receiving")
}

func TestBroadcaster_FanoutUnknownRoomIsNoop(t *testing.T) {
	b := NewBroadcaster(testLogger())
	b.Fanout("nope", "", []byte("hi")) // must not panic
}
