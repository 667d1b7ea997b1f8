package collab

import (
	"log/slog"
	"sync"

	"canvas-collab/pkg/metrics"
)

// SendFunc delivers one frame to a recipient. It must not block; a false
// return means the recipient is gone or its buffer is full.
type SendFunc func(frame []byte) bool

// Broadcaster fans presence and operation frames out to room members.
// Delivery is best-effort with no confirmation, retry, or queuing: a dead
// recipient is skipped silently and never affects delivery to the rest.
// A missed cursor frame is superseded by the next one anyway.
type Broadcaster struct {
	log *slog.Logger

	mu    sync.RWMutex
	rooms map[string]map[string]recipient // projectID -> participantID
}

// recipient ties a send path to the connection that registered it, so a
// replaced connection's teardown cannot evict its successor.
type recipient struct {
	connID string
	send   SendFunc
}

func NewBroadcaster(log *slog.Logger) *Broadcaster {
	return &Broadcaster{log: log, rooms: map[string]map[string]recipient{}}
}

// Attach registers a recipient for a room's fanout. Attaching under an
// already-present participant ID replaces the previous recipient: the same
// user joining again from a second connection takes over delivery.
func (b *Broadcaster) Attach(projectID, participantID, connID string, send SendFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	recips := b.rooms[projectID]
	if recips == nil {
		recips = map[string]recipient{}
		b.rooms[projectID] = recips
	}
	recips[participantID] = recipient{connID: connID, send: send}
}

// Detach removes a recipient, but only when the entry still belongs to
// connID. It reports whether anything was removed: false means another
// connection took over this participant ID and stays attached. Idempotent.
func (b *Broadcaster) Detach(projectID, participantID, connID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	recips := b.rooms[projectID]
	rec, ok := recips[participantID]
	if !ok || rec.connID != connID {
		return false
	}
	delete(recips, participantID)
	if len(recips) == 0 {
		delete(b.rooms, projectID)
	}
	return true
}

// Fanout sends frame to every room member except excludeID. Pass an empty
// excludeID to reach everyone (used for frames relayed from other server
// processes, where the originator is not local).
func (b *Broadcaster) Fanout(projectID, excludeID string, frame []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, rec := range b.rooms[projectID] {
		if id == excludeID {
			continue
		}
		if !rec.send(frame) {
			metrics.BroadcastsDropped.Inc()
			continue
		}
		metrics.BroadcastsSent.Inc()
	}
}
