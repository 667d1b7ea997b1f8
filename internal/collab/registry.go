package collab

import (
	"log/slog"
	"sync"

	"canvas-collab/internal/crdt"
	"canvas-collab/pkg/metrics"
)

// room holds everything scoped to one project: the live participants and
// the shared mergeable document. It exists only while someone is in it.
type room struct {
	participants map[string]*Participant
	order        []string // join order, for stable participant listings
	colors       *colorAllocator
	doc          crdt.Doc
}

// RoomState is what a successful join returns to the caller.
type RoomState struct {
	ProjectID     string
	ParticipantID string
	Color         string
	Participants  []Participant
}

// Registry maps project IDs to active rooms. It is a pure state container:
// it performs no network I/O and is driven entirely by the connection
// gateway. An instance is created at startup and injected where needed so
// tests can run isolated registries side by side.
type Registry struct {
	log    *slog.Logger
	newDoc func(site string) crdt.Doc

	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry builds an empty registry. newDoc may be nil, in which case
// rooms get the default document implementation.
func NewRegistry(log *slog.Logger, newDoc func(site string) crdt.Doc) *Registry {
	if newDoc == nil {
		newDoc = func(site string) crdt.Doc { return crdt.NewLWWDoc(site) }
	}
	return &Registry{log: log, newDoc: newDoc, rooms: map[string]*room{}}
}

// Join adds a participant to the project's room, creating the room (with a
// fresh document) on first join. It returns the room state for the joiner
// plus a full document snapshot so the joiner can seed its local replica.
func (r *Registry) Join(projectID, participantID, name string) (RoomState, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[projectID]
	if rm == nil {
		rm = &room{
			participants: map[string]*Participant{},
			colors:       newColorAllocator(),
			doc:          r.newDoc("server:" + projectID),
		}
		r.rooms[projectID] = rm
		metrics.RoomsActive.Inc()
		r.log.Info("room.created", "project", projectID)
	}

	// Rejoin with the same ID replaces the old record but keeps its color.
	if old, ok := rm.participants[participantID]; ok {
		rm.colors.release(old.Color)
		rm.removeOrder(participantID)
	} else {
		metrics.ParticipantsActive.Inc()
	}

	p := &Participant{ID: participantID, Name: name, Color: rm.colors.assign()}
	rm.participants[participantID] = p
	rm.order = append(rm.order, participantID)
	r.log.Info("room.join", "project", projectID, "participant", participantID)

	return RoomState{
		ProjectID:     projectID,
		ParticipantID: participantID,
		Color:         p.Color,
		Participants:  rm.snapshot(),
	}, rm.doc.EncodeStateAsUpdate()
}

// Leave removes the participant and releases its color. Leaving a room one
// is not in is a no-op. The room (and its document) is discarded when the
// last participant goes.
func (r *Registry) Leave(projectID, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.rooms[projectID]
	if rm == nil {
		return
	}
	p, ok := rm.participants[participantID]
	if !ok {
		return
	}
	rm.colors.release(p.Color)
	delete(rm.participants, participantID)
	rm.removeOrder(participantID)
	metrics.ParticipantsActive.Dec()
	r.log.Info("room.leave", "project", projectID, "participant", participantID)

	if len(rm.participants) == 0 {
		delete(r.rooms, projectID)
		metrics.RoomsActive.Dec()
		r.log.Info("room.destroyed", "project", projectID)
	}
}

// UpdateCursor records a participant's live cursor. Unknown rooms or
// participants are silently ignored, there is nothing to broadcast to.
func (r *Registry) UpdateCursor(projectID, participantID string, x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.participant(projectID, participantID); p != nil {
		p.Cursor = &Cursor{X: x, Y: y}
	}
}

// UpdateSelection replaces a participant's live selection. An empty slice
// means "selection cleared" and is kept distinct from never-set (nil).
func (r *Registry) UpdateSelection(projectID, participantID string, selectedIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.participant(projectID, participantID); p != nil {
		if selectedIDs == nil {
			selectedIDs = []string{}
		}
		p.Selection = append([]string(nil), selectedIDs...)
	}
}

// Participants returns a point-in-time copy of the room's members, in join
// order. An unknown project yields an empty slice.
func (r *Registry) Participants(projectID string) []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.rooms[projectID]
	if rm == nil {
		return []Participant{}
	}
	return rm.snapshot()
}

// Participant returns a copy of one member, if present.
func (r *Registry) Participant(projectID, participantID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.participant(projectID, participantID)
	if p == nil {
		return Participant{}, false
	}
	return p.clone(), true
}

// Doc returns the room's shared document, if the room exists.
func (r *Registry) Doc(projectID string) (crdt.Doc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.rooms[projectID]
	if rm == nil {
		return nil, false
	}
	return rm.doc, true
}

// Rooms reports the number of active rooms.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Shutdown discards all rooms. Connected gateways are expected to have been
// drained first.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rm := range r.rooms {
		metrics.ParticipantsActive.Sub(float64(len(rm.participants)))
		metrics.RoomsActive.Dec()
		delete(r.rooms, id)
	}
}

// participant is the lock-held lookup shared by the mutators.
func (r *Registry) participant(projectID, participantID string) *Participant {
	rm := r.rooms[projectID]
	if rm == nil {
		return nil
	}
	return rm.participants[participantID]
}

func (rm *room) snapshot() []Participant {
	out := make([]Participant, 0, len(rm.participants))
	for _, id := range rm.order {
		if p, ok := rm.participants[id]; ok {
			out = append(out, p.clone())
		}
	}
	return out
}

func (rm *room) removeOrder(participantID string) {
	for i, id := range rm.order {
		if id == participantID {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			return
		}
	}
}
