package agent

import (
	"sync"
	"time"

	"canvas-collab/internal/collab"
)

// RemoteCursor is another participant's pointer as last seen by this agent.
type RemoteCursor struct {
	ParticipantID string
	Cursor        collab.Cursor
	Color         string
	Name          string

	seen time.Time
}

// remoteCursors tracks the cursors to render, dropping any not refreshed
// within ttl. Silence counts as departure; no explicit message is needed.
type remoteCursors struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	cursors map[string]RemoteCursor
}

func newRemoteCursors(ttl time.Duration) *remoteCursors {
	return &remoteCursors{ttl: ttl, now: time.Now, cursors: map[string]RemoteCursor{}}
}

func (rc *remoteCursors) observe(participantID string, cur collab.Cursor, color, name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cursors[participantID] = RemoteCursor{
		ParticipantID: participantID,
		Cursor:        cur,
		Color:         color,
		Name:          name,
		seen:          rc.now(),
	}
}

func (rc *remoteCursors) forget(participantID string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.cursors, participantID)
}

// live prunes stale entries and returns the rest.
func (rc *remoteCursors) live() []RemoteCursor {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	cutoff := rc.now().Add(-rc.ttl)
	out := make([]RemoteCursor, 0, len(rc.cursors))
	for id, c := range rc.cursors {
		if c.seen.Before(cutoff) {
			delete(rc.cursors, id)
			continue
		}
		out = append(out, c)
	}
	return out
}

func (rc *remoteCursors) reset() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cursors = map[string]RemoteCursor{}
}
