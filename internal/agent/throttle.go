package agent

import (
	"sync"
	"time"

	"canvas-collab/internal/collab"
)

// cursorThrottle bounds outgoing cursor traffic to one position per
// interval. The most recent position always wins: positions offered inside
// a window replace each other and the latest is flushed when it closes.
type cursorThrottle struct {
	interval time.Duration
	send     func(collab.Cursor)

	// injectable for tests
	now   func() time.Time
	after func(d time.Duration, f func())

	mu        sync.Mutex
	last      time.Time
	pending   *collab.Cursor
	scheduled bool
}

func newCursorThrottle(interval time.Duration, send func(collab.Cursor)) *cursorThrottle {
	return &cursorThrottle{
		interval: interval,
		send:     send,
		now:      time.Now,
		after:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

// offer submits a position. It either goes out immediately or supersedes
// the pending one for the current window.
func (t *cursorThrottle) offer(c collab.Cursor) {
	t.mu.Lock()
	n := t.now()
	if !t.scheduled && n.Sub(t.last) >= t.interval {
		t.last = n
		t.mu.Unlock()
		t.send(c)
		return
	}
	t.pending = &c
	if !t.scheduled {
		t.scheduled = true
		delay := t.interval - n.Sub(t.last)
		t.after(delay, t.flush)
	}
	t.mu.Unlock()
}

// flush sends the pending position at the end of a window.
func (t *cursorThrottle) flush() {
	t.mu.Lock()
	t.scheduled = false
	if t.pending == nil {
		t.mu.Unlock()
		return
	}
	c := *t.pending
	t.pending = nil
	t.last = t.now()
	t.mu.Unlock()
	t.send(c)
}
