package crdt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// entry is one replicated cell: the value of one field of one item, stamped
// with a lamport clock and the writing site. A Deleted entry with an empty
// field is the tombstone for the whole item.
type entry struct {
	ItemID  string `json:"itemId"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Clock   uint64 `json:"clock"`
	Site    string `json:"site"`
}

// update is the wire form of a delta: a batch of entries.
type update struct {
	Entries []entry `json:"entries"`
}

const keySep = "\x00"

var errBadDelta = errors.New("malformed document delta")

// LWWDoc is a last-writer-wins element map over canvas item fields. Each
// (item, field) cell independently keeps the entry with the highest
// (clock, site) stamp, which makes merges commutative, associative, and
// idempotent regardless of delta arrival order.
type LWWDoc struct {
	mu       sync.Mutex
	site     string
	clock    uint64
	state    map[string]entry // itemID + \x00 + field
	onChange func(delta []byte)
}

// NewLWWDoc creates an empty document replica. site must be unique per
// replica; it breaks ties between writes carrying the same clock.
func NewLWWDoc(site string) *LWWDoc {
	return &LWWDoc{site: site, state: map[string]entry{}}
}

func (d *LWWDoc) OnLocalChange(fn func(delta []byte)) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Set writes one field and emits the corresponding delta.
func (d *LWWDoc) Set(itemID, field, value string) {
	if itemID == "" || field == "" {
		return
	}
	d.mu.Lock()
	d.clock++
	e := entry{ItemID: itemID, Field: field, Value: value, Clock: d.clock, Site: d.site}
	d.merge(e)
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(encode(e))
	}
}

// Delete tombstones an item and emits the corresponding delta.
func (d *LWWDoc) Delete(itemID string) {
	if itemID == "" {
		return
	}
	d.mu.Lock()
	d.clock++
	e := entry{ItemID: itemID, Deleted: true, Clock: d.clock, Site: d.site}
	d.merge(e)
	fn := d.onChange
	d.mu.Unlock()

	if fn != nil {
		fn(encode(e))
	}
}

// ApplyUpdate merges a remote delta. Safe to call repeatedly with the same
// delta and in any order relative to other deltas.
func (d *LWWDoc) ApplyUpdate(delta []byte) error {
	var u update
	if err := json.Unmarshal(delta, &u); err != nil {
		return fmt.Errorf("%w: %v", errBadDelta, err)
	}
	for _, e := range u.Entries {
		if e.ItemID == "" || e.Site == "" {
			return errBadDelta
		}
		if strings.Contains(e.ItemID, keySep) || strings.Contains(e.Field, keySep) {
			return errBadDelta
		}
		if !e.Deleted && e.Field == "" {
			return errBadDelta
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range u.Entries {
		d.merge(e)
		// Keep the local clock ahead of everything observed, so later local
		// writes win over already-seen remote ones.
		if e.Clock > d.clock {
			d.clock = e.Clock
		}
	}
	return nil
}

// EncodeStateAsUpdate returns a delta carrying every cell, tombstones
// included. Applying it to an empty replica reproduces this document.
func (d *LWWDoc) EncodeStateAsUpdate() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := update{Entries: make([]entry, 0, len(d.state))}
	for _, e := range d.state {
		u.Entries = append(u.Entries, e)
	}
	raw, _ := json.Marshal(u)
	return raw
}

// Item returns the live fields of one item.
func (d *LWWDoc) Item(itemID string) (map[string]string, bool) {
	items := d.Items()
	fields, ok := items[itemID]
	return fields, ok
}

// Items returns all live items. A field survives an item tombstone only if
// it was written after the tombstone (a concurrent re-add wins over delete
// exactly when its stamp is higher, same rule as any other cell).
func (d *LWWDoc) Items() map[string]map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := map[string]map[string]string{}
	for key, e := range d.state {
		if e.Deleted || e.Field == "" {
			continue
		}
		itemID := key[:strings.Index(key, keySep)]
		if tomb, ok := d.state[itemID+keySep]; ok && tomb.Deleted && !newer(e, tomb) {
			continue
		}
		fields := out[itemID]
		if fields == nil {
			fields = map[string]string{}
			out[itemID] = fields
		}
		fields[e.Field] = e.Value
	}
	return out
}

// merge keeps the higher-stamped entry for the cell. Lock held by caller.
func (d *LWWDoc) merge(e entry) {
	key := e.ItemID + keySep + e.Field
	if cur, ok := d.state[key]; ok && !newer(e, cur) {
		return
	}
	d.state[key] = e
}

// newer reports whether a supersedes b: higher clock wins, site breaks ties.
func newer(a, b entry) bool {
	if a.Clock != b.Clock {
		return a.Clock > b.Clock
	}
	return a.Site > b.Site
}

func encode(entries ...entry) []byte {
	raw, _ := json.Marshal(update{Entries: entries})
	return raw
}
