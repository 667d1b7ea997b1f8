// Package crdt provides the mergeable replicated document shared by every
// participant in a room. The room logic only sees the narrow Doc interface,
// so the merge engine stays a pluggable collaborator.
package crdt

// Doc is a replicated document whose updates can be merged from any number
// of replicas without coordination. ApplyUpdate must be commutative and
// idempotent: applying deltas in any order, any number of times, converges
// every replica to the same state.
type Doc interface {
	// ApplyUpdate merges a remote delta. A malformed delta returns an error
	// and leaves the document in its last valid state.
	ApplyUpdate(delta []byte) error

	// EncodeStateAsUpdate produces a delta carrying the full current state,
	// handed to late joiners so they seed a replica without replaying history.
	EncodeStateAsUpdate() []byte

	// OnLocalChange registers the callback invoked with a delta every time
	// local code mutates the document. The delta must be broadcast to the
	// other replicas.
	OnLocalChange(fn func(delta []byte))

	// Set writes one field of one canvas item.
	Set(itemID, field, value string)

	// Delete removes an item and all its fields.
	Delete(itemID string)

	// Item returns one item's live fields.
	Item(itemID string) (map[string]string, bool)

	// Items returns all live items and their fields.
	Items() map[string]map[string]string
}
