package store

import "time"

// Snapshot is the durable canvas state of one project, written by the
// debounced save loop and read back by the REST surface.
type Snapshot struct {
	ProjectID string
	Bytes     []byte
	Version   int64
	UpdatedAt time.Time
}
