package collab

import (
	"errors"
	"fmt"
)

// OpKind enumerates the discrete canvas mutations.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
	OpMove   OpKind = "move"
	OpResize OpKind = "resize"
)

// CanvasItem is one element of the shared canvas (shape, image, text...).
type CanvasItem struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	X      float64           `json:"x"`
	Y      float64           `json:"y"`
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
	Props  map[string]string `json:"props,omitempty"`
}

// Position is the payload of a move operation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dimensions is the payload of a resize operation.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ItemUpdate carries partial field changes for an existing item.
type ItemUpdate struct {
	Fields map[string]string `json:"fields"`
}

// Operation is a discrete canvas mutation from one participant. Exactly one
// payload field is set, matching Kind; delete carries its targets in ItemIDs.
// Operations are ephemeral: broadcast once, applied, then discarded.
type Operation struct {
	Kind    OpKind   `json:"type"`
	ItemID  string   `json:"itemId,omitempty"`
	ItemIDs []string `json:"itemIds,omitempty"`

	Add    *CanvasItem `json:"add,omitempty"`
	Update *ItemUpdate `json:"update,omitempty"`
	Move   *Position   `json:"move,omitempty"`
	Resize *Dimensions `json:"resize,omitempty"`

	// Timestamp is the origination instant, unix milliseconds.
	Timestamp int64 `json:"timestamp"`
}

var errOpPayload = errors.New("operation payload does not match kind")

// Validate checks that the payload shape agrees with the operation kind.
func (o *Operation) Validate() error {
	switch o.Kind {
	case OpAdd:
		if o.Add == nil || o.Add.ID == "" {
			return errOpPayload
		}
	case OpUpdate:
		if o.ItemID == "" || o.Update == nil || len(o.Update.Fields) == 0 {
			return errOpPayload
		}
	case OpDelete:
		if len(o.ItemIDs) == 0 {
			return errOpPayload
		}
	case OpMove:
		if o.ItemID == "" || o.Move == nil {
			return errOpPayload
		}
	case OpResize:
		if o.ItemID == "" || o.Resize == nil {
			return errOpPayload
		}
	default:
		return fmt.Errorf("unknown operation kind %q", o.Kind)
	}
	return nil
}
