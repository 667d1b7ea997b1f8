package ws

import (
	"encoding/json"
	"fmt"

	"canvas-collab/internal/collab"
)

// Message types exchanged over a collaboration connection.
const (
	// client -> server
	TypeJoinRoom        = "join-room"
	TypeLeaveRoom       = "leave-room"
	TypeCursorMove      = "cursor-move"
	TypeSelectionChange = "selection-change"
	TypeCanvasOperation = "canvas-operation"
	TypeDocUpdate       = "crdt-update" // both directions

	// server -> client
	TypeRoomState       = "room-state"
	TypeDocState        = "crdt-state"
	TypeUserJoined      = "user-joined"
	TypeUserLeft        = "user-left"
	TypeCursorUpdate    = "cursor-update"
	TypeSelectionUpdate = "selection-update"
	TypeError           = "error"
)

// Envelope is the wire frame: a type tag plus the type's payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRoom struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName"`
}

type RoomState struct {
	ProjectID string               `json:"projectId"`
	Users     []collab.Participant `json:"users"`
	YourColor string               `json:"yourColor"`
	YourID    string               `json:"yourId"`
}

// DocState carries the full document snapshot sent to a joiner.
type DocState struct {
	Update []byte `json:"update"`
}

type UserJoined struct {
	User  collab.Participant   `json:"user"`
	Users []collab.Participant `json:"users"`
}

type LeaveRoom struct {
	ProjectID string `json:"projectId"`
}

type UserLeft struct {
	UserID string               `json:"userId"`
	Users  []collab.Participant `json:"users"`
}

type CursorMove struct {
	ProjectID string  `json:"projectId"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type CursorUpdate struct {
	ParticipantID string        `json:"participantId"`
	Cursor        collab.Cursor `json:"cursor"`
	Color         string        `json:"color"`
	Name          string        `json:"name"`
}

type SelectionChange struct {
	ProjectID   string   `json:"projectId"`
	SelectedIDs []string `json:"selectedIds"`
}

type SelectionUpdate struct {
	UserID      string   `json:"userId"`
	SelectedIDs []string `json:"selectedIds"`
	Color       string   `json:"color"`
}

// DocUpdate carries an incremental document delta. ProjectID is set on
// client->server frames and empty on fanout.
type DocUpdate struct {
	ProjectID string `json:"projectId,omitempty"`
	Update    []byte `json:"update"`
}

// CanvasOperationIn is the client->server form of a canvas mutation.
type CanvasOperationIn struct {
	ProjectID string           `json:"projectId"`
	Operation collab.Operation `json:"operation"`
}

// CanvasOperationOut is the fanout form, tagged with the originator.
type CanvasOperationOut struct {
	Operation  collab.Operation `json:"operation"`
	FromUserID string           `json:"fromUserId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode builds a wire frame for typ and payload.
func Encode(typ string, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	frame, _ := json.Marshal(Envelope{Type: typ, Payload: raw})
	return frame
}

// Decode parses a wire frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("bad frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("bad frame: missing type")
	}
	return env, nil
}
