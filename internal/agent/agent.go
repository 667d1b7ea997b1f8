// Package agent is the client-side collaboration counterpart: one instance
// per editing surface (browser tab, headless tool) keeps a local document
// replica and canvas model in sync with the room it joined.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"nhooyr.io/websocket"

	"canvas-collab/internal/collab"
	"canvas-collab/internal/crdt"
	"canvas-collab/internal/ws"
)

const (
	defaultCursorInterval = 50 * time.Millisecond
	defaultCursorTTL      = 3 * time.Second
)

type Options struct {
	URL      string // ws endpoint, e.g. ws://localhost:8080/ws
	Token    string // optional bearer token for the identity check
	UserID   string
	UserName string
	Log      *slog.Logger

	CursorInterval time.Duration // min gap between outgoing cursor frames
	CursorTTL      time.Duration // liveness window for remote cursors
}

// Agent maintains the local replica for one participant. All Send* methods
// are no-ops unless currently connected and joined; on transport loss the
// agent reconnects with backoff and replays the join handshake itself.
type Agent struct {
	log  *slog.Logger
	opts Options

	state    *canvasState
	cursors  *remoteCursors
	throttle *cursorThrottle

	mu           sync.Mutex
	conn         *websocket.Conn
	cancel       context.CancelFunc
	projectID    string
	id           string
	color        string
	joined       bool
	participants map[string]collab.Participant
	doc          crdt.Doc
}

func New(opts Options) *Agent {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.CursorInterval <= 0 {
		opts.CursorInterval = defaultCursorInterval
	}
	if opts.CursorTTL <= 0 {
		opts.CursorTTL = defaultCursorTTL
	}
	a := &Agent{
		log:          opts.Log,
		opts:         opts,
		state:        newCanvasState(),
		cursors:      newRemoteCursors(opts.CursorTTL),
		participants: map[string]collab.Participant{},
	}
	a.throttle = newCursorThrottle(opts.CursorInterval, a.sendCursorNow)
	return a
}

// Join connects to the gateway and enters the project's room. It returns
// after the first successful dial; the read loop and any reconnects run in
// the background until Close.
func (a *Agent) Join(ctx context.Context, projectID string) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return errors.New("agent already running")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.projectID = projectID
	a.mu.Unlock()

	if err := a.connect(ctx); err != nil {
		cancel()
		a.mu.Lock()
		a.cancel = nil
		a.mu.Unlock()
		return err
	}
	go a.run(runCtx)
	return nil
}

// Leave exits the current room but keeps the connection.
func (a *Agent) Leave(ctx context.Context) {
	a.mu.Lock()
	conn := a.conn
	projectID := a.projectID
	a.joined = false
	a.participants = map[string]collab.Participant{}
	a.mu.Unlock()

	a.cursors.reset()
	if conn != nil {
		_ = conn.Write(ctx, websocket.MessageText,
			ws.Encode(ws.TypeLeaveRoom, ws.LeaveRoom{ProjectID: projectID}))
	}
}

// Close tears the agent down. No reconnect afterwards.
func (a *Agent) Close() {
	a.mu.Lock()
	cancel := a.cancel
	conn := a.conn
	a.cancel = nil
	a.conn = nil
	a.joined = false
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// Joined reports whether the agent is currently in a room. False while
// disconnected: presence UIs should show offline and nothing gets sent.
func (a *Agent) Joined() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.joined && a.conn != nil
}

// ID returns the participant ID the room assigned to this agent.
func (a *Agent) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id
}

// Color returns the palette color the room assigned to this agent.
func (a *Agent) Color() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.color
}

// Participants returns the last known room membership.
func (a *Agent) Participants() []collab.Participant {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]collab.Participant, 0, len(a.participants))
	for _, p := range a.participants {
		out = append(out, p)
	}
	return out
}

// Items returns the local canvas model.
func (a *Agent) Items() map[string]collab.CanvasItem { return a.state.Items() }

// RemoteCursors returns the remote cursors to render, minus any that went
// silent past the liveness window.
func (a *Agent) RemoteCursors() []RemoteCursor { return a.cursors.live() }

// SendCursor reports the local pointer position, throttled so at most one
// frame per interval leaves, always the most recent position.
func (a *Agent) SendCursor(x, y float64) {
	if !a.Joined() {
		return
	}
	a.throttle.offer(collab.Cursor{X: x, Y: y})
}

// SendSelection reports the local selection. An empty slice means cleared.
func (a *Agent) SendSelection(selectedIDs []string) {
	if !a.Joined() {
		return
	}
	if selectedIDs == nil {
		selectedIDs = []string{}
	}
	a.send(ws.Encode(ws.TypeSelectionChange, ws.SelectionChange{
		ProjectID:   a.project(),
		SelectedIDs: selectedIDs,
	}))
}

// SendOperation applies a local canvas mutation and broadcasts it.
func (a *Agent) SendOperation(op collab.Operation) error {
	if !a.Joined() {
		return nil
	}
	if err := op.Validate(); err != nil {
		return err
	}
	if op.Timestamp == 0 {
		op.Timestamp = time.Now().UnixMilli()
	}
	a.state.apply(op)
	a.send(ws.Encode(ws.TypeCanvasOperation, ws.CanvasOperationIn{
		ProjectID: a.project(),
		Operation: op,
	}))
	return nil
}

// SetField writes one field of one item into the shared document; the
// resulting delta goes out through the local-change hook.
func (a *Agent) SetField(itemID, field, value string) {
	a.mu.Lock()
	doc := a.doc
	a.mu.Unlock()
	if doc != nil {
		doc.Set(itemID, field, value)
	}
}

// DeleteItem tombstones an item in the shared document.
func (a *Agent) DeleteItem(itemID string) {
	a.mu.Lock()
	doc := a.doc
	a.mu.Unlock()
	if doc != nil {
		doc.Delete(itemID)
	}
}

// Doc exposes the local replica, nil until the join handshake finished.
func (a *Agent) Doc() crdt.Doc {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc
}

// connect dials the gateway and sends the join request. The server replies
// with room-state and the document snapshot, handled by the read loop.
func (a *Agent) connect(ctx context.Context) error {
	url := a.opts.URL
	if a.opts.Token != "" {
		url += "?token=" + a.opts.Token
	}
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.conn = conn
	projectID := a.projectID
	a.mu.Unlock()

	err = conn.Write(ctx, websocket.MessageText, ws.Encode(ws.TypeJoinRoom, ws.JoinRoom{
		ProjectID: projectID,
		UserID:    a.opts.UserID,
		UserName:  a.opts.UserName,
	}))
	if err != nil {
		// Do not leak a half-open connection when the handshake write fails.
		a.dropConnection()
		return err
	}
	return nil
}

// run owns the read loop plus reconnection. Each reconnect replays the
// join handshake; room state is ephemeral and rebuilt on join.
func (a *Agent) run(ctx context.Context) {
	for {
		a.readLoop(ctx)
		a.dropConnection()
		if ctx.Err() != nil {
			return
		}
		a.log.Info("agent.reconnecting")

		bo := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
		if err := backoff.Retry(func() error { return a.connect(ctx) }, bo); err != nil {
			return // context cancelled
		}
	}
}

func (a *Agent) readLoop(ctx context.Context) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return
	}
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		a.handleFrame(data)
	}
}

func (a *Agent) handleFrame(frame []byte) {
	env, err := ws.Decode(frame)
	if err != nil {
		a.log.Debug("agent.frame.bad", "err", err)
		return
	}

	switch env.Type {
	case ws.TypeRoomState:
		var m ws.RoomState
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		a.mu.Lock()
		a.id = m.YourID
		a.color = m.YourColor
		a.joined = true
		a.participants = map[string]collab.Participant{}
		for _, p := range m.Users {
			a.participants[p.ID] = p
		}
		a.mu.Unlock()
		a.log.Info("agent.joined", "project", m.ProjectID, "id", m.YourID, "color", m.YourColor)

	case ws.TypeDocState:
		var m ws.DocState
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		a.seedDoc(m.Update)

	case ws.TypeUserJoined:
		var m ws.UserJoined
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		a.setParticipants(m.Users)

	case ws.TypeUserLeft:
		var m ws.UserLeft
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		a.setParticipants(m.Users)
		a.cursors.forget(m.UserID)

	case ws.TypeCursorUpdate:
		var m ws.CursorUpdate
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		a.cursors.observe(m.ParticipantID, m.Cursor, m.Color, m.Name)

	case ws.TypeSelectionUpdate:
		var m ws.SelectionUpdate
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		a.mu.Lock()
		if p, ok := a.participants[m.UserID]; ok {
			p.Selection = m.SelectedIDs
			a.participants[m.UserID] = p
		}
		a.mu.Unlock()

	case ws.TypeDocUpdate:
		var m ws.DocUpdate
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		a.mu.Lock()
		doc := a.doc
		a.mu.Unlock()
		if doc == nil {
			return
		}
		if err := doc.ApplyUpdate(m.Update); err != nil {
			a.log.Warn("agent.doc.update.rejected", "err", err)
		}

	case ws.TypeCanvasOperation:
		var m ws.CanvasOperationOut
		if json.Unmarshal(env.Payload, &m) != nil {
			return
		}
		// The server already excludes the originator; this guard covers a
		// frame relayed back through a misbehaving path.
		if m.FromUserID == a.ID() {
			return
		}
		a.state.apply(m.Operation)

	case ws.TypeError:
		var m ws.ErrorPayload
		_ = json.Unmarshal(env.Payload, &m)
		a.log.Warn("agent.server.error", "message", m.Message)
	}
}

// seedDoc replaces the local replica with one seeded from the snapshot and
// hooks local changes back into the outgoing delta stream.
func (a *Agent) seedDoc(snapshot []byte) {
	a.mu.Lock()
	site := a.id
	a.mu.Unlock()

	doc := crdt.NewLWWDoc(site)
	if len(snapshot) > 0 {
		if err := doc.ApplyUpdate(snapshot); err != nil {
			a.log.Warn("agent.doc.seed.rejected", "err", err)
		}
	}
	doc.OnLocalChange(func(delta []byte) {
		if !a.Joined() {
			return
		}
		a.send(ws.Encode(ws.TypeDocUpdate, ws.DocUpdate{
			ProjectID: a.project(),
			Update:    delta,
		}))
	})

	a.mu.Lock()
	a.doc = doc
	a.mu.Unlock()
}

func (a *Agent) setParticipants(users []collab.Participant) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.participants = map[string]collab.Participant{}
	for _, p := range users {
		a.participants[p.ID] = p
	}
}

func (a *Agent) sendCursorNow(c collab.Cursor) {
	if !a.Joined() {
		return
	}
	a.send(ws.Encode(ws.TypeCursorMove, ws.CursorMove{
		ProjectID: a.project(),
		X:         c.X,
		Y:         c.Y,
	}))
}

func (a *Agent) project() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.projectID
}

// send writes one frame, fire-and-forget.
func (a *Agent) send(frame []byte) {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil || frame == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, frame)
}

// dropConnection marks the agent offline after a transport failure.
func (a *Agent) dropConnection() {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.joined = false
	a.mu.Unlock()

	a.cursors.reset()
	if conn != nil {
		_ = conn.Close(websocket.StatusGoingAway, "reconnect")
	}
}
