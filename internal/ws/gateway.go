package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"canvas-collab/internal/collab"
	"canvas-collab/pkg/auth"
)

// SnapshotStore is the project-storage collaborator: it owns durable canvas
// state. The collaboration core itself never persists anything else.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, projectID string, blob []byte) error
}

// Gateway multiplexes join/leave, presence, and document traffic for every
// room on this process. Each connection is in one room at most; joining a
// second room first leaves the current one.
type Gateway struct {
	log      *slog.Logger
	registry *collab.Registry
	bcast    *collab.Broadcaster
	store    SnapshotStore // nil: snapshots not persisted
	bus      *RedisBus     // nil: single-process deployment
	jwt      *auth.JWT
	debounce time.Duration
	procID   string
}

func NewGateway(log *slog.Logger, registry *collab.Registry, bcast *collab.Broadcaster,
	store SnapshotStore, bus *RedisBus, jwt *auth.JWT, debounce time.Duration) *Gateway {
	return &Gateway{
		log:      log,
		registry: registry,
		bcast:    bcast,
		store:    store,
		bus:      bus,
		jwt:      jwt,
		debounce: debounce,
		procID:   uuid.NewString(),
	}
}

// Run forwards frames relayed from other server processes into local rooms.
// Frames this process published are filtered out by origin ID. Returns when
// ctx is cancelled; a no-op without a bus.
func (g *Gateway) Run(ctx context.Context) {
	if g.bus == nil {
		<-ctx.Done()
		return
	}
	go g.bus.Subscribe(ctx, g.relay)
	<-ctx.Done()
}

// relay applies one frame from another server process. Document deltas
// merge into the local room's replica first so late joiners here get a
// converged snapshot; everything then fans out to local members. Frames
// this process published loop back through the bus and are dropped.
func (g *Gateway) relay(msg BusMessage) {
	if msg.Origin == g.procID {
		return
	}
	if env, err := Decode(msg.Frame); err == nil && env.Type == TypeDocUpdate {
		var m DocUpdate
		if unmarshal(env.Payload, &m) != nil {
			return
		}
		if doc, ok := g.registry.Doc(msg.ProjectID); ok {
			if err := doc.ApplyUpdate(m.Update); err != nil {
				g.log.Warn("bus.update.rejected", "project", msg.ProjectID, "err", err)
				return
			}
		}
	}
	// The originator lives on another process, nobody local to exclude.
	g.bcast.Fanout(msg.ProjectID, "", msg.Frame)
}

// ServeWS handles one client connection for its whole lifetime.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := g.identify(r)

	wsconn, err := Accept(w, r)
	if err != nil {
		g.log.Error("ws.accept", "err", err)
		return
	}
	conn := NewConn(wsconn)

	go conn.WriteLoop(ctx)
	if g.store != nil {
		go g.saveLoop(ctx, conn)
	}

	sess := g.newSession(userID, conn.TrySend, conn.QueueSave)
	for {
		frame, ok := conn.Read(ctx)
		if !ok {
			break
		}
		sess.handle(ctx, frame)
	}

	// Transport gone: same teardown as an explicit leave.
	sess.close(ctx)
	_ = conn.Close()
}

// identify resolves the connecting user from a bearer token, falling back
// to anonymous. Membership authorization belongs to the hosting app.
func (g *Gateway) identify(r *http.Request) string {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		if b := r.Header.Get("Authorization"); strings.HasPrefix(b, "Bearer ") {
			tok = strings.TrimPrefix(b, "Bearer ")
		}
	}
	if tok == "" || g.jwt == nil {
		return "anon"
	}
	uid, err := g.jwt.Verify(tok)
	if err != nil {
		g.log.Debug("ws.token.invalid", "err", err)
		return "anon"
	}
	return uid
}

// saveLoop batches queued snapshots and writes at most one per debounce
// window, always the latest.
func (g *Gateway) saveLoop(ctx context.Context, conn *Conn) {
	timer := time.NewTimer(g.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	var latest []byte
	var projectID string

	for {
		select {
		case b, ok := <-conn.Saves():
			if !ok {
				return
			}
			// First byte segment up to \n is the project ID tag.
			if i := bytes.IndexByte(b, '\n'); i > 0 {
				projectID, latest = string(b[:i]), b[i+1:]
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(g.debounce)

		case <-timer.C:
			if latest != nil && projectID != "" {
				if err := g.store.SaveSnapshot(ctx, projectID, latest); err != nil {
					g.log.Error("snapshot.save", "project", projectID, "err", err)
				}
				latest = nil
			}
			timer.Reset(g.debounce)

		case <-ctx.Done():
			return
		}
	}
}

// session is the per-connection state machine: connected with no room,
// in a room, then gone.
type session struct {
	g         *Gateway
	userID    string
	connID    string // scopes teardown to this connection
	send      collab.SendFunc
	queueSave func([]byte) // nil when snapshots are disabled

	projectID string // "" while not in a room
	partID    string
}

func (g *Gateway) newSession(userID string, send collab.SendFunc, queueSave func([]byte)) *session {
	return &session{g: g, userID: userID, connID: uuid.NewString(), send: send, queueSave: queueSave}
}

func (s *session) joined() bool { return s.projectID != "" }

// handle dispatches one inbound frame according to connection state.
func (s *session) handle(ctx context.Context, frame []byte) {
	env, err := Decode(frame)
	if err != nil {
		s.g.log.Debug("ws.frame.bad", "err", err)
		return
	}

	switch env.Type {
	case TypeJoinRoom:
		var m JoinRoom
		if err := unmarshal(env.Payload, &m); err != nil || !validProjectID(m.ProjectID) {
			s.send(Encode(TypeError, ErrorPayload{Message: "join-room requires a valid projectId"}))
			return
		}
		s.join(ctx, m)

	case TypeLeaveRoom:
		s.leave(ctx)

	case TypeCursorMove:
		var m CursorMove
		if err := unmarshal(env.Payload, &m); err != nil || !s.inRoom(m.ProjectID) {
			return
		}
		s.g.registry.UpdateCursor(s.projectID, s.partID, m.X, m.Y)
		p, ok := s.g.registry.Participant(s.projectID, s.partID)
		if !ok {
			return
		}
		s.fanout(ctx, Encode(TypeCursorUpdate, CursorUpdate{
			ParticipantID: s.partID,
			Cursor:        collab.Cursor{X: m.X, Y: m.Y},
			Color:         p.Color,
			Name:          p.Name,
		}))

	case TypeSelectionChange:
		var m SelectionChange
		if err := unmarshal(env.Payload, &m); err != nil || !s.inRoom(m.ProjectID) {
			return
		}
		s.g.registry.UpdateSelection(s.projectID, s.partID, m.SelectedIDs)
		p, ok := s.g.registry.Participant(s.projectID, s.partID)
		if !ok {
			return
		}
		s.fanout(ctx, Encode(TypeSelectionUpdate, SelectionUpdate{
			UserID:      s.partID,
			SelectedIDs: m.SelectedIDs,
			Color:       p.Color,
		}))

	case TypeDocUpdate:
		var m DocUpdate
		if err := unmarshal(env.Payload, &m); err != nil || !s.inRoom(m.ProjectID) {
			return
		}
		doc, ok := s.g.registry.Doc(s.projectID)
		if !ok {
			return
		}
		if err := doc.ApplyUpdate(m.Update); err != nil {
			// Bad delta must not take the room down, drop it.
			s.g.log.Warn("doc.update.rejected", "project", s.projectID, "participant", s.partID, "err", err)
			return
		}
		s.fanout(ctx, Encode(TypeDocUpdate, DocUpdate{Update: m.Update}))
		if s.queueSave != nil {
			s.queueSave(append([]byte(s.projectID+"\n"), doc.EncodeStateAsUpdate()...))
		}

	case TypeCanvasOperation:
		var m CanvasOperationIn
		if err := unmarshal(env.Payload, &m); err != nil || !s.inRoom(m.ProjectID) {
			return
		}
		if err := m.Operation.Validate(); err != nil {
			s.g.log.Debug("op.invalid", "participant", s.partID, "err", err)
			return
		}
		s.fanout(ctx, Encode(TypeCanvasOperation, CanvasOperationOut{
			Operation:  m.Operation,
			FromUserID: s.partID,
		}))

	default:
		s.g.log.Debug("ws.frame.unknown", "type", env.Type)
	}
}

func (s *session) join(ctx context.Context, m JoinRoom) {
	if s.joined() {
		s.leave(ctx) // implicit leave, one room per connection
	}

	partID := m.UserID
	if partID == "" {
		partID = s.userID
	}
	if partID == "" || partID == "anon" {
		partID = uuid.NewString()
	}
	name := m.UserName
	if name == "" {
		name = "Anonymous"
	}

	state, snapshot := s.g.registry.Join(m.ProjectID, partID, name)
	s.projectID, s.partID = m.ProjectID, partID
	s.g.bcast.Attach(s.projectID, s.partID, s.connID, s.send)

	// Join is the one exchange with a definitive reply: room state first,
	// then the snapshot to seed the local replica.
	s.send(Encode(TypeRoomState, RoomState{
		ProjectID: state.ProjectID,
		Users:     state.Participants,
		YourColor: state.Color,
		YourID:    state.ParticipantID,
	}))
	s.send(Encode(TypeDocState, DocState{Update: snapshot}))

	me, _ := s.g.registry.Participant(s.projectID, s.partID)
	s.fanout(ctx, Encode(TypeUserJoined, UserJoined{User: me, Users: state.Participants}))
}

func (s *session) leave(ctx context.Context) {
	if !s.joined() {
		return
	}
	projectID, partID := s.projectID, s.partID
	s.projectID, s.partID = "", ""

	// A second connection joining under the same participant ID takes over
	// the broadcaster entry and registry record; the replaced connection's
	// teardown must leave both alone or it evicts the live participant.
	if !s.g.bcast.Detach(projectID, partID, s.connID) {
		return
	}
	s.g.registry.Leave(projectID, partID)

	s.fanoutRoom(ctx, projectID, partID, Encode(TypeUserLeft, UserLeft{
		UserID: partID,
		Users:  s.g.registry.Participants(projectID),
	}))
}

// close is the teardown path for transport disconnects.
func (s *session) close(ctx context.Context) { s.leave(ctx) }

// inRoom guards room-scoped messages: the frame's project must match the
// room this connection actually joined.
func (s *session) inRoom(projectID string) bool {
	return s.joined() && s.projectID == projectID
}

func (s *session) fanout(ctx context.Context, frame []byte) {
	s.fanoutRoom(ctx, s.projectID, s.partID, frame)
}

func (s *session) fanoutRoom(ctx context.Context, projectID, excludeID string, frame []byte) {
	if frame == nil {
		return
	}
	s.g.bcast.Fanout(projectID, excludeID, frame)
	if s.g.bus != nil {
		_ = s.g.bus.Publish(ctx, BusMessage{ProjectID: projectID, Origin: s.g.procID, Frame: frame})
	}
}

// validProjectID rejects empty IDs and any control character. The snapshot
// queue tags blobs with the project ID in-band, so an ID carrying a newline
// would mis-key the persisted snapshot.
func validProjectID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

var errEmptyPayload = errors.New("empty payload")

func unmarshal(raw []byte, v any) error {
	if len(raw) == 0 {
		return errEmptyPayload
	}
	return json.Unmarshal(raw, v)
}
