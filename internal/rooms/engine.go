package rooms

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/plazahq/plaza-server/internal/grid"
	"github.com/plazahq/plaza-server/internal/metrics"
	"github.com/plazahq/plaza-server/internal/models"
	"github.com/plazahq/plaza-server/internal/protocol"
	"github.com/plazahq/plaza-server/internal/utils"
)

const (
	commandQueueSize = 256
	storeCallTimeout = 5 * time.Second
)

// ErrEngineStopped is returned by enqueue when the engine has been unloaded;
// callers reload through the registry and retry.
var ErrEngineStopped = fmt.Errorf("room engine stopped")

// Engine is the single writer of one room's live state. All mutation
// arrives as commands on a channel consumed by run; nothing outside the run
// goroutine touches the maps below. The only externally readable state is
// the pair of atomic attachment counters used by discovery snapshots.
type Engine struct {
	room     *models.Room
	grid     *grid.Grid
	registry *Registry
	store    Store
	log      *utils.Logger

	walkSpeed     float64
	historyLimit  int
	messageMaxLen int

	commands chan command
	done     chan struct{}
	stopOnce sync.Once

	participantCount atomic.Int64
	spectatorCount   atomic.Int64

	// run-goroutine confined
	agents       map[uuid.UUID]*models.Agent
	participants map[uuid.UUID]Conn
	conns        map[Conn]uuid.UUID // spectators map to uuid.Nil
	history      []*models.ChatMessage
}

type command interface{ isCommand() }

type attachParticipant struct {
	conn  Conn
	id    uuid.UUID
	name  string
	color string
}

type attachSpectator struct{ conn Conn }

type detach struct{ conn Conn }

type moveCmd struct {
	conn Conn
	x, y int
}

type chatCmd struct {
	conn    Conn
	content string
}

func (attachParticipant) isCommand() {}
func (attachSpectator) isCommand()   {}
func (detach) isCommand()            {}
func (moveCmd) isCommand()           {}
func (chatCmd) isCommand()           {}

func newEngine(room *models.Room, registry *Registry, store Store, log *utils.Logger, history []*models.ChatMessage) *Engine {
	g := grid.New(room.Width, room.Height, room.Tiles)
	// Clients render the normalized map, not the legacy persisted one.
	room.Tiles = g.Tiles
	return &Engine{
		room:          room,
		grid:          g,
		registry:      registry,
		store:         store,
		log:           log,
		walkSpeed:     registry.walkSpeed,
		historyLimit:  registry.historyLimit,
		messageMaxLen: registry.messageMaxLen,
		commands:      make(chan command, commandQueueSize),
		done:          make(chan struct{}),
		agents:        make(map[uuid.UUID]*models.Agent),
		participants:  make(map[uuid.UUID]Conn),
		conns:         make(map[Conn]uuid.UUID),
		history:       history,
	}
}

// RoomID returns the engine's room id.
func (e *Engine) RoomID() uuid.UUID { return e.room.ID }

// Slug returns the engine's room slug.
func (e *Engine) Slug() string { return e.room.Slug }

// Participants returns the live participant count.
func (e *Engine) Participants() int { return int(e.participantCount.Load()) }

// Spectators returns the live spectator count.
func (e *Engine) Spectators() int { return int(e.spectatorCount.Load()) }

// AttachParticipant places an authenticated agent in the room.
func (e *Engine) AttachParticipant(conn Conn, id uuid.UUID, name, color string) error {
	return e.enqueue(attachParticipant{conn: conn, id: id, name: name, color: color})
}

// AttachSpectator adds a read-only socket to the room.
func (e *Engine) AttachSpectator(conn Conn) error {
	return e.enqueue(attachSpectator{conn: conn})
}

// Detach releases a socket from the room.
func (e *Engine) Detach(conn Conn) error {
	return e.enqueue(detach{conn: conn})
}

// Move requests a pathed walk for the participant bound to conn.
func (e *Engine) Move(conn Conn, x, y int) error {
	return e.enqueue(moveCmd{conn: conn, x: x, y: y})
}

// Chat broadcasts and persists a chat line from the participant bound to conn.
func (e *Engine) Chat(conn Conn, content string) error {
	return e.enqueue(chatCmd{conn: conn, content: content})
}

func (e *Engine) enqueue(c command) error {
	// Check done first: when the engine is stopped and the queue still has
	// room, a bare two-way select could pick either case.
	select {
	case <-e.done:
		return ErrEngineStopped
	default:
	}
	select {
	case <-e.done:
		return ErrEngineStopped
	case e.commands <- c:
		return nil
	}
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() { close(e.done) })
}

// run consumes the command queue until the engine is unloaded.
func (e *Engine) run() {
	metrics.LoadedRooms.Inc()
	defer metrics.LoadedRooms.Dec()

	for {
		select {
		case <-e.done:
			return
		case cmd := <-e.commands:
			e.dispatch(cmd)
		}
	}
}

func (e *Engine) dispatch(cmd command) {
	switch c := cmd.(type) {
	case attachParticipant:
		e.handleAttachParticipant(c)
	case attachSpectator:
		e.handleAttachSpectator(c)
	case detach:
		e.handleDetach(c.conn)
	case moveCmd:
		e.handleMove(c)
	case chatCmd:
		e.handleChat(c)
	}
}

func (e *Engine) handleAttachParticipant(c attachParticipant) {
	// A second attach for the same agent in this room is a re-join:
	// detach the prior socket first so occupancy stays correct. The same
	// applies when this socket is already attached (e.g. as a spectator
	// that has since authenticated).
	if prev, ok := e.participants[c.id]; ok {
		e.removeConn(prev)
	}
	if _, ok := e.conns[c.conn]; ok {
		e.removeConn(c.conn)
	}

	spawn := e.grid.SpawnPoint()
	agent := &models.Agent{
		ID:   c.id,
		Name: c.name,
		Avatar: models.Avatar{
			ID:        c.id,
			AgentID:   c.id,
			BodyColor: c.color,
		},
		X: spawn.X,
		Y: spawn.Y,
	}

	e.agents[c.id] = agent
	e.participants[c.id] = c.conn
	e.conns[c.conn] = c.id
	e.participantCount.Add(1)
	metrics.Participants.Inc()
	e.registry.bindAgentRoom(c.id, e.room.ID)

	// Snapshot includes the joiner; the joiner's own agent_joined goes to
	// everyone else.
	c.conn.Deliver(e.snapshot())
	e.broadcastExcept(c.conn, protocol.NewAgentJoined(*agent))
}

func (e *Engine) handleAttachSpectator(c attachSpectator) {
	if _, ok := e.conns[c.conn]; ok {
		// Re-join of the current room as spectator: just resend state.
		c.conn.Deliver(e.snapshot())
		return
	}
	e.conns[c.conn] = uuid.Nil
	e.spectatorCount.Add(1)
	metrics.Spectators.Inc()
	c.conn.Deliver(e.snapshot())
}

func (e *Engine) handleDetach(conn Conn) {
	if !e.removeConn(conn) {
		return
	}
	if len(e.conns) == 0 {
		e.registry.onEngineEmpty(e)
	}
}

// removeConn drops a socket from the room without the empty-room check, so
// a re-join can detach and re-attach without tearing the engine down.
func (e *Engine) removeConn(conn Conn) bool {
	id, ok := e.conns[conn]
	if !ok {
		return false
	}
	delete(e.conns, conn)

	if id == uuid.Nil {
		e.spectatorCount.Add(-1)
		metrics.Spectators.Dec()
	} else {
		delete(e.agents, id)
		delete(e.participants, id)
		e.participantCount.Add(-1)
		metrics.Participants.Dec()
		e.registry.unbindAgentRoom(id, e.room.ID)
		e.broadcast(protocol.NewAgentLeft(id))
	}
	return true
}

func (e *Engine) handleMove(c moveCmd) {
	id, ok := e.conns[c.conn]
	if !ok || id == uuid.Nil {
		c.conn.Deliver(protocol.NewError(protocol.CodeNotInRoom, "not joined to this room as a participant"))
		return
	}
	agent := e.agents[id]

	if !e.grid.InBounds(c.x, c.y) {
		c.conn.Deliver(protocol.NewError(protocol.CodeInvalidMove,
			fmt.Sprintf("position (%d,%d) out of bounds; room is %dx%d", c.x, c.y, e.room.Width, e.room.Height)))
		return
	}
	if !e.grid.Walkable(c.x, c.y) {
		c.conn.Deliver(protocol.NewError(protocol.CodeInvalidMove,
			fmt.Sprintf("tile (%d,%d) is not walkable", c.x, c.y)))
		return
	}

	from := grid.Point{X: agent.X, Y: agent.Y}
	to := grid.Point{X: c.x, Y: c.y}
	if from == to {
		return
	}

	path := e.grid.FindPath(from, to)
	if len(path) == 0 {
		c.conn.Deliver(protocol.NewError(protocol.CodeInvalidMove,
			fmt.Sprintf("no walkable path from (%d,%d) to (%d,%d)", from.X, from.Y, to.X, to.Y)))
		return
	}

	// The logical position commits to the destination immediately; clients
	// animate along the advertised path at walkSpeed tiles/second. A fresh
	// move while a prior walk is still animating re-plans from here.
	agent.X = to.X
	agent.Y = to.Y
	e.broadcast(protocol.NewAgentPath(id, path, e.walkSpeed))
}

func (e *Engine) handleChat(c chatCmd) {
	id, ok := e.conns[c.conn]
	if !ok || id == uuid.Nil {
		c.conn.Deliver(protocol.NewError(protocol.CodeNotInRoom, "not joined to this room as a participant"))
		return
	}
	agent := e.agents[id]

	content := strings.TrimSpace(c.content)
	if content == "" {
		return
	}
	if runes := []rune(content); len(runes) > e.messageMaxLen {
		content = string(runes[:e.messageMaxLen])
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	msg, err := e.store.InsertMessage(ctx, e.room.ID, id, agent.Name, agent.Avatar.BodyColor, content)
	if err != nil {
		e.log.Error(ctx, "failed to persist chat message in room %s: %v", e.room.ID, err)
		c.conn.Deliver(protocol.NewError(protocol.CodeInternalError, "message could not be saved"))
		return
	}
	metrics.ChatPersisted.Inc()

	e.history = append(e.history, msg)
	if len(e.history) > e.historyLimit {
		e.history = e.history[len(e.history)-e.historyLimit:]
	}

	e.broadcast(protocol.NewChatBroadcast(msg))
}

func (e *Engine) snapshot() protocol.RoomState {
	agents := make([]models.Agent, 0, len(e.agents))
	for _, a := range e.agents {
		agents = append(agents, *a)
	}
	messages := make([]*models.ChatMessage, len(e.history))
	copy(messages, e.history)
	return protocol.NewRoomState(e.room, agents, messages)
}

func (e *Engine) broadcast(frame interface{}) {
	for conn := range e.conns {
		if conn.Deliver(frame) {
			metrics.FramesBroadcast.Inc()
		} else {
			metrics.FramesDropped.Inc()
		}
	}
}

func (e *Engine) broadcastExcept(skip Conn, frame interface{}) {
	for conn := range e.conns {
		if conn == skip {
			continue
		}
		if conn.Deliver(frame) {
			metrics.FramesBroadcast.Inc()
		} else {
			metrics.FramesDropped.Inc()
		}
	}
}
