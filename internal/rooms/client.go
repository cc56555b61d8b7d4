package rooms

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/plazahq/plaza-server/internal/auth"
	"github.com/plazahq/plaza-server/internal/cache"
	"github.com/plazahq/plaza-server/internal/metrics"
	"github.com/plazahq/plaza-server/internal/models"
	"github.com/plazahq/plaza-server/internal/protocol"
	"github.com/plazahq/plaza-server/internal/utils"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Chat caps at 500 runes, so
	// this bounds even fully multibyte content plus framing.
	maxMessageSize = 4096

	// Outbound queue depth per socket.
	sendQueueSize = 256

	// Per-socket command ceilings (events per second, burst equal).
	chatRateLimit = 10
	moveRateLimit = 20
)

// ClientDeps bundles the collaborators a connection handler needs.
type ClientDeps struct {
	Registry *Registry
	Tokens   TokenValidator
	Store    Store
	Presence PresenceService // optional
	LastSeen LastSeenService // optional
	Log      *utils.Logger
}

// TokenValidator verifies a bearer token and yields the agent identity.
// Implemented by auth.TokenManager.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Client drives one websocket: it decodes inbound frames, runs the auth
// handshake, routes commands to the current room engine, and writes
// outbound frames. The engine fans out through Deliver; the client side
// owns closing the socket.
type Client struct {
	conn     *websocket.Conn
	send     chan interface{}
	shutdown chan struct{}
	deps     ClientDeps

	// read-pump confined
	engine    *Engine
	authed    bool
	agentID   uuid.UUID
	agentName string
	bodyColor string

	chatLimiter *rate.Limiter
	moveLimiter *rate.Limiter
}

// NewClient wraps an upgraded websocket connection.
func NewClient(conn *websocket.Conn, deps ClientDeps) *Client {
	return &Client{
		conn:        conn,
		send:        make(chan interface{}, sendQueueSize),
		shutdown:    make(chan struct{}),
		deps:        deps,
		chatLimiter: rate.NewLimiter(chatRateLimit, chatRateLimit),
		moveLimiter: rate.NewLimiter(moveRateLimit, moveRateLimit),
	}
}

// Deliver enqueues a frame for the write pump. It never blocks; a full
// queue drops the frame.
func (c *Client) Deliver(frame interface{}) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close tears the socket down. Safe to call from any goroutine; the read
// pump notices the closed connection and runs its cleanup exactly once.
func (c *Client) Close() {
	c.conn.Close()
}

// Start begins the client's read and write pumps. It blocks until the
// connection closes.
func (c *Client) Start() {
	metrics.OpenConnections.Inc()
	go c.writePump()
	c.readPump()
}

// readPump pumps messages from the websocket connection to the room engine.
// There is at most one reader per connection.
func (c *Client) readPump() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.deps.Log.Debug(context.Background(), "websocket read error: %v", err)
			}
			return
		}

		msg, err := protocol.DecodeInbound(data)
		if err != nil {
			c.Deliver(protocol.NewError(protocol.CodeInvalidMessage, "frame could not be decoded"))
			continue
		}
		c.handle(msg)
	}
}

// writePump pumps frames from the send queue to the websocket connection.
// There is at most one writer per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.shutdown:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// cleanup runs exactly once, from the read pump's exit path: detach from
// the current engine, release registry bindings, clear presence.
func (c *Client) cleanup() {
	metrics.OpenConnections.Dec()

	if c.engine != nil {
		c.engine.Detach(c)
		c.engine = nil
	}
	if c.authed {
		c.deps.Registry.UnbindSocket(c.agentID, c)
		if c.deps.Presence != nil {
			ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
			if err := c.deps.Presence.SetAgentPresence(ctx, c.agentID, cache.PresenceState{
				Status:   "offline",
				LastSeen: time.Now(),
			}); err != nil {
				c.deps.Log.Debug(ctx, "failed to clear presence for %s: %v", c.agentID, err)
			}
			cancel()
		}
	}

	close(c.shutdown)
}

func (c *Client) handle(msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.Auth:
		c.handleAuth(m)
	case protocol.Join:
		c.handleJoin(m)
	case protocol.Leave:
		c.handleLeave()
	case protocol.Move:
		c.handleMove(m)
	case protocol.Chat:
		c.handleChat(m)
	case protocol.Ping:
		c.Deliver(protocol.NewPong())
	}
}

// handleAuth verifies the token. Failure leaves the connection state
// untouched; success records the identity, displaces any other socket
// holding the same agent id, and acknowledges with auth_ok.
func (c *Client) handleAuth(m protocol.Auth) {
	claims, err := c.deps.Tokens.ValidateToken(m.Token)
	if err != nil {
		metrics.AuthFailures.Inc()
		c.Deliver(protocol.NewAuthError("invalid or expired token"))
		return
	}

	// Re-auth under a different identity releases the old one, including
	// any room attachment made under it.
	if c.authed && c.agentID != claims.AgentID {
		if c.engine != nil {
			c.engine.Detach(c)
			c.engine = nil
		}
		c.deps.Registry.UnbindSocket(c.agentID, c)
	}

	c.authed = true
	c.agentID = claims.AgentID
	c.agentName = claims.Name
	c.bodyColor = claims.BodyColor

	if displaced := c.deps.Registry.BindSocket(c.agentID, c); displaced != nil {
		displaced.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()
	if c.deps.LastSeen != nil {
		c.deps.LastSeen.Queue(c.agentID)
	} else if err := c.deps.Store.TouchLastSeen(ctx, c.agentID); err != nil {
		c.deps.Log.Debug(ctx, "failed to touch last seen for %s: %v", c.agentID, err)
	}
	if c.deps.Presence != nil {
		if err := c.deps.Presence.SetAgentPresence(ctx, c.agentID, cache.PresenceState{
			Status:   "online",
			LastSeen: time.Now(),
		}); err != nil {
			c.deps.Log.Debug(ctx, "failed to set presence for %s: %v", c.agentID, err)
		}
	}

	c.Deliver(protocol.NewAuthOK(c.agentID, c.agentName, models.Avatar{
		ID:        c.agentID,
		AgentID:   c.agentID,
		BodyColor: c.bodyColor,
	}))
}

func (c *Client) handleJoin(m protocol.Join) {
	ctx, cancel := context.WithTimeout(context.Background(), storeCallTimeout)
	defer cancel()

	engine, err := c.deps.Registry.LoadByRef(ctx, m.RoomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			c.Deliver(protocol.NewError(protocol.CodeRoomNotFound, "room "+m.RoomID+" does not exist"))
		} else {
			c.deps.Log.Error(ctx, "failed to load room %q: %v", m.RoomID, err)
			c.Deliver(protocol.NewError(protocol.CodeInternalError, "room could not be loaded"))
		}
		return
	}

	// Switching rooms is atomic from the agent's point of view: detach
	// from the old engine, then attach to the new one.
	if c.engine != nil && c.engine != engine {
		c.engine.Detach(c)
		c.engine = nil
	}

	// The engine can stop between load and attach if its last occupant
	// leaves concurrently; reload once and retry.
	for attempt := 0; attempt < 2; attempt++ {
		if c.authed {
			err = engine.AttachParticipant(c, c.agentID, c.agentName, c.bodyColor)
		} else {
			err = engine.AttachSpectator(c)
		}
		if !errors.Is(err, ErrEngineStopped) {
			break
		}
		engine, err = c.deps.Registry.LoadByRef(ctx, m.RoomID)
		if err != nil {
			break
		}
	}
	if err != nil {
		c.deps.Log.Error(ctx, "failed to attach to room %q: %v", m.RoomID, err)
		c.Deliver(protocol.NewError(protocol.CodeInternalError, "room could not be joined"))
		return
	}
	c.engine = engine
}

func (c *Client) handleLeave() {
	if c.engine == nil {
		c.Deliver(protocol.NewError(protocol.CodeNotInRoom, "leave requires being in a room"))
		return
	}
	c.engine.Detach(c)
	c.engine = nil
}

func (c *Client) handleMove(m protocol.Move) {
	if !c.authed || c.engine == nil {
		c.Deliver(protocol.NewError(protocol.CodeNotInRoom, "move requires joining a room as a participant"))
		return
	}
	if !c.moveLimiter.Allow() {
		metrics.CommandsRateLimited.Inc()
		c.Deliver(protocol.NewError(protocol.CodeRateLimited, "too many move commands"))
		return
	}
	if err := c.engine.Move(c, m.X, m.Y); err != nil {
		c.engine = nil
		c.Deliver(protocol.NewError(protocol.CodeNotInRoom, "room is no longer loaded"))
	}
}

func (c *Client) handleChat(m protocol.Chat) {
	if !c.authed || c.engine == nil {
		c.Deliver(protocol.NewError(protocol.CodeNotInRoom, "chat requires joining a room as a participant"))
		return
	}
	if !c.chatLimiter.Allow() {
		metrics.CommandsRateLimited.Inc()
		c.Deliver(protocol.NewError(protocol.CodeRateLimited, "too many chat messages"))
		return
	}
	if err := c.engine.Chat(c, m.Message); err != nil {
		c.engine = nil
		c.Deliver(protocol.NewError(protocol.CodeNotInRoom, "room is no longer loaded"))
	}
}
