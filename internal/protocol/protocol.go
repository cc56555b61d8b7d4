// Package protocol defines the JSON wire format spoken over each websocket:
// a single object per frame carrying a "type" discriminator.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/plazahq/plaza-server/internal/grid"
	"github.com/plazahq/plaza-server/internal/models"
)

// Error codes carried on error frames.
const (
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeRoomNotFound   = "ROOM_NOT_FOUND"
	CodeNotInRoom      = "NOT_IN_ROOM"
	CodeInvalidMove    = "INVALID_MOVE"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
)

var (
	ErrMissingType = errors.New("frame has no string type field")
	ErrUnknownType = errors.New("unknown frame type")
)

// Inbound is the closed set of client → server frames.
type Inbound interface{ isInbound() }

type Auth struct {
	Token string `json:"token"`
}

// Join accepts a slug or a room id in RoomID.
type Join struct {
	RoomID string `json:"roomId"`
}

type Leave struct{}

type Move struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Chat struct {
	Message string `json:"message"`
}

type Ping struct{}

func (Auth) isInbound()  {}
func (Join) isInbound()  {}
func (Leave) isInbound() {}
func (Move) isInbound()  {}
func (Chat) isInbound()  {}
func (Ping) isInbound()  {}

type envelope struct {
	Type string `json:"type"`
}

// DecodeInbound parses one client frame. Unknown fields are tolerated for
// forward compatibility; an absent or non-string type yields ErrMissingType
// and an unrecognized type yields ErrUnknownType. Both map to
// INVALID_MESSAGE at the connection layer.
func DecodeInbound(data []byte) (Inbound, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	raw, ok := probe["type"]
	if !ok {
		return nil, ErrMissingType
	}
	var typ string
	if err := json.Unmarshal(raw, &typ); err != nil {
		return nil, ErrMissingType
	}

	switch typ {
	case "auth":
		var m Auth
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("malformed auth frame: %w", err)
		}
		return m, nil
	case "join":
		var m Join
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("malformed join frame: %w", err)
		}
		return m, nil
	case "leave":
		return Leave{}, nil
	case "move":
		var m Move
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("malformed move frame: %w", err)
		}
		return m, nil
	case "chat":
		var m Chat
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("malformed chat frame: %w", err)
		}
		return m, nil
	case "ping":
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

// Server → client frames. Timestamps serialize as RFC 3339 through
// time.Time's default JSON encoding.

type AuthOK struct {
	Type    string        `json:"type"`
	AgentID uuid.UUID     `json:"agentId"`
	Name    string        `json:"name"`
	Avatar  models.Avatar `json:"avatar"`
}

type AuthError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type RoomState struct {
	Type     string                `json:"type"`
	Room     *models.Room          `json:"room"`
	Agents   []models.Agent        `json:"agents"`
	Messages []*models.ChatMessage `json:"messages"`
}

type AgentJoined struct {
	Type  string       `json:"type"`
	Agent models.Agent `json:"agent"`
}

type AgentLeft struct {
	Type    string    `json:"type"`
	AgentID uuid.UUID `json:"agentId"`
}

// AgentMoved is a teleport/snap; ordinary walks use AgentPath.
type AgentMoved struct {
	Type    string    `json:"type"`
	AgentID uuid.UUID `json:"agentId"`
	X       int       `json:"x"`
	Y       int       `json:"y"`
}

type AgentPath struct {
	Type    string       `json:"type"`
	AgentID uuid.UUID    `json:"agentId"`
	Path    []grid.Point `json:"path"`
	Speed   float64      `json:"speed"` // tiles per second
}

type ChatBroadcast struct {
	Type string `json:"type"`
	*models.ChatMessage
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Pong struct {
	Type string `json:"type"`
}

func NewAuthOK(agentID uuid.UUID, name string, avatar models.Avatar) AuthOK {
	return AuthOK{Type: "auth_ok", AgentID: agentID, Name: name, Avatar: avatar}
}

func NewAuthError(reason string) AuthError {
	return AuthError{Type: "auth_error", Error: reason}
}

func NewRoomState(room *models.Room, agents []models.Agent, messages []*models.ChatMessage) RoomState {
	if agents == nil {
		agents = []models.Agent{}
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}
	return RoomState{Type: "room_state", Room: room, Agents: agents, Messages: messages}
}

func NewAgentJoined(agent models.Agent) AgentJoined {
	return AgentJoined{Type: "agent_joined", Agent: agent}
}

func NewAgentLeft(agentID uuid.UUID) AgentLeft {
	return AgentLeft{Type: "agent_left", AgentID: agentID}
}

func NewAgentMoved(agentID uuid.UUID, x, y int) AgentMoved {
	return AgentMoved{Type: "agent_moved", AgentID: agentID, X: x, Y: y}
}

func NewAgentPath(agentID uuid.UUID, path []grid.Point, speed float64) AgentPath {
	if path == nil {
		path = []grid.Point{}
	}
	return AgentPath{Type: "agent_path", AgentID: agentID, Path: path, Speed: speed}
}

func NewChatBroadcast(msg *models.ChatMessage) ChatBroadcast {
	return ChatBroadcast{Type: "chat_message", ChatMessage: msg}
}

func NewError(code, message string) ErrorEvent {
	return ErrorEvent{Type: "error", Code: code, Message: message}
}

func NewPong() Pong {
	return Pong{Type: "pong"}
}
