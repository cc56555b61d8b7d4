package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Only the fields the presence core
// reads are modelled here; registration and profile editing live behind the
// REST collaborator.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"last_seen"`
}

// Avatar is the visual configuration attached to an agent.
type Avatar struct {
	ID        uuid.UUID `json:"id"`
	AgentID   uuid.UUID `json:"agentId"`
	BodyColor string    `json:"bodyColor"` // 7-char hex, e.g. "#3B82F6"
}

// AvatarConfig is the snapshot of avatar state stored inline on a chat
// message. Snapshots are immutable once written.
type AvatarConfig struct {
	BodyColor string `json:"bodyColor"`
}

// Room is the persisted description of a room. Tiles is a H×W grid of
// 0 (walkable) / 1 (blocked), row-major.
type Room struct {
	ID            uuid.UUID  `json:"id"`
	Slug          string     `json:"slug"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	OwnerID       *uuid.UUID `json:"ownerId,omitempty"`
	OwnerUsername string     `json:"ownerUsername,omitempty"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	Tiles         [][]int    `json:"tiles"`
	IsPublic      bool       `json:"isPublic"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Agent is a participant currently attached to a room: an authenticated
// actor with a logical position on the tile grid.
type Agent struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Avatar Avatar    `json:"avatar"`
	X      int       `json:"x"`
	Y      int       `json:"y"`
}

// ChatMessage is a persisted chat line. AgentID is nil when the author
// account has since been deleted; name and avatar are point-in-time
// snapshots so history renders without joins.
type ChatMessage struct {
	ID           int64        `json:"id"`
	RoomID       uuid.UUID    `json:"roomId"`
	AgentID      *uuid.UUID   `json:"agentId"`
	AgentName    string       `json:"agentName"`
	AvatarConfig AvatarConfig `json:"avatarConfig"`
	Content      string       `json:"content"`
	CreatedAt    time.Time    `json:"timestamp"`
}
