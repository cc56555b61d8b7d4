package rooms

import (
	"context"

	"github.com/google/uuid"

	"github.com/plazahq/plaza-server/internal/cache"
	"github.com/plazahq/plaza-server/internal/models"
)

// Store is the persistence capability the presence core consumes. The
// production implementation is db.Database; tests substitute a fake.
type Store interface {
	FindRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
	FindRoomBySlug(ctx context.Context, slug string) (*models.Room, error)
	ListPublicRooms(ctx context.Context) ([]*models.Room, error)
	SearchPublicRooms(ctx context.Context, query string) ([]*models.Room, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*models.ChatMessage, error)
	InsertMessage(ctx context.Context, roomID, agentID uuid.UUID, nameSnapshot, colorSnapshot, content string) (*models.ChatMessage, error)
	TouchLastSeen(ctx context.Context, agentID uuid.UUID) error
	FindUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// PresenceService mirrors the presence operations of cache.Cache. Presence
// is best-effort; a nil service disables it.
type PresenceService interface {
	SetAgentPresence(ctx context.Context, agentID uuid.UUID, state cache.PresenceState) error
}

// LastSeenService queues last-seen touches for asynchronous batching.
type LastSeenService interface {
	Queue(agentID uuid.UUID)
}

// Conn is a socket attached to an engine: the engine's fan-out target.
// Deliver must never block; it reports false when the frame was dropped.
// Close is the displacement path — it tears the underlying socket down,
// which in turn triggers the connection handler's detach.
type Conn interface {
	Deliver(frame interface{}) bool
	Close()
}
