package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plazahq/plaza-server/internal/models"
)

const roomColumns = `r.id, r.slug, r.name, r.description, r.owner_id, u.username,
	 r.width, r.height, r.tiles, r.is_public, r.created_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var (
		room          models.Room
		description   *string
		ownerUsername *string
		tilesJSON     []byte
	)
	err := row.Scan(&room.ID, &room.Slug, &room.Name, &description, &room.OwnerID, &ownerUsername,
		&room.Width, &room.Height, &tilesJSON, &room.IsPublic, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	if description != nil {
		room.Description = *description
	}
	if ownerUsername != nil {
		room.OwnerUsername = *ownerUsername
	}
	if len(tilesJSON) > 0 {
		if err := json.Unmarshal(tilesJSON, &room.Tiles); err != nil {
			return nil, fmt.Errorf("room %s has malformed tiles: %w", room.ID, err)
		}
	}
	return &room, nil
}

// FindRoomByID returns the room or nil when it does not exist.
func (db *Database) FindRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := scanRoom(db.QueryRow(ctx,
		`SELECT `+roomColumns+`
		 FROM rooms r LEFT JOIN users u ON u.id = r.owner_id
		 WHERE r.id = $1`,
		roomID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return room, err
}

// FindRoomBySlug returns the room or nil when it does not exist.
func (db *Database) FindRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	room, err := scanRoom(db.QueryRow(ctx,
		`SELECT `+roomColumns+`
		 FROM rooms r LEFT JOIN users u ON u.id = r.owner_id
		 WHERE r.slug = $1`,
		slug,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return room, err
}

// ListPublicRooms returns every public room, newest first.
func (db *Database) ListPublicRooms(ctx context.Context) ([]*models.Room, error) {
	rows, err := db.Query(ctx,
		`SELECT `+roomColumns+`
		 FROM rooms r LEFT JOIN users u ON u.id = r.owner_id
		 WHERE r.is_public = true
		 ORDER BY r.created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

// SearchPublicRooms matches query case-insensitively against room names and
// owner display names across all public rooms.
func (db *Database) SearchPublicRooms(ctx context.Context, query string) ([]*models.Room, error) {
	rows, err := db.Query(ctx,
		`SELECT `+roomColumns+`
		 FROM rooms r LEFT JOIN users u ON u.id = r.owner_id
		 WHERE r.is_public = true AND (r.name ILIKE '%' || $1 || '%' OR u.username ILIKE '%' || $1 || '%')
		 ORDER BY r.created_at DESC`,
		query,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	return result, rows.Err()
}

// CreateRoom persists a room record; used to bootstrap the canonical room.
func (db *Database) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	tilesJSON, err := json.Marshal(room.Tiles)
	if err != nil {
		return fmt.Errorf("failed to encode tiles: %w", err)
	}
	return db.QueryRow(ctx,
		`INSERT INTO rooms (id, slug, name, description, owner_id, width, height, tiles, is_public)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		room.ID, room.Slug, room.Name, room.Description, room.OwnerID,
		room.Width, room.Height, tilesJSON, room.IsPublic,
	).Scan(&room.CreatedAt)
}

// RecentMessages returns the most recent messages for a room, newest first.
func (db *Database) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	rows, err := db.Query(ctx,
		`SELECT id, room_id, agent_id, agent_name, body_color, content, created_at
		 FROM messages
		 WHERE room_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		roomID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.AgentID, &msg.AgentName,
			&msg.AvatarConfig.BodyColor, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// InsertMessage persists a chat message with its author snapshots and
// returns it with the assigned id and timestamp.
func (db *Database) InsertMessage(ctx context.Context, roomID, agentID uuid.UUID, nameSnapshot, colorSnapshot, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		RoomID:       roomID,
		AgentID:      &agentID,
		AgentName:    nameSnapshot,
		AvatarConfig: models.AvatarConfig{BodyColor: colorSnapshot},
		Content:      content,
	}
	err := db.QueryRow(ctx,
		`INSERT INTO messages (room_id, agent_id, agent_name, body_color, content)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		roomID, agentID, nameSnapshot, colorSnapshot, content,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// TouchLastSeen stamps an agent's last_seen.
func (db *Database) TouchLastSeen(ctx context.Context, agentID uuid.UUID) error {
	_, err := db.Exec(ctx,
		`UPDATE users SET last_seen = NOW() WHERE id = $1`,
		agentID,
	)
	return err
}

// TouchLastSeenBatch stamps last_seen for a set of agents in one statement.
func (db *Database) TouchLastSeenBatch(ctx context.Context, agentIDs []uuid.UUID) error {
	if len(agentIDs) == 0 {
		return nil
	}
	_, err := db.Exec(ctx,
		`UPDATE users SET last_seen = NOW() WHERE id = ANY($1)`,
		agentIDs,
	)
	return err
}

// FindUserByID returns the user or nil when it does not exist.
func (db *Database) FindUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	var lastSeen *time.Time
	err := db.QueryRow(ctx,
		`SELECT id, username, last_seen FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Username, &lastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lastSeen != nil {
		user.LastSeen = *lastSeen
	}
	return &user, nil
}
