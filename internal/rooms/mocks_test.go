package rooms

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plazahq/plaza-server/internal/models"
)

// fakeStore is an in-memory Store for engine and registry tests.
type fakeStore struct {
	mu       sync.Mutex
	rooms    map[uuid.UUID]*models.Room
	users    map[uuid.UUID]*models.User
	messages map[uuid.UUID][]*models.ChatMessage
	nextID   int64

	insertErr error // when set, InsertMessage fails
	lastSeen  map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[uuid.UUID]*models.Room),
		users:    make(map[uuid.UUID]*models.User),
		messages: make(map[uuid.UUID][]*models.ChatMessage),
		lastSeen: make(map[uuid.UUID]int),
	}
}

func (s *fakeStore) addRoom(room *models.Room) *models.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	s.rooms[room.ID] = room
	return room
}

func openRoom(slug string, width, height int) *models.Room {
	tiles := make([][]int, height)
	for y := range tiles {
		tiles[y] = make([]int, width)
	}
	return &models.Room{
		Slug:     slug,
		Name:     strings.ToUpper(slug[:1]) + slug[1:],
		Width:    width,
		Height:   height,
		Tiles:    tiles,
		IsPublic: true,
	}
}

func (s *fakeStore) FindRoomByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID], nil
}

func (s *fakeStore) FindRoomBySlug(ctx context.Context, slug string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range s.rooms {
		if room.Slug == slug {
			return room, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListPublicRooms(ctx context.Context) ([]*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Room
	for _, room := range s.rooms {
		if room.IsPublic {
			out = append(out, room)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchPublicRooms(ctx context.Context, query string) ([]*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	var out []*models.Room
	for _, room := range s.rooms {
		if !room.IsPublic {
			continue
		}
		if strings.Contains(strings.ToLower(room.Name), q) ||
			strings.Contains(strings.ToLower(room.OwnerUsername), q) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateRoom(ctx context.Context, room *models.Room) error {
	s.addRoom(room)
	return nil
}

func (s *fakeStore) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[roomID]
	// Newest first, like the SQL query.
	var out []*models.ChatMessage
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *fakeStore) InsertMessage(ctx context.Context, roomID, agentID uuid.UUID, nameSnapshot, colorSnapshot, content string) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.nextID++
	msg := &models.ChatMessage{
		ID:           s.nextID,
		RoomID:       roomID,
		AgentID:      &agentID,
		AgentName:    nameSnapshot,
		AvatarConfig: models.AvatarConfig{BodyColor: colorSnapshot},
		Content:      content,
		CreatedAt:    time.Now(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	return msg, nil
}

func (s *fakeStore) TouchLastSeen(ctx context.Context, agentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[agentID]++
	return nil
}

func (s *fakeStore) FindUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[userID], nil
}

func (s *fakeStore) setInsertErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
}

func (s *fakeStore) messageCount(roomID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[roomID])
}

// fakeConn records frames delivered by an engine.
type fakeConn struct {
	mu     sync.Mutex
	frames []interface{}
	closed bool
	notify chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{notify: make(chan struct{}, 64)}
}

func (c *fakeConn) Deliver(frame interface{}) bool {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) frame(i int) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

// nextFrame blocks until a frame beyond index from is available.
func (c *fakeConn) nextFrame(from int) (interface{}, error) {
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.frames) > from {
			f := c.frames[from]
			c.mu.Unlock()
			return f, nil
		}
		c.mu.Unlock()
		select {
		case <-c.notify:
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for frame %d", from)
		}
	}
}
