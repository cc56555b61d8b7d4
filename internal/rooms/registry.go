package rooms

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/plazahq/plaza-server/internal/models"
	"github.com/plazahq/plaza-server/internal/utils"
)

// ErrRoomNotFound is returned when a join names a room that exists neither
// in memory nor in the store.
var ErrRoomNotFound = fmt.Errorf("room not found")

// RegistryOptions carries the per-room tunables handed to every engine.
type RegistryOptions struct {
	WalkSpeed     float64
	HistoryLimit  int
	MessageMaxLen int
	CanonicalSlug string
}

// Registry is the process-wide map from room id to engine. It loads rooms
// lazily on first attach, unloads them when the last socket detaches, and
// answers the discovery queries. All methods are safe for concurrent use
// from any connection handler.
type Registry struct {
	store Store
	log   *utils.Logger

	walkSpeed     float64
	historyLimit  int
	messageMaxLen int
	canonicalSlug string

	mu         sync.RWMutex
	engines    map[uuid.UUID]*Engine
	slugs      map[string]uuid.UUID
	agentRooms map[uuid.UUID]uuid.UUID // participant id -> room id
	agentSocks map[uuid.UUID]Conn      // participant id -> owning socket
}

// NewRegistry creates an empty registry.
func NewRegistry(store Store, log *utils.Logger, opts RegistryOptions) *Registry {
	if opts.WalkSpeed <= 0 {
		opts.WalkSpeed = 4
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.MessageMaxLen <= 0 {
		opts.MessageMaxLen = 500
	}
	if opts.CanonicalSlug == "" {
		opts.CanonicalSlug = "lobby"
	}
	return &Registry{
		store:         store,
		log:           log,
		walkSpeed:     opts.WalkSpeed,
		historyLimit:  opts.HistoryLimit,
		messageMaxLen: opts.MessageMaxLen,
		canonicalSlug: opts.CanonicalSlug,
		engines:       make(map[uuid.UUID]*Engine),
		slugs:         make(map[string]uuid.UUID),
		agentRooms:    make(map[uuid.UUID]uuid.UUID),
		agentSocks:    make(map[uuid.UUID]Conn),
	}
}

// EnsureCanonical guarantees the canonical room exists in the store,
// creating a default all-walkable map when missing. Called once at startup
// before connections are accepted.
func (r *Registry) EnsureCanonical(ctx context.Context) error {
	room, err := r.store.FindRoomBySlug(ctx, r.canonicalSlug)
	if err != nil {
		return fmt.Errorf("failed to look up canonical room: %w", err)
	}
	if room != nil {
		return nil
	}

	const size = 14
	tiles := make([][]int, size)
	for y := range tiles {
		tiles[y] = make([]int, size)
	}
	room = &models.Room{
		Slug:     r.canonicalSlug,
		Name:     "Lobby",
		Width:    size,
		Height:   size,
		Tiles:    tiles,
		IsPublic: true,
	}
	if err := r.store.CreateRoom(ctx, room); err != nil {
		return fmt.Errorf("failed to create canonical room: %w", err)
	}
	r.log.Info(ctx, "created canonical room %q (%s)", r.canonicalSlug, room.ID)
	return nil
}

// LoadByRef resolves a join target that may be a room id or a slug.
func (r *Registry) LoadByRef(ctx context.Context, ref string) (*Engine, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return r.LoadByID(ctx, id)
	}
	return r.LoadBySlug(ctx, ref)
}

// LoadByID returns the engine for a room, loading it when necessary.
func (r *Registry) LoadByID(ctx context.Context, roomID uuid.UUID) (*Engine, error) {
	r.mu.RLock()
	if e, ok := r.engines[roomID]; ok {
		r.mu.RUnlock()
		return e, nil
	}
	r.mu.RUnlock()

	room, err := r.store.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return r.install(ctx, room)
}

// LoadBySlug returns the engine for a room addressed by slug.
func (r *Registry) LoadBySlug(ctx context.Context, slug string) (*Engine, error) {
	r.mu.RLock()
	if id, ok := r.slugs[slug]; ok {
		if e, ok := r.engines[id]; ok {
			r.mu.RUnlock()
			return e, nil
		}
	}
	r.mu.RUnlock()

	room, err := r.store.FindRoomBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load room %q: %w", slug, err)
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return r.install(ctx, room)
}

// install rehydrates history and inserts a fresh engine, unless a
// concurrent loader won the race.
func (r *Registry) install(ctx context.Context, room *models.Room) (*Engine, error) {
	recent, err := r.store.RecentMessages(ctx, room.ID, r.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for room %s: %w", room.ID, err)
	}
	// Newest-first from the store, chronological in memory.
	history := make([]*models.ChatMessage, len(recent))
	for i, m := range recent {
		history[len(recent)-1-i] = m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[room.ID]; ok {
		return e, nil
	}
	e := newEngine(room, r, r.store, r.log, history)
	r.engines[room.ID] = e
	r.slugs[room.Slug] = room.ID
	go e.run()
	return e, nil
}

// onEngineEmpty is called by an engine when its last socket detaches. The
// canonical room stays resident; anything else is unloaded unless a late
// command or attach slipped in.
func (r *Registry) onEngineEmpty(e *Engine) {
	if e.Slug() == r.canonicalSlug {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.participantCount.Load() != 0 || e.spectatorCount.Load() != 0 {
		return
	}
	if len(e.commands) != 0 {
		return
	}
	delete(r.engines, e.room.ID)
	delete(r.slugs, e.room.Slug)
	e.stop()
}

// BindSocket records conn as the owner of an agent id and returns the
// displaced previous socket, if any. A participant id is owned by at most
// one socket; the caller closes the loser.
func (r *Registry) BindSocket(agentID uuid.UUID, conn Conn) Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.agentSocks[agentID]
	if prev == conn {
		return nil
	}
	r.agentSocks[agentID] = conn
	return prev
}

// UnbindSocket releases the agent id if conn still owns it.
func (r *Registry) UnbindSocket(agentID uuid.UUID, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.agentSocks[agentID] == conn {
		delete(r.agentSocks, agentID)
	}
}

func (r *Registry) bindAgentRoom(agentID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agentRooms[agentID] = roomID
}

func (r *Registry) unbindAgentRoom(agentID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.agentRooms[agentID] == roomID {
		delete(r.agentRooms, agentID)
	}
}

// AgentRoom reports which room a participant is currently attached to.
func (r *Registry) AgentRoom(agentID uuid.UUID) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.agentRooms[agentID]
	return id, ok
}

// Stop tears down every engine. Used during graceful shutdown.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.engines {
		e.stop()
		delete(r.engines, id)
		delete(r.slugs, e.room.Slug)
	}
}

// RoomSummary is a discovery result: room description plus live counts.
type RoomSummary struct {
	ID           uuid.UUID `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Participants int       `json:"participants"`
	Spectators   int       `json:"spectators"`
}

func summarize(e *Engine) RoomSummary {
	return RoomSummary{
		ID:           e.room.ID,
		Slug:         e.room.Slug,
		Name:         e.room.Name,
		Description:  e.room.Description,
		Participants: e.Participants(),
		Spectators:   e.Spectators(),
	}
}

// ActiveRooms lists the canonical room plus every loaded room with at least
// one participant. When the canonical room is not loaded a zero-count entry
// is synthesized from the store. The canonical room leads when empty; the
// rest sort by participant count descending.
func (r *Registry) ActiveRooms(ctx context.Context) ([]RoomSummary, error) {
	r.mu.RLock()
	var out []RoomSummary
	canonicalSeen := false
	for _, e := range r.engines {
		if e.Slug() == r.canonicalSlug {
			canonicalSeen = true
			out = append(out, summarize(e))
			continue
		}
		if e.Participants() > 0 {
			out = append(out, summarize(e))
		}
	}
	r.mu.RUnlock()

	if !canonicalSeen {
		room, err := r.store.FindRoomBySlug(ctx, r.canonicalSlug)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve canonical room: %w", err)
		}
		if room != nil {
			out = append(out, RoomSummary{
				ID:          room.ID,
				Slug:        room.Slug,
				Name:        room.Name,
				Description: room.Description,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		iCanonicalEmpty := out[i].Slug == r.canonicalSlug && out[i].Participants == 0
		jCanonicalEmpty := out[j].Slug == r.canonicalSlug && out[j].Participants == 0
		if iCanonicalEmpty != jCanonicalEmpty {
			return iCanonicalEmpty
		}
		return out[i].Participants > out[j].Participants
	})
	return out, nil
}

// MostWatchedRooms lists loaded rooms with spectators, most watched first.
func (r *Registry) MostWatchedRooms() []RoomSummary {
	r.mu.RLock()
	var out []RoomSummary
	for _, e := range r.engines {
		if e.Spectators() > 0 {
			out = append(out, summarize(e))
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Spectators > out[j].Spectators
	})
	return out
}

// Search matches the query case-insensitively against public room names and
// owner display names, decorating hits with live counts for loaded rooms.
func (r *Registry) Search(ctx context.Context, query string) ([]RoomSummary, error) {
	rooms, err := r.store.SearchPublicRooms(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("room search failed: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[uuid.UUID]bool, len(rooms))
	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		if seen[room.ID] {
			continue
		}
		seen[room.ID] = true
		s := RoomSummary{
			ID:          room.ID,
			Slug:        room.Slug,
			Name:        room.Name,
			Description: room.Description,
		}
		if e, ok := r.engines[room.ID]; ok {
			s.Participants = e.Participants()
			s.Spectators = e.Spectators()
		}
		out = append(out, s)
	}
	return out, nil
}
