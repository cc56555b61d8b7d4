// Package persistence holds asynchronous write-behind helpers in front of
// the database.
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plazahq/plaza-server/internal/db"
	"github.com/plazahq/plaza-server/internal/utils"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// LastSeenWriter coalesces last-seen touches into periodic batch updates.
// Auth handshakes are frequent and the column is advisory, so losing a
// touch on crash is acceptable.
type LastSeenWriter struct {
	db    *db.Database
	log   *utils.Logger
	queue chan uuid.UUID
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewLastSeenWriter creates a new writer; call Start to begin flushing.
func NewLastSeenWriter(database *db.Database, log *utils.Logger) *LastSeenWriter {
	return &LastSeenWriter{
		db:    database,
		log:   log,
		queue: make(chan uuid.UUID, queueSize),
		done:  make(chan struct{}),
	}
}

// Start begins the writer's batch loop.
func (w *LastSeenWriter) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop flushes pending touches and shuts the writer down.
func (w *LastSeenWriter) Stop() {
	close(w.done)
	w.wg.Wait()
}

// Queue records that an agent was just seen. Never blocks; a full queue
// drops the touch.
func (w *LastSeenWriter) Queue(agentID uuid.UUID) {
	select {
	case w.queue <- agentID:
	default:
	}
}

func (w *LastSeenWriter) loop(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[uuid.UUID]struct{}, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		ids := make([]uuid.UUID, 0, len(pending))
		for id := range pending {
			ids = append(ids, id)
		}
		fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.db.TouchLastSeenBatch(fctx, ids); err != nil {
			w.log.Error(fctx, "failed to flush %d last-seen touches: %v", len(ids), err)
		}
		cancel()
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case id := <-w.queue:
			pending[id] = struct{}{}
			if len(pending) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
