package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("not-a-url")
	assert.Error(t, err)
}

func TestNewRejectsUnreachableServer(t *testing.T) {
	_, err := New("redis://127.0.0.1:1")
	assert.Error(t, err)
}

func TestPresenceRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	agentID := uuid.New()
	roomID := uuid.New()

	state := PresenceState{
		Status:      "online",
		LastSeen:    time.Now().UTC().Truncate(time.Second),
		CurrentRoom: roomID,
	}
	require.NoError(t, c.SetAgentPresence(ctx, agentID, state))

	got, err := c.GetAgentPresence(ctx, agentID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "online", got.Status)
	assert.True(t, got.LastSeen.Equal(state.LastSeen))
	assert.Equal(t, roomID, got.CurrentRoom)
}

func TestGetAgentPresenceMissing(t *testing.T) {
	c := newTestCache(t)
	got, err := c.GetAgentPresence(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteAgentPresence(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	agentID := uuid.New()

	require.NoError(t, c.SetAgentPresence(ctx, agentID, PresenceState{Status: "online", LastSeen: time.Now()}))
	require.NoError(t, c.DeleteAgentPresence(ctx, agentID))

	got, err := c.GetAgentPresence(ctx, agentID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPresenceOverwrite(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	agentID := uuid.New()

	require.NoError(t, c.SetAgentPresence(ctx, agentID, PresenceState{Status: "online", LastSeen: time.Now()}))
	require.NoError(t, c.SetAgentPresence(ctx, agentID, PresenceState{Status: "offline", LastSeen: time.Now()}))

	got, err := c.GetAgentPresence(ctx, agentID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "offline", got.Status)
}
