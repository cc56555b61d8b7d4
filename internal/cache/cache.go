package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var redisLatency metric.Float64Histogram

// PresenceState records an agent's liveness and current room.
type PresenceState struct {
	Status      string    `json:"status"` // online, offline
	LastSeen    time.Time `json:"last_seen"`
	CurrentRoom uuid.UUID `json:"current_room,omitempty"`
}

type Cache struct {
	client *redis.Client
}

// New creates a new Redis cache connection
func New(dsn string) (*Cache, error) {
	var err error

	meter := otel.Meter("redis-client")
	redisLatency, err = meter.Float64Histogram("redis.command.latency", metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis.command.latency instrument: %w", err)
	}

	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, span := otel.Tracer("redis-client").Start(context.Background(), "redis.ping")
	defer span.End()
	if err := client.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to ping Redis")
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	span.SetStatus(codes.Ok, "Redis connected successfully")

	return &Cache{client: client}, nil
}

// GetClient returns the underlying Redis client. Direct access bypasses
// tracing and metrics.
func (c *Cache) GetClient() *redis.Client {
	return c.client
}

// Close closes the Redis client
func (c *Cache) Close() error {
	return c.client.Close()
}

// SetAgentPresence records an agent's presence state.
func (c *Cache) SetAgentPresence(ctx context.Context, agentID uuid.UUID, state PresenceState) error {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.set_agent_presence", trace.WithAttributes(attribute.String("agent.id", agentID.String())))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "set_agent_presence")))
		span.End()
	}()

	key := fmt.Sprintf("presence:%s", agentID.String())
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to marshal presence state")
		return fmt.Errorf("failed to marshal presence state: %w", err)
	}
	err = c.client.Set(ctx, key, data, 0).Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to set agent presence")
	}
	return err
}

// GetAgentPresence returns an agent's presence state, or nil when absent.
func (c *Cache) GetAgentPresence(ctx context.Context, agentID uuid.UUID) (*PresenceState, error) {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.get_agent_presence", trace.WithAttributes(attribute.String("agent.id", agentID.String())))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "get_agent_presence")))
		span.End()
	}()

	key := fmt.Sprintf("presence:%s", agentID.String())
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		span.SetStatus(codes.Ok, "Agent not found in presence cache")
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to get agent presence")
		return nil, fmt.Errorf("failed to get agent presence: %w", err)
	}

	var state PresenceState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to unmarshal presence state")
		return nil, fmt.Errorf("failed to unmarshal presence state: %w", err)
	}
	span.SetStatus(codes.Ok, "Agent presence retrieved")
	return &state, nil
}

// DeleteAgentPresence clears an agent's presence entry.
func (c *Cache) DeleteAgentPresence(ctx context.Context, agentID uuid.UUID) error {
	start := time.Now()
	ctx, span := otel.Tracer("redis-client").Start(ctx, "redis.delete_agent_presence", trace.WithAttributes(attribute.String("agent.id", agentID.String())))
	defer func() {
		redisLatency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attribute.String("redis.command", "delete_agent_presence")))
		span.End()
	}()

	key := fmt.Sprintf("presence:%s", agentID.String())
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete agent presence")
	}
	return err
}
