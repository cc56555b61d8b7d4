package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a token bucket over Redis, keyed by client IP.
// It guards the public discovery endpoints; websocket command ceilings are
// enforced per socket instead.
type RateLimiter struct {
	redisClient *redis.Client
	capacity    int64   // Maximum number of tokens the bucket can hold
	rate        float64 // Tokens added per second
}

// NewRateLimiter creates a new RateLimiter instance.
func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		capacity:    10,
		rate:        5.0,
	}
}

// Middleware applies rate limiting to HTTP requests. With no redis client
// the limiter is a no-op.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if rl.redisClient == nil {
			next.ServeHTTP(w, req)
			return
		}
		host, _, err := net.SplitHostPort(req.RemoteAddr)
		if err != nil {
			host = req.RemoteAddr
		}
		if !rl.Allow(req.Context(), host) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// Allow checks if a request is allowed for a given key.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	bucket := fmt.Sprintf("rate_limit:%s", key)

	val, err := rl.redisClient.HMGet(ctx, bucket, "tokens", "last_refill").Result()
	if err != nil {
		// Redis trouble never blocks traffic.
		return true
	}

	currentTokens := rl.capacity
	lastRefillTime := time.Now()

	if val[0] != nil && val[1] != nil {
		if t, err := strconv.ParseFloat(val[0].(string), 64); err == nil {
			currentTokens = int64(t)
		}
		if t, err := time.Parse(time.RFC3339Nano, val[1].(string)); err == nil {
			lastRefillTime = t
		}
	}

	now := time.Now()
	diff := now.Sub(lastRefillTime).Seconds()
	tokensToAdd := int64(diff * rl.rate)
	currentTokens = int64(math.Min(float64(rl.capacity), float64(currentTokens+tokensToAdd)))
	lastRefillTime = now

	if currentTokens >= 1 {
		currentTokens--
		if _, err := rl.redisClient.HMSet(ctx, bucket, "tokens", currentTokens, "last_refill", lastRefillTime.Format(time.RFC3339Nano)).Result(); err != nil {
			return true
		}
		return true
	}

	return false
}
