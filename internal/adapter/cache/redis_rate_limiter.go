package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/roadwatch/roadwatch/internal/ports"
)

// RedisRateLimiter is a fixed window counter shared by every server instance
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisRateLimiter allows limit requests per key and window
func NewRedisRateLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (ports.RateLimitDecision, error) {
	key = l.prefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return ports.RateLimitDecision{}, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	count := int(incr.Val())
	retryAfter := ttl.Val()
	// first hit of the window, or a counter left without expiry
	if count == 1 || retryAfter < 0 {
		if err := l.client.PExpire(ctx, key, l.window).Err(); err != nil {
			return ports.RateLimitDecision{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		retryAfter = l.window
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return ports.RateLimitDecision{
		Allowed:    count <= l.limit,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}
