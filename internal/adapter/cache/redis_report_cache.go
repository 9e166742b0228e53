package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/roadwatch/roadwatch/internal/ports"
)

// RedisReportCache stores the dashboard snapshot as one JSON value
type RedisReportCache struct {
	client redis.UniversalClient
	key    string
}

// NewRedisReportCache creates a Redis backed report cache
func NewRedisReportCache(client redis.UniversalClient, key string) *RedisReportCache {
	return &RedisReportCache{client: client, key: key}
}

// Get returns the cached snapshot or ports.ErrCacheMiss
func (c *RedisReportCache) Get(ctx context.Context) (*ports.DashboardSnapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read dashboard cache: %w", err)
	}

	var snapshot ports.DashboardSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard cache: %w", err)
	}
	return &snapshot, nil
}

// Set stores the snapshot for ttl. A zero ttl keeps it until invalidated.
func (c *RedisReportCache) Set(ctx context.Context, snapshot *ports.DashboardSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write dashboard cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot
func (c *RedisReportCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate dashboard cache: %w", err)
	}
	return nil
}
