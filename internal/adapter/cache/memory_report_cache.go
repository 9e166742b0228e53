package cache

import (
	"context"
	"sync"
	"time"

	"github.com/roadwatch/roadwatch/internal/ports"
)

// MemoryReportCache is the in-process cache used when Redis is disabled
type MemoryReportCache struct {
	mu        sync.RWMutex
	snapshot  *ports.DashboardSnapshot
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryReportCache creates an empty in-process cache. now may be nil.
func NewMemoryReportCache(now func() time.Time) *MemoryReportCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryReportCache{now: now}
}

func (c *MemoryReportCache) Get(ctx context.Context) (*ports.DashboardSnapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || (!c.expiresAt.IsZero() && !c.now().Before(c.expiresAt)) {
		return nil, ports.ErrCacheMiss
	}
	return c.snapshot, nil
}

func (c *MemoryReportCache) Set(ctx context.Context, snapshot *ports.DashboardSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = snapshot
	c.expiresAt = time.Time{}
	if ttl > 0 {
		c.expiresAt = c.now().Add(ttl)
	}
	return nil
}

func (c *MemoryReportCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = nil
	return nil
}
