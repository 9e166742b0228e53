package ports

import (
	"context"
	"errors"
	"time"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/lifecycle"
)

// ErrCacheMiss is returned by ReportCache.Get when nothing is cached
var ErrCacheMiss = errors.New("report cache miss")

// DashboardSnapshot is one published dashboard refresh
type DashboardSnapshot struct {
	Seq    uint64            `json:"seq"`
	Report *lifecycle.Report `json:"report"`
	Recap  domain.Recap      `json:"recap"`
	// Stale marks a refresh that finished after a newer one was published
	Stale bool `json:"stale"`
}

// ReportCache stores the last published dashboard snapshot
type ReportCache interface {
	// Get returns the cached snapshot or ErrCacheMiss
	Get(ctx context.Context) (*DashboardSnapshot, error)

	// Set stores the snapshot for ttl
	Set(ctx context.Context, snapshot *DashboardSnapshot, ttl time.Duration) error

	// Invalidate drops the cached snapshot
	Invalidate(ctx context.Context) error
}

// DashboardPublisher is told about every published dashboard snapshot
type DashboardPublisher interface {
	PublishDashboard(ctx context.Context, snapshot *DashboardSnapshot) error
}
