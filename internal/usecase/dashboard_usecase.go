package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/lifecycle"
	"github.com/roadwatch/roadwatch/internal/logger"
	"github.com/roadwatch/roadwatch/internal/ports"
)

// DashboardConfig tunes the dashboard use case
type DashboardConfig struct {
	CacheTTL       time.Duration
	RefreshTimeout time.Duration
}

// DashboardUseCase builds the manager dashboard and the public recap from the
// status log. Refreshes may overlap; only the most recently started one that
// completes is published.
type DashboardUseCase struct {
	signalementRepo ports.SignalementRepository
	eventRepo       ports.StatusEventRepository
	cache           ports.ReportCache
	publisher       ports.DashboardPublisher
	logger          logger.Logger
	clock           Clock
	config          DashboardConfig

	seq atomic.Uint64

	mu        sync.Mutex
	published *ports.DashboardSnapshot
	// generation counts catalogue changes; a refresh that started before the
	// latest change is never cached nor announced
	generation uint64
}

// NewDashboardUseCase creates a new dashboard use case. cache and publisher may be nil.
func NewDashboardUseCase(
	signalementRepo ports.SignalementRepository,
	eventRepo ports.StatusEventRepository,
	cache ports.ReportCache,
	publisher ports.DashboardPublisher,
	log logger.Logger,
	clock Clock,
	config DashboardConfig,
) *DashboardUseCase {
	if clock == nil {
		clock = systemClock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DashboardUseCase{
		signalementRepo: signalementRepo,
		eventRepo:       eventRepo,
		cache:           cache,
		publisher:       publisher,
		logger:          log.WithFields(map[string]interface{}{"component": "dashboard"}),
		clock:           clock,
		config:          config,
	}
}

// Refresh reloads the status log and the catalogue and recomputes every
// statistic. A refresh that completes after a newer one was published is
// returned with Stale set and is not published.
func (uc *DashboardUseCase) Refresh(ctx context.Context) (*ports.DashboardSnapshot, error) {
	seq := uc.seq.Add(1)
	start := time.Now()

	uc.mu.Lock()
	generation := uc.generation
	uc.mu.Unlock()

	if uc.config.RefreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.config.RefreshTimeout)
		defer cancel()
	}

	var (
		raws   []domain.RawStatusEvent
		ids    []string
		totals domain.CatalogueTotals
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if raws, err = uc.eventRepo.ListAll(gctx); err != nil {
			return fmt.Errorf("failed to load status events: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if ids, err = uc.signalementRepo.ListActiveIDs(gctx); err != nil {
			return fmt.Errorf("failed to load signalement ids: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if totals, err = uc.signalementRepo.Totals(gctx); err != nil {
			return fmt.Errorf("failed to load catalogue totals: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		uc.logger.Error(ctx, "Dashboard refresh failed", err, map[string]interface{}{"seq": seq})
		return nil, err
	}

	report, err := lifecycle.BuildReport(&lifecycle.Input{
		Events:        raws,
		ActiveItemIDs: ids,
		Now:           uc.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	for _, a := range report.Anomalies {
		uc.logger.Warn(ctx, "Status log anomaly", map[string]interface{}{
			"kind":    string(a.Kind),
			"item_id": a.ItemID,
			"field":   a.Field,
			"index":   a.Index,
			"detail":  a.Message,
		})
	}

	snapshot := &ports.DashboardSnapshot{
		Seq:    seq,
		Report: report,
		Recap:  lifecycle.Summarize(report, totals),
	}
	uc.publish(ctx, snapshot, generation)

	logger.LogPerformance(ctx, uc.logger, "dashboard refresh", time.Since(start), map[string]interface{}{
		"seq":       seq,
		"items":     len(report.Items),
		"anomalies": len(report.Anomalies),
		"stale":     snapshot.Stale,
	})
	return snapshot, nil
}

// publish installs snapshot unless a newer refresh got there first or the
// catalogue changed after it started reading.
// Cache writes and notifications happen under the lock so they follow seq order.
func (uc *DashboardUseCase) publish(ctx context.Context, snapshot *ports.DashboardSnapshot, generation uint64) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if generation != uc.generation {
		snapshot.Stale = true
		uc.logger.Debug(ctx, "Dropping dashboard computed before a catalogue change", map[string]interface{}{"seq": snapshot.Seq})
		return
	}
	if uc.published != nil && uc.published.Seq >= snapshot.Seq {
		snapshot.Stale = true
		return
	}
	uc.published = snapshot

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, snapshot, uc.config.CacheTTL); err != nil {
			uc.logger.Warn(ctx, "Failed to cache dashboard", map[string]interface{}{"error": err.Error(), "seq": snapshot.Seq})
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishDashboard(ctx, snapshot); err != nil {
			uc.logger.Warn(ctx, "Failed to notify dashboard subscribers", map[string]interface{}{"error": err.Error(), "seq": snapshot.Seq})
		}
	}
}

// Invalidate records a catalogue change and drops the cached dashboard.
// Refreshes already in flight will not publish their result.
func (uc *DashboardUseCase) Invalidate(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	uc.generation++
	if uc.cache == nil {
		return nil
	}
	return uc.cache.Invalidate(ctx)
}

// Latest returns the cached snapshot, refreshing when the cache is empty.
// Without a cache every call refreshes.
func (uc *DashboardUseCase) Latest(ctx context.Context) (*ports.DashboardSnapshot, error) {
	if uc.cache != nil {
		snapshot, err := uc.cache.Get(ctx)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, ports.ErrCacheMiss) {
			uc.logger.Warn(ctx, "Dashboard cache unavailable", map[string]interface{}{"error": err.Error()})
		}
	}
	return uc.Refresh(ctx)
}

// Published returns the last snapshot published by this process, if any
func (uc *DashboardUseCase) Published() *ports.DashboardSnapshot {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.published
}

// Recap returns the public recap of the latest snapshot
func (uc *DashboardUseCase) Recap(ctx context.Context) (domain.Recap, error) {
	snapshot, err := uc.Latest(ctx)
	if err != nil {
		return domain.Recap{}, err
	}
	return snapshot.Recap, nil
}
