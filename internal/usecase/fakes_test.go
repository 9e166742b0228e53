package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/ports"
)

type memorySignalementRepo struct {
	mu    sync.Mutex
	items map[string]*domain.Signalement
	err   error
	// events receives opening events; a failing append leaves nothing stored
	events *memoryEventRepo
}

func newMemorySignalementRepo() *memorySignalementRepo {
	return &memorySignalementRepo{items: make(map[string]*domain.Signalement)}
}

func (m *memorySignalementRepo) Create(ctx context.Context, s *domain.Signalement, opening *domain.StatusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if opening != nil && m.events != nil {
		if err := m.events.Append(ctx, opening); err != nil {
			return err
		}
	}
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *memorySignalementRepo) FindByID(ctx context.Context, id string) (*domain.Signalement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return nil, domain.ErrSignalementNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memorySignalementRepo) Update(ctx context.Context, s *domain.Signalement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[s.ID]; !ok {
		return domain.ErrSignalementNotFound
	}
	cp := *s
	m.items[s.ID] = &cp
	return nil
}

func (m *memorySignalementRepo) sorted(filter domain.SignalementFilter) []*domain.Signalement {
	var out []*domain.Signalement
	for _, s := range m.items {
		if filter.Entreprise != nil && s.Entreprise != *filter.Entreprise {
			continue
		}
		if filter.Type != nil && s.Type != *filter.Type {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memorySignalementRepo) List(ctx context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := m.sorted(filter)
	if filter.Offset > len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memorySignalementRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrSignalementNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memorySignalementRepo) Count(ctx context.Context, filter domain.SignalementFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sorted(filter)), nil
}

func (m *memorySignalementRepo) ListActiveIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var ids []string
	for id := range m.items {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memorySignalementRepo) Totals(ctx context.Context) (domain.CatalogueTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t domain.CatalogueTotals
	for _, s := range m.items {
		t.Count++
		t.Surface += s.Surface
		t.Budget += s.Budget
	}
	return t, nil
}

type memoryEventRepo struct {
	mu     sync.Mutex
	events []domain.RawStatusEvent
	// gates, when set, is consumed by ListAll calls in order; each call waits on its gate
	gates []chan struct{}
	calls int
	// appendErr makes every Append fail
	appendErr error
}

func (m *memoryEventRepo) Append(ctx context.Context, e *domain.StatusEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.events = append(m.events, domain.RawStatusEvent{ItemID: e.ItemID, Status: string(e.Status), Timestamp: e.Timestamp})
	return nil
}

func (m *memoryEventRepo) add(raws ...domain.RawStatusEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, raws...)
}

func (m *memoryEventRepo) snapshot() []domain.RawStatusEvent {
	out := make([]domain.RawStatusEvent, len(m.events))
	copy(out, m.events)
	return out
}

func (m *memoryEventRepo) ListAll(ctx context.Context) ([]domain.RawStatusEvent, error) {
	m.mu.Lock()
	var gate chan struct{}
	if m.calls < len(m.gates) {
		gate = m.gates[m.calls]
	}
	m.calls++
	out := m.snapshot()
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (m *memoryEventRepo) ListByItem(ctx context.Context, itemID string) ([]domain.RawStatusEvent, error) {
	return m.ListByItems(ctx, []string{itemID})
}

func (m *memoryEventRepo) ListByItems(ctx context.Context, itemIDs []string) ([]domain.RawStatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		want[id] = true
	}
	var out []domain.RawStatusEvent
	for _, e := range m.events {
		if want[e.ItemID] {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockReportCache struct {
	mock.Mock
}

func (m *mockReportCache) Get(ctx context.Context) (*ports.DashboardSnapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*ports.DashboardSnapshot)
	return snap, args.Error(1)
}

func (m *mockReportCache) Set(ctx context.Context, snapshot *ports.DashboardSnapshot, ttl time.Duration) error {
	args := m.Called(ctx, snapshot, ttl)
	return args.Error(0)
}

func (m *mockReportCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []*ports.DashboardSnapshot
	err       error
}

func (p *recordingPublisher) PublishDashboard(ctx context.Context, snapshot *ports.DashboardSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, snapshot)
	return p.err
}

func (p *recordingPublisher) seqs() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint64, 0, len(p.snapshots))
	for _, s := range p.snapshots {
		out = append(out, s.Seq)
	}
	return out
}

type memoryReportCache struct {
	mu       sync.Mutex
	snapshot *ports.DashboardSnapshot
}

func (c *memoryReportCache) Get(ctx context.Context) (*ports.DashboardSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return nil, ports.ErrCacheMiss
	}
	return c.snapshot, nil
}

func (c *memoryReportCache) Set(ctx context.Context, snapshot *ports.DashboardSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = snapshot
	return nil
}

func (c *memoryReportCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
	return nil
}
