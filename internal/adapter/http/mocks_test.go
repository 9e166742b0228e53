package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/lifecycle"
	"github.com/roadwatch/roadwatch/internal/ports"
	"github.com/roadwatch/roadwatch/internal/usecase"
)

// MockCatalogueService is a mock implementation of CatalogueService
type MockCatalogueService struct {
	mock.Mock
}

func (m *MockCatalogueService) CreateSignalement(ctx context.Context, req usecase.CreateSignalementRequest) (*usecase.SignalementDetail, error) {
	args := m.Called(ctx, req)
	detail, _ := args.Get(0).(*usecase.SignalementDetail)
	return detail, args.Error(1)
}

func (m *MockCatalogueService) GetSignalement(ctx context.Context, id string) (*usecase.SignalementDetail, error) {
	args := m.Called(ctx, id)
	detail, _ := args.Get(0).(*usecase.SignalementDetail)
	return detail, args.Error(1)
}

func (m *MockCatalogueService) GetHistory(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error) {
	args := m.Called(ctx, id)
	history, _ := args.Get(0).([]lifecycle.HistoryEntry)
	return history, args.Error(1)
}

func (m *MockCatalogueService) ListSignalements(ctx context.Context, filter domain.SignalementFilter) (*usecase.ListSignalementsResponse, error) {
	args := m.Called(ctx, filter)
	resp, _ := args.Get(0).(*usecase.ListSignalementsResponse)
	return resp, args.Error(1)
}

func (m *MockCatalogueService) UpdateSignalement(ctx context.Context, id string, req usecase.UpdateSignalementRequest) (*usecase.SignalementDetail, error) {
	args := m.Called(ctx, id, req)
	detail, _ := args.Get(0).(*usecase.SignalementDetail)
	return detail, args.Error(1)
}

func (m *MockCatalogueService) ChangeStatus(ctx context.Context, id string, req usecase.ChangeStatusRequest) (*usecase.SignalementDetail, error) {
	args := m.Called(ctx, id, req)
	detail, _ := args.Get(0).(*usecase.SignalementDetail)
	return detail, args.Error(1)
}

func (m *MockCatalogueService) DeleteSignalement(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogueService) Statuses() []domain.StatusInfo {
	return domain.StatusTable()
}

func (m *MockCatalogueService) PublicMap(ctx context.Context) ([]*usecase.SignalementView, error) {
	args := m.Called(ctx)
	views, _ := args.Get(0).([]*usecase.SignalementView)
	return views, args.Error(1)
}

// MockDashboardService is a mock implementation of DashboardService
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Latest(ctx context.Context) (*ports.DashboardSnapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*ports.DashboardSnapshot)
	return snap, args.Error(1)
}

func (m *MockDashboardService) Refresh(ctx context.Context) (*ports.DashboardSnapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*ports.DashboardSnapshot)
	return snap, args.Error(1)
}

func (m *MockDashboardService) Recap(ctx context.Context) (domain.Recap, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Recap), args.Error(1)
}

type stubVerifier struct {
	claims *ports.ManagerClaims
	err    error
	tokens []string
}

func (s *stubVerifier) Verify(token string) (*ports.ManagerClaims, error) {
	s.tokens = append(s.tokens, token)
	return s.claims, s.err
}

type stubLimiter struct {
	decision ports.RateLimitDecision
	err      error
	keys     []string
}

func (s *stubLimiter) Allow(ctx context.Context, key string) (ports.RateLimitDecision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

var testNow = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func testDetail(status domain.Status) *usecase.SignalementDetail {
	s := &domain.Signalement{
		ID:          "3f1c2a4e-1b7d-4c1a-9d55-2f9a6f0e8b11",
		Type:        "Nid de poule",
		Description: "Route RN7 km 12",
		Entreprise:  "RoadFix Mada",
		Surface:     12.5,
		Budget:      1500000,
	}
	return &usecase.SignalementDetail{
		SignalementView: usecase.SignalementView{
			Signalement: s,
			Status:      status,
			StatusCode:  status.Code(),
			StatusLabel: status.Label(),
			StatusColor: status.Color(),
			Avancement:  status.Avancement(),
		},
		History: []lifecycle.HistoryEntry{{Status: domain.StatusPending, Label: domain.StatusPending.Label(), Timestamp: testNow}},
	}
}
