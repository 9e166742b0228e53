package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/lifecycle"
	"github.com/roadwatch/roadwatch/internal/logger"
	"github.com/roadwatch/roadwatch/internal/ports"
)

// Clock returns the current instant
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// CreateSignalementRequest represents the request to create a signalement
type CreateSignalementRequest struct {
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	Localisation string    `json:"localisation"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Date         time.Time `json:"date"`
	Surface      float64   `json:"surface"`
	Budget       float64   `json:"budget"`
	Entreprise   string    `json:"entreprise"`
}

// UpdateSignalementRequest carries the descriptive fields to change.
// Nil fields are left untouched; the status cannot be edited here.
type UpdateSignalementRequest struct {
	Type         *string    `json:"type,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Localisation *string    `json:"localisation,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Surface      *float64   `json:"surface,omitempty"`
	Budget       *float64   `json:"budget,omitempty"`
	Entreprise   *string    `json:"entreprise,omitempty"`
}

// ChangeStatusRequest appends a status event. At defaults to the current time.
type ChangeStatusRequest struct {
	Status string     `json:"status"`
	At     *time.Time `json:"at,omitempty"`
}

// SignalementView is a signalement with its projected status
type SignalementView struct {
	*domain.Signalement
	Status      domain.Status `json:"status"`
	StatusCode  string        `json:"status_code"`
	StatusLabel string        `json:"status_label"`
	StatusColor string        `json:"status_color"`
	Avancement  int           `json:"avancement"`
}

// SignalementDetail is a signalement with its full history and durations
type SignalementDetail struct {
	SignalementView
	History   []lifecycle.HistoryEntry  `json:"history"`
	Metrics   domain.TransitionMetric   `json:"metrics"`
	Display   lifecycle.DurationDisplay `json:"display"`
	Anomalies []domain.Anomaly          `json:"anomalies,omitempty"`
}

// ListSignalementsResponse represents a page of signalements
type ListSignalementsResponse struct {
	Signalements []*SignalementView `json:"signalements"`
	Total        int                `json:"total"`
	Limit        int                `json:"limit"`
	Offset       int                `json:"offset"`
}

// DashboardInvalidator is told about every catalogue change. Both
// *DashboardUseCase and a bare ports.ReportCache satisfy it.
type DashboardInvalidator interface {
	Invalidate(ctx context.Context) error
}

// SignalementUseCase handles the signalement catalogue and its status log
type SignalementUseCase struct {
	signalementRepo ports.SignalementRepository
	eventRepo       ports.StatusEventRepository
	dashboard       DashboardInvalidator
	logger          logger.Logger
	clock           Clock
}

// NewSignalementUseCase creates a new signalement use case.
// dashboard may be nil; when set, every change invalidates the dashboard.
func NewSignalementUseCase(
	signalementRepo ports.SignalementRepository,
	eventRepo ports.StatusEventRepository,
	dashboard DashboardInvalidator,
	log logger.Logger,
	clock Clock,
) *SignalementUseCase {
	if clock == nil {
		clock = systemClock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SignalementUseCase{
		signalementRepo: signalementRepo,
		eventRepo:       eventRepo,
		dashboard:       dashboard,
		logger:          log,
		clock:           clock,
	}
}

// CreateSignalement stores a new signalement and opens its history with a PENDING event
func (uc *SignalementUseCase) CreateSignalement(ctx context.Context, req CreateSignalementRequest) (*SignalementDetail, error) {
	s := domain.NewSignalement(req.Type, req.Description, req.Localisation, req.Latitude, req.Longitude,
		req.Date, req.Surface, req.Budget, req.Entreprise)
	now := uc.clock()
	s.CreatedAt, s.UpdatedAt = now, now

	if problems := s.Validate(); len(problems) > 0 {
		return nil, &domain.ValidationError{Problems: problems}
	}

	event := domain.NewStatusEvent(s.ID, domain.StatusPending, now)
	if err := uc.signalementRepo.Create(ctx, s, event); err != nil {
		return nil, fmt.Errorf("failed to create signalement: %w", err)
	}

	uc.logger.Info(ctx, "Signalement created", map[string]interface{}{
		"signalement_id": s.ID,
		"type":           s.Type,
		"entreprise":     s.Entreprise,
	})
	uc.invalidate(ctx)

	return uc.detail(s, []domain.RawStatusEvent{rawOf(event)})
}

// GetSignalement retrieves a signalement with its sorted history
func (uc *SignalementUseCase) GetSignalement(ctx context.Context, id string) (*SignalementDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrSignalementNotFound
	}

	s, err := uc.signalementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get signalement: %w", err)
	}

	raws, err := uc.eventRepo.ListByItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}

	return uc.detail(s, raws)
}

// GetHistory returns only the sorted history of a signalement
func (uc *SignalementUseCase) GetHistory(ctx context.Context, id string) ([]lifecycle.HistoryEntry, error) {
	d, err := uc.GetSignalement(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.History, nil
}

// ListSignalements retrieves a page of signalements with their current status
func (uc *SignalementUseCase) ListSignalements(ctx context.Context, filter domain.SignalementFilter) (*ListSignalementsResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, err := uc.signalementRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list signalements: %w", err)
	}

	total, err := uc.signalementRepo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count signalements: %w", err)
	}

	views, err := uc.views(ctx, items)
	if err != nil {
		return nil, err
	}

	return &ListSignalementsResponse{
		Signalements: views,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}, nil
}

// PublicMap returns every signalement with its current status for the visitor map
func (uc *SignalementUseCase) PublicMap(ctx context.Context) ([]*SignalementView, error) {
	items, err := uc.signalementRepo.List(ctx, domain.SignalementFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list signalements: %w", err)
	}
	return uc.views(ctx, items)
}

// UpdateSignalement edits the descriptive fields of a signalement
func (uc *SignalementUseCase) UpdateSignalement(ctx context.Context, id string, req UpdateSignalementRequest) (*SignalementDetail, error) {
	s, err := uc.signalementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get signalement: %w", err)
	}

	if req.Type != nil {
		s.Type = strings.TrimSpace(*req.Type)
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
	if req.Localisation != nil {
		s.Localisation = *req.Localisation
	}
	if req.Latitude != nil {
		s.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		s.Longitude = *req.Longitude
	}
	if req.Date != nil {
		s.Date = *req.Date
	}
	if req.Surface != nil {
		s.Surface = *req.Surface
	}
	if req.Budget != nil {
		s.Budget = *req.Budget
	}
	if req.Entreprise != nil {
		s.Entreprise = strings.TrimSpace(*req.Entreprise)
	}

	if problems := s.Validate(); len(problems) > 0 {
		return nil, &domain.ValidationError{Problems: problems}
	}
	s.UpdatedAt = uc.clock()

	if err := uc.signalementRepo.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to update signalement: %w", err)
	}
	uc.invalidate(ctx)

	raws, err := uc.eventRepo.ListByItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return uc.detail(s, raws)
}

// ChangeStatus appends a status event. Any status may follow any other.
func (uc *SignalementUseCase) ChangeStatus(ctx context.Context, id string, req ChangeStatusRequest) (*SignalementDetail, error) {
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("unknown status %q: %w", req.Status, err)
	}

	s, err := uc.signalementRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get signalement: %w", err)
	}

	at := uc.clock()
	if req.At != nil && !req.At.IsZero() {
		at = req.At.UTC()
	}

	if err := uc.eventRepo.Append(ctx, domain.NewStatusEvent(id, status, at)); err != nil {
		return nil, fmt.Errorf("failed to append status event: %w", err)
	}

	uc.logger.Info(ctx, "Signalement status changed", map[string]interface{}{
		"signalement_id": id,
		"status":         string(status),
		"at":             at.Format(time.RFC3339),
	})
	uc.invalidate(ctx)

	raws, err := uc.eventRepo.ListByItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return uc.detail(s, raws)
}

// DeleteSignalement removes a signalement and its history
func (uc *SignalementUseCase) DeleteSignalement(ctx context.Context, id string) error {
	if err := uc.signalementRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete signalement: %w", err)
	}

	uc.logger.Info(ctx, "Signalement deleted", map[string]interface{}{"signalement_id": id})
	uc.invalidate(ctx)
	return nil
}

// Statuses returns the status mapping table
func (uc *SignalementUseCase) Statuses() []domain.StatusInfo {
	return domain.StatusTable()
}

// Helper functions

func (uc *SignalementUseCase) views(ctx context.Context, items []*domain.Signalement) ([]*SignalementView, error) {
	views := make([]*SignalementView, 0, len(items))
	if len(items) == 0 {
		return views, nil
	}

	ids := make([]string, len(items))
	for i, s := range items {
		ids[i] = s.ID
	}

	raws, err := uc.eventRepo.ListByItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load status events: %w", err)
	}

	events, anomalies := lifecycle.Normalize(raws)
	uc.logAnomalies(ctx, anomalies)
	histories := lifecycle.GroupHistoryByItem(events)

	for _, s := range items {
		views = append(views, newView(s, lifecycle.CurrentStatus(histories[s.ID])))
	}
	return views, nil
}

func (uc *SignalementUseCase) detail(s *domain.Signalement, raws []domain.RawStatusEvent) (*SignalementDetail, error) {
	report, err := lifecycle.BuildReport(&lifecycle.Input{
		Events:        raws,
		ActiveItemIDs: []string{s.ID},
		Now:           uc.clock(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build signalement report: %w", err)
	}
	item, ok := report.Item(s.ID)
	if !ok {
		return nil, fmt.Errorf("signalement %s missing from its own report", s.ID)
	}

	return &SignalementDetail{
		SignalementView: *newView(s, item.Status),
		History:         item.History,
		Metrics:         item.Metrics,
		Display:         item.Display,
		Anomalies:       report.Anomalies,
	}, nil
}

func (uc *SignalementUseCase) invalidate(ctx context.Context) {
	if uc.dashboard == nil {
		return
	}
	if err := uc.dashboard.Invalidate(ctx); err != nil {
		uc.logger.Warn(ctx, "Failed to invalidate dashboard cache", map[string]interface{}{"error": err.Error()})
	}
}

func (uc *SignalementUseCase) logAnomalies(ctx context.Context, anomalies []domain.Anomaly) {
	for _, a := range anomalies {
		uc.logger.Warn(ctx, "Status event anomaly", map[string]interface{}{
			"kind":    string(a.Kind),
			"item_id": a.ItemID,
			"index":   a.Index,
			"detail":  a.Message,
		})
	}
}

func newView(s *domain.Signalement, status domain.Status) *SignalementView {
	info := status.Info()
	return &SignalementView{
		Signalement: s,
		Status:      info.Status,
		StatusCode:  info.Code,
		StatusLabel: info.Label,
		StatusColor: info.Color,
		Avancement:  info.Avancement,
	}
}

func rawOf(e *domain.StatusEvent) domain.RawStatusEvent {
	return domain.RawStatusEvent{ItemID: e.ItemID, Status: string(e.Status), Timestamp: e.Timestamp}
}
