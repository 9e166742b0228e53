package ports

import (
	"context"

	"github.com/roadwatch/roadwatch/internal/domain"
)

// SignalementRepository defines the interface for signalement persistence
type SignalementRepository interface {
	// Create saves a new signalement together with its opening status event,
	// atomically. opening may be nil.
	Create(ctx context.Context, s *domain.Signalement, opening *domain.StatusEvent) error

	// FindByID retrieves a signalement by its ID
	FindByID(ctx context.Context, id string) (*domain.Signalement, error)

	// Update updates the descriptive fields of an existing signalement
	Update(ctx context.Context, s *domain.Signalement) error

	// List retrieves signalements based on filter criteria
	List(ctx context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, error)

	// Delete removes a signalement and its status events
	Delete(ctx context.Context, id string) error

	// Count returns the number of signalements matching the filter
	Count(ctx context.Context, filter domain.SignalementFilter) (int, error)

	// ListActiveIDs returns the id of every stored signalement
	ListActiveIDs(ctx context.Context) ([]string, error)

	// Totals returns the count, surface and budget summed over the catalogue
	Totals(ctx context.Context) (domain.CatalogueTotals, error)
}

// StatusEventRepository defines the interface for the append-only status log
type StatusEventRepository interface {
	// Append stores a new status event
	Append(ctx context.Context, event *domain.StatusEvent) error

	// ListAll returns every stored event as a raw record, unordered
	ListAll(ctx context.Context) ([]domain.RawStatusEvent, error)

	// ListByItem returns the raw records of one signalement
	ListByItem(ctx context.Context, itemID string) ([]domain.RawStatusEvent, error)

	// ListByItems returns the raw records of several signalements
	ListByItems(ctx context.Context, itemIDs []string) ([]domain.RawStatusEvent, error)
}
