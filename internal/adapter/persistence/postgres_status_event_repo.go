package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/ports"
)

const insertStatusEventQuery = `
	INSERT INTO status_events (id, signalement_id, status, occurred_at)
	VALUES ($1, $2, $3, $4)
`

// PostgresStatusEventRepository implements StatusEventRepository using PostgreSQL.
// Events are stored with their wire code (en_attente, en_cours...) and read back
// as raw records; validation happens in the lifecycle engine.
type PostgresStatusEventRepository struct {
	db *sql.DB
}

// NewPostgresStatusEventRepository creates a new PostgreSQL status event repository
func NewPostgresStatusEventRepository(db *sql.DB) ports.StatusEventRepository {
	return &PostgresStatusEventRepository{db: db}
}

// Append stores a new status event
func (r *PostgresStatusEventRepository) Append(ctx context.Context, e *domain.StatusEvent) error {
	if !isUUID(e.ItemID) {
		return domain.ErrSignalementNotFound
	}

	_, err := r.db.ExecContext(ctx, insertStatusEventQuery, e.ID, e.ItemID, e.Status.Code(), e.Timestamp)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return domain.ErrSignalementNotFound
		}
		return fmt.Errorf("failed to append status event: %w", err)
	}

	return nil
}

// ListAll returns every stored event
func (r *PostgresStatusEventRepository) ListAll(ctx context.Context) ([]domain.RawStatusEvent, error) {
	return r.query(ctx, `SELECT signalement_id, status, occurred_at FROM status_events ORDER BY seq`)
}

// ListByItem returns the events of one signalement
func (r *PostgresStatusEventRepository) ListByItem(ctx context.Context, itemID string) ([]domain.RawStatusEvent, error) {
	if !isUUID(itemID) {
		return []domain.RawStatusEvent{}, nil
	}
	return r.query(ctx, `SELECT signalement_id, status, occurred_at FROM status_events WHERE signalement_id = $1 ORDER BY seq`, itemID)
}

// ListByItems returns the events of several signalements
func (r *PostgresStatusEventRepository) ListByItems(ctx context.Context, itemIDs []string) ([]domain.RawStatusEvent, error) {
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if isUUID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []domain.RawStatusEvent{}, nil
	}
	return r.query(ctx,
		`SELECT signalement_id, status, occurred_at FROM status_events WHERE signalement_id = ANY($1) ORDER BY seq`,
		pq.Array(ids),
	)
}

func (r *PostgresStatusEventRepository) query(ctx context.Context, query string, args ...interface{}) ([]domain.RawStatusEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query status events: %w", err)
	}
	defer rows.Close()

	events := []domain.RawStatusEvent{}
	for rows.Next() {
		var e domain.RawStatusEvent
		var occurredAt sql.NullTime
		if err := rows.Scan(&e.ItemID, &e.Status, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan status event: %w", err)
		}
		if occurredAt.Valid {
			e.Timestamp = occurredAt.Time.UTC()
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status events: %w", err)
	}

	return events, nil
}
