package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/ports"
)

const signalementColumns = `id, type, description, localisation, latitude, longitude, report_date, surface, budget, entreprise, created_at, updated_at`

// PostgresSignalementRepository implements SignalementRepository using PostgreSQL
type PostgresSignalementRepository struct {
	db *sql.DB
}

// NewPostgresSignalementRepository creates a new PostgreSQL signalement repository
func NewPostgresSignalementRepository(db *sql.DB) ports.SignalementRepository {
	return &PostgresSignalementRepository{db: db}
}

// Create saves a new signalement and its opening event in one transaction
func (r *PostgresSignalementRepository) Create(ctx context.Context, s *domain.Signalement, opening *domain.StatusEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO signalements (` + signalementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = tx.ExecContext(ctx, query,
		s.ID,
		s.Type,
		s.Description,
		s.Localisation,
		s.Latitude,
		s.Longitude,
		s.Date,
		s.Surface,
		s.Budget,
		s.Entreprise,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signalement: %w", err)
	}

	if opening != nil {
		_, err = tx.ExecContext(ctx, insertStatusEventQuery, opening.ID, s.ID, opening.Status.Code(), opening.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to record opening status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID retrieves a signalement by its ID
func (r *PostgresSignalementRepository) FindByID(ctx context.Context, id string) (*domain.Signalement, error) {
	if !isUUID(id) {
		return nil, domain.ErrSignalementNotFound
	}

	query := `SELECT ` + signalementColumns + ` FROM signalements WHERE id = $1`

	s, err := scanSignalement(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSignalementNotFound
		}
		return nil, fmt.Errorf("failed to find signalement: %w", err)
	}

	return s, nil
}

// Update updates the descriptive fields of a signalement
func (r *PostgresSignalementRepository) Update(ctx context.Context, s *domain.Signalement) error {
	if !isUUID(s.ID) {
		return domain.ErrSignalementNotFound
	}

	query := `
		UPDATE signalements
		SET type = $2, description = $3, localisation = $4, latitude = $5, longitude = $6,
			report_date = $7, surface = $8, budget = $9, entreprise = $10, updated_at = $11
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Type,
		s.Description,
		s.Localisation,
		s.Latitude,
		s.Longitude,
		s.Date,
		s.Surface,
		s.Budget,
		s.Entreprise,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update signalement: %w", err)
	}

	return expectOneRow(result)
}

// List retrieves signalements based on filter criteria, newest first
func (r *PostgresSignalementRepository) List(ctx context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, error) {
	where, args := buildSignalementWhere(filter)
	query := `SELECT ` + signalementColumns + ` FROM signalements ` + where + ` ORDER BY report_date DESC, id`

	argIndex := len(args) + 1
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIndex)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signalements: %w", err)
	}
	defer rows.Close()

	var out []*domain.Signalement
	for rows.Next() {
		s, err := scanSignalement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signalement: %w", err)
		}
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signalements: %w", err)
	}

	return out, nil
}

// Delete removes a signalement; its status events go with it (ON DELETE CASCADE)
func (r *PostgresSignalementRepository) Delete(ctx context.Context, id string) error {
	if !isUUID(id) {
		return domain.ErrSignalementNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM signalements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete signalement: %w", err)
	}

	return expectOneRow(result)
}

// Count returns the number of signalements matching the filter
func (r *PostgresSignalementRepository) Count(ctx context.Context, filter domain.SignalementFilter) (int, error) {
	where, args := buildSignalementWhere(filter)

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signalements `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count signalements: %w", err)
	}

	return count, nil
}

// ListActiveIDs returns the id of every stored signalement
func (r *PostgresSignalementRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM signalements ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signalement ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan signalement id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signalement ids: %w", err)
	}

	return ids, nil
}

// Totals returns the count, surface and budget summed over the catalogue
func (r *PostgresSignalementRepository) Totals(ctx context.Context) (domain.CatalogueTotals, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(surface), 0), COALESCE(SUM(budget), 0) FROM signalements`

	var t domain.CatalogueTotals
	if err := r.db.QueryRowContext(ctx, query).Scan(&t.Count, &t.Surface, &t.Budget); err != nil {
		return domain.CatalogueTotals{}, fmt.Errorf("failed to compute catalogue totals: %w", err)
	}

	return t, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSignalement(row rowScanner) (*domain.Signalement, error) {
	var s domain.Signalement
	var description, localisation sql.NullString

	err := row.Scan(
		&s.ID,
		&s.Type,
		&description,
		&localisation,
		&s.Latitude,
		&s.Longitude,
		&s.Date,
		&s.Surface,
		&s.Budget,
		&s.Entreprise,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Description = description.String
	s.Localisation = localisation.String
	return &s, nil
}

func buildSignalementWhere(filter domain.SignalementFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.Entreprise != nil {
		conditions = append(conditions, fmt.Sprintf("entreprise = $%d", argIndex))
		args = append(args, *filter.Entreprise)
		argIndex++
	}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIndex))
		args = append(args, *filter.Type)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrSignalementNotFound
	}

	return nil
}

// isUUID guards UUID columns; any other id cannot exist
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
