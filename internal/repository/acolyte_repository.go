package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// AcolyteRepository reads acolytes and their qualification and interest
// declarations.
type AcolyteRepository struct {
	db *sqlx.DB
}

// NewAcolyteRepository constructs the repository.
func NewAcolyteRepository(db *sqlx.DB) *AcolyteRepository {
	return &AcolyteRepository{db: db}
}

// ListActive returns the parish's active acolytes.
func (r *AcolyteRepository) ListActive(ctx context.Context, parishID string) ([]models.Acolyte, error) {
	const query = `SELECT id, parish_id, display_name, active, scheduling_mode, created_at
FROM acolytes
WHERE parish_id = $1 AND active = TRUE
ORDER BY display_name ASC, id ASC`
	var acolytes []models.Acolyte
	if err := r.db.SelectContext(ctx, &acolytes, query, parishID); err != nil {
		return nil, fmt.Errorf("list active acolytes: %w", err)
	}
	return acolytes, nil
}

// ListQualifications returns all positive qualification rows for the parish.
func (r *AcolyteRepository) ListQualifications(ctx context.Context, parishID string) ([]models.AcolyteQualification, error) {
	const query = `SELECT q.acolyte_id, q.position_type_id, q.qualified
FROM acolyte_qualifications q
JOIN acolytes a ON a.id = q.acolyte_id
WHERE a.parish_id = $1 AND q.qualified = TRUE`
	var quals []models.AcolyteQualification
	if err := r.db.SelectContext(ctx, &quals, query, parishID); err != nil {
		return nil, fmt.Errorf("list qualifications: %w", err)
	}
	return quals, nil
}

// ListInterests returns all positive event series interests for the parish.
func (r *AcolyteRepository) ListInterests(ctx context.Context, parishID string) ([]models.AcolyteInterest, error) {
	const query = `SELECT i.acolyte_id, i.event_series_id, i.interested
FROM acolyte_interests i
JOIN acolytes a ON a.id = i.acolyte_id
WHERE a.parish_id = $1 AND i.interested = TRUE`
	var interests []models.AcolyteInterest
	if err := r.db.SelectContext(ctx, &interests, query, parishID); err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	return interests, nil
}
