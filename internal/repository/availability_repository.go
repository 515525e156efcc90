package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// AvailabilityRepository reads availability rules.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByParish returns every availability rule for the parish's acolytes.
func (r *AvailabilityRepository) ListByParish(ctx context.Context, parishID string) ([]models.AvailabilityRule, error) {
	const query = `SELECT id, parish_id, acolyte_id, kind, weekday, start_minute, end_minute,
       start_date, end_date, community_id
FROM availability_rules
WHERE parish_id = $1
ORDER BY acolyte_id ASC, id ASC`
	var rules []models.AvailabilityRule
	if err := r.db.SelectContext(ctx, &rules, query, parishID); err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}
