package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// ParishRepository reads parish scheduling scopes.
type ParishRepository struct {
	db *sqlx.DB
}

// NewParishRepository constructs the repository.
func NewParishRepository(db *sqlx.DB) *ParishRepository {
	return &ParishRepository{db: db}
}

// FindByID returns the parish with its weight overrides.
func (r *ParishRepository) FindByID(ctx context.Context, parishID string) (*models.Parish, error) {
	const query = `SELECT id, name, consolidation_days, weights FROM parishes WHERE id = $1`
	var parish models.Parish
	if err := r.db.GetContext(ctx, &parish, query, parishID); err != nil {
		return nil, fmt.Errorf("find parish: %w", err)
	}
	return &parish, nil
}
