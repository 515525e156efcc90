package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// PreferenceRepository reads soft scheduling preferences.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ListByParish returns every preference for the parish's acolytes.
func (r *PreferenceRepository) ListByParish(ctx context.Context, parishID string) ([]models.AcolytePreference, error) {
	const query = `SELECT id, parish_id, acolyte_id, kind, target_community_id, target_position_id,
       weekday, start_minute, end_minute, weight
FROM acolyte_preferences
WHERE parish_id = $1
ORDER BY acolyte_id ASC, id ASC`
	var prefs []models.AcolytePreference
	if err := r.db.SelectContext(ctx, &prefs, query, parishID); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}
