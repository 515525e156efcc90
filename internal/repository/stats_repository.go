package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// StatsRepository reads the externally aggregated acolyte statistics used
// for load balancing and incentives.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository constructs the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// ListByParish returns stats rows for the parish's acolytes. Acolytes with
// no row default to zero stats at the call site.
func (r *StatsRepository) ListByParish(ctx context.Context, parishID string) ([]models.AcolyteStats, error) {
	const query = `SELECT s.acolyte_id, s.recent_load, s.credit_balance, s.reliability_score
FROM acolyte_stats s
JOIN acolytes a ON a.id = s.acolyte_id
WHERE a.parish_id = $1`
	var stats []models.AcolyteStats
	if err := r.db.SelectContext(ctx, &stats, query, parishID); err != nil {
		return nil, fmt.Errorf("list acolyte stats: %w", err)
	}
	return stats, nil
}
