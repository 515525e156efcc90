package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// SlotRepository reads service slots. Slots are created by the calendar
// layer; the engine never inserts them.
type SlotRepository struct {
	db *sqlx.DB
}

// NewSlotRepository constructs the repository.
func NewSlotRepository(db *sqlx.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

const slotColumns = `id, parish_id, instance_id, community_id, event_series_id, candidate_pool,
       position_type_id, qualification_id, starts_at, ends_at, mandatory, locked`

// ListInWindow returns the parish's slots starting within [from, to),
// optionally narrowed to one community.
func (r *SlotRepository) ListInWindow(ctx context.Context, parishID string, communityID *string, from, to time.Time) ([]models.Slot, error) {
	query := `SELECT ` + slotColumns + `
FROM slots
WHERE parish_id = $1 AND starts_at >= $2 AND starts_at < $3`
	args := []interface{}{parishID, from, to}
	if communityID != nil {
		query += ` AND community_id = $4`
		args = append(args, *communityID)
	}
	query += ` ORDER BY starts_at ASC, id ASC`

	var slots []models.Slot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// FindByID returns a single slot.
func (r *SlotRepository) FindByID(ctx context.Context, slotID string) (*models.Slot, error) {
	const query = `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	var slot models.Slot
	if err := r.db.GetContext(ctx, &slot, query, slotID); err != nil {
		return nil, fmt.Errorf("find slot: %w", err)
	}
	return &slot, nil
}

// FindByIDForUpdate row-locks a slot inside tx so concurrent commits
// serialize on it.
func (r *SlotRepository) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, slotID string) (*models.Slot, error) {
	const query = `SELECT ` + slotColumns + ` FROM slots WHERE id = $1 FOR UPDATE`
	var slot models.Slot
	if err := tx.GetContext(ctx, &slot, query, slotID); err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	return &slot, nil
}
