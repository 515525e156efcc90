package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// AssignmentRepository persists assignments. History is append-only:
// replaced rows are deactivated, never deleted.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ActiveBySlotIDs returns the active assignment per slot, keyed by slot.
func (r *AssignmentRepository) ActiveBySlotIDs(ctx context.Context, slotIDs []string) (map[string]models.Assignment, error) {
	if len(slotIDs) == 0 {
		return map[string]models.Assignment{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, parish_id, slot_id, acolyte_id, job_id, is_active, assigned_at, ended_at, end_reason
FROM assignments
WHERE is_active = TRUE AND slot_id IN (?)`, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("build active assignments query: %w", err)
	}
	query = r.db.Rebind(query)

	var rows []models.Assignment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	result := make(map[string]models.Assignment, len(rows))
	for _, row := range rows {
		result[row.SlotID] = row
	}
	return result, nil
}

// ListActiveWindows returns active assignments joined with their slot
// windows overlapping [from, to), for conflict detection.
func (r *AssignmentRepository) ListActiveWindows(ctx context.Context, parishID string, from, to time.Time) ([]models.AssignmentWindow, error) {
	const query = `SELECT a.acolyte_id, a.slot_id, s.starts_at, s.ends_at
FROM assignments a
JOIN slots s ON s.id = a.slot_id
WHERE a.parish_id = $1 AND a.is_active = TRUE AND s.starts_at < $3 AND s.ends_at > $2`
	var windows []models.AssignmentWindow
	if err := r.db.SelectContext(ctx, &windows, query, parishID, from, to); err != nil {
		return nil, fmt.Errorf("list assignment windows: %w", err)
	}
	return windows, nil
}

// ActiveWindowsOverlapping is the transactional variant of ListActiveWindows.
// It reads through the given transaction so the caller sees assignments
// written after any cached ranking was taken.
func (r *AssignmentRepository) ActiveWindowsOverlapping(ctx context.Context, tx *sqlx.Tx, parishID string, from, to time.Time) ([]models.AssignmentWindow, error) {
	const query = `SELECT a.acolyte_id, a.slot_id, s.starts_at, s.ends_at
FROM assignments a
JOIN slots s ON s.id = a.slot_id
WHERE a.parish_id = $1 AND a.is_active = TRUE AND s.starts_at < $3 AND s.ends_at > $2`
	var windows []models.AssignmentWindow
	if err := tx.SelectContext(ctx, &windows, query, parishID, from, to); err != nil {
		return nil, fmt.Errorf("list assignment windows: %w", err)
	}
	return windows, nil
}

// ActiveBySlotForUpdate row-locks and returns the slot's active assignment,
// or nil when the slot is open.
func (r *AssignmentRepository) ActiveBySlotForUpdate(ctx context.Context, tx *sqlx.Tx, slotID string) (*models.Assignment, error) {
	const query = `SELECT id, parish_id, slot_id, acolyte_id, job_id, is_active, assigned_at, ended_at, end_reason
FROM assignments
WHERE slot_id = $1 AND is_active = TRUE
FOR UPDATE`
	var assignment models.Assignment
	if err := tx.GetContext(ctx, &assignment, query, slotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock active assignment: %w", err)
	}
	return &assignment, nil
}

// Deactivate ends an assignment with the given reason.
func (r *AssignmentRepository) Deactivate(ctx context.Context, tx *sqlx.Tx, assignmentID, reason string) error {
	const query = `UPDATE assignments SET is_active = FALSE, ended_at = $2, end_reason = $3 WHERE id = $1 AND is_active = TRUE`
	result, err := tx.ExecContext(ctx, query, assignmentID, time.Now().UTC(), reason)
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deactivated rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Insert creates a new active assignment.
func (r *AssignmentRepository) Insert(ctx context.Context, tx *sqlx.Tx, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	assignment.IsActive = true
	const query = `INSERT INTO assignments (id, parish_id, slot_id, acolyte_id, job_id, is_active, assigned_at)
		VALUES (:id, :parish_id, :slot_id, :acolyte_id, :job_id, :is_active, :assigned_at)`
	if _, err := tx.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// ExistsByJob reports whether the job already committed any assignment.
// Used to keep commits idempotent across retries.
func (r *AssignmentRepository) ExistsByJob(ctx context.Context, jobID string) (bool, error) {
	const query = `SELECT 1 FROM assignments WHERE job_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, jobID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check job assignments: %w", err)
	}
	return true, nil
}

// ListRoster returns the active roster for [from, to), flattened for export.
func (r *AssignmentRepository) ListRoster(ctx context.Context, parishID string, from, to time.Time) ([]models.RosterRow, error) {
	const query = `SELECT s.starts_at, s.community_id, s.position_type_id, ac.display_name
FROM assignments a
JOIN slots s ON s.id = a.slot_id
JOIN acolytes ac ON ac.id = a.acolyte_id
WHERE a.parish_id = $1 AND a.is_active = TRUE AND s.starts_at >= $2 AND s.starts_at < $3
ORDER BY s.starts_at ASC, s.community_id ASC, s.position_type_id ASC`
	var rows []models.RosterRow
	if err := r.db.SelectContext(ctx, &rows, query, parishID, from, to); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return rows, nil
}
