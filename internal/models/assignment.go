package models

import "time"

// Assignment end reasons. Superseded assignments are never deleted.
const (
	EndReplacedBySolver  = "replaced_by_solver"
	EndReplacedQuickFill = "replaced_by_quick_fill"
	EndCancelled         = "cancelled"
	EndRefused           = "refused"
)

// Assignment records one acolyte serving one slot. At most one row per slot
// is active at a time; history is append-only.
type Assignment struct {
	ID         string     `db:"id" json:"id"`
	ParishID   string     `db:"parish_id" json:"parish_id"`
	SlotID     string     `db:"slot_id" json:"slot_id"`
	AcolyteID  string     `db:"acolyte_id" json:"acolyte_id"`
	JobID      *string    `db:"job_id" json:"job_id,omitempty"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	AssignedAt time.Time  `db:"assigned_at" json:"assigned_at"`
	EndedAt    *time.Time `db:"ended_at" json:"ended_at,omitempty"`
	EndReason  *string    `db:"end_reason" json:"end_reason,omitempty"`
}

// AssignmentWindow joins an active assignment with its slot's time window,
// used for conflict-set construction.
type AssignmentWindow struct {
	AcolyteID string    `db:"acolyte_id" json:"acolyte_id"`
	SlotID    string    `db:"slot_id" json:"slot_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time `db:"ends_at" json:"ends_at"`
}

// RosterRow is a flattened active assignment for roster exports.
type RosterRow struct {
	StartsAt     time.Time `db:"starts_at" json:"starts_at"`
	CommunityID  string    `db:"community_id" json:"community_id"`
	PositionType string    `db:"position_type_id" json:"position_type_id"`
	AcolyteName  string    `db:"display_name" json:"acolyte_name"`
}
