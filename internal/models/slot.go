package models

import "time"

// CandidatePool scopes who may be offered a slot.
const (
	PoolAll            = "all"
	PoolInterestedOnly = "interested_only"
)

// Slot is a single service position at a concrete instance requiring one
// assignee for a fixed time window. The engine reads slots; lock transitions
// belong to the consolidation job.
type Slot struct {
	ID              string    `db:"id" json:"id"`
	ParishID        string    `db:"parish_id" json:"parish_id"`
	InstanceID      string    `db:"instance_id" json:"instance_id"`
	CommunityID     string    `db:"community_id" json:"community_id"`
	EventSeriesID   *string   `db:"event_series_id" json:"event_series_id,omitempty"`
	CandidatePool   string    `db:"candidate_pool" json:"candidate_pool"`
	PositionTypeID  string    `db:"position_type_id" json:"position_type_id"`
	QualificationID string    `db:"qualification_id" json:"qualification_id"`
	StartsAt        time.Time `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time `db:"ends_at" json:"ends_at"`
	Mandatory       bool      `db:"mandatory" json:"mandatory"`
	Locked          bool      `db:"locked" json:"locked"`
}

// Overlaps reports whether two slot windows intersect. End times are
// exclusive, so back-to-back slots do not overlap.
func (s Slot) Overlaps(from, to time.Time) bool {
	return s.StartsAt.Before(to) && from.Before(s.EndsAt)
}

// SlotOutcome records why a slot was left open or skipped in a job summary.
// Only uncovered mandatory slots demote a job to partial.
type SlotOutcome struct {
	SlotID    string `json:"slot_id"`
	Reason    string `json:"reason"`
	Mandatory bool   `json:"mandatory,omitempty"`
}

// Slot outcome reasons surfaced in job summaries.
const (
	ReasonNoCandidates     = "no_eligible_candidates"
	ReasonMissingRole      = "missing_required_qualification"
	ReasonInvalidWindow    = "invalid_time_window"
	ReasonUnassigned       = "left_open_by_solver"
	ReasonCommitConflict   = "slot_changed_during_commit"
	ReasonLockedDuringRun  = "locked_during_run"
	ReasonManualResolution = "needs_manual_resolution"
)
