package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JobStatus captures the schedule job state machine. Terminal states are
// final; retrying means submitting a new request.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusPartial   JobStatus = "partial"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusPartial, JobStatusFailed:
		return true
	}
	return false
}

// ScheduleJob is a persisted schedule run request.
type ScheduleJob struct {
	ID             string     `db:"id" json:"id"`
	ParishID       string     `db:"parish_id" json:"parish_id"`
	CommunityID    *string    `db:"community_id" json:"community_id,omitempty"`
	HorizonDays    int        `db:"horizon_days" json:"horizon_days"`
	ForceRepublish bool       `db:"force_republish" json:"force_republish"`
	Status         JobStatus  `db:"status" json:"status"`
	Summary        JobSummary `db:"summary" json:"summary"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// JobSummary is the terminal result summary persisted as JSONB.
type JobSummary struct {
	SlotsTotal     int           `json:"slots_total"`
	SlotsFilled    int           `json:"slots_filled"`
	SlotsOpen      int           `json:"slots_open"`
	SlotsSkipped   int           `json:"slots_skipped"`
	OpenSlots      []SlotOutcome `json:"open_slots,omitempty"`
	SkippedSlots   []SlotOutcome `json:"skipped_slots,omitempty"`
	ObjectiveValue int64         `json:"objective_value"`
	SolverStatus   string        `json:"solver_status,omitempty"`
	Relaxed        bool          `json:"relaxed,omitempty"`
	Changes        int           `json:"changes"`
	DurationMillis int64         `json:"duration_ms"`
}

// Value marshals the summary for persistence.
func (s JobSummary) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal job summary: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the summary.
func (s *JobSummary) Scan(value interface{}) error {
	if value == nil {
		*s = JobSummary{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JobSummary", value)
	}
	if len(data) == 0 {
		*s = JobSummary{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal job summary: %w", err)
	}
	return nil
}
