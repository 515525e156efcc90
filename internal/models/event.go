package models

import "time"

// Domain event types consumed by the notification and audit collaborators.
const (
	EventAssignmentCreated    = "assignment.created"
	EventAssignmentSuperseded = "assignment.superseded"
	EventVacancyResolved      = "vacancy.resolved"
	EventVacancyOpen          = "vacancy.open"
)

// DomainEvent is published after commit; it never carries uncommitted state.
type DomainEvent struct {
	Type       string    `json:"type"`
	ParishID   string    `json:"parish_id"`
	SlotID     string    `json:"slot_id"`
	AcolyteID  string    `json:"acolyte_id,omitempty"`
	JobID      string    `json:"job_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
