package dto

import "time"

// SubmitJobRequest asks for a schedule run over one parish.
type SubmitJobRequest struct {
	ParishID       string  `json:"parish_id" validate:"required"`
	CommunityID    *string `json:"community_id,omitempty" validate:"omitempty,min=1"`
	HorizonDays    int     `json:"horizon_days" validate:"omitempty,gte=1,lte=365"`
	ForceRepublish bool    `json:"force_republish"`
}

// JobResponse is the accepted-job acknowledgement.
type JobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse reports job progress and, once terminal, its summary.
type JobStatusResponse struct {
	JobID        string      `json:"job_id"`
	ParishID     string      `json:"parish_id"`
	Status       string      `json:"status"`
	Summary      interface{} `json:"summary,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
}

// ResolveVacancyResponse reports a quick fill attempt.
type ResolveVacancyResponse struct {
	SlotID    string `json:"slot_id"`
	Resolved  bool   `json:"resolved"`
	AcolyteID string `json:"acolyte_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// RosterExportQuery bounds a roster export.
type RosterExportQuery struct {
	ParishID string `form:"parish_id" validate:"required"`
	From     string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	Days     int    `form:"days" validate:"omitempty,gte=1,lte=365"`
	Format   string `form:"format" validate:"omitempty,oneof=csv pdf"`
}
