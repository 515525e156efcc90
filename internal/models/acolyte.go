package models

import "time"

// Scheduling modes. Reserve acolytes are only drafted when nobody else fits.
const (
	ModeRegular = "regular"
	ModeReserve = "reserve"
)

// Acolyte is a person eligible to serve.
type Acolyte struct {
	ID             string    `db:"id" json:"id"`
	ParishID       string    `db:"parish_id" json:"parish_id"`
	DisplayName    string    `db:"display_name" json:"display_name"`
	Active         bool      `db:"active" json:"active"`
	SchedulingMode string    `db:"scheduling_mode" json:"scheduling_mode"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// AcolyteQualification marks an acolyte as qualified for a position type.
type AcolyteQualification struct {
	AcolyteID      string `db:"acolyte_id" json:"acolyte_id"`
	PositionTypeID string `db:"position_type_id" json:"position_type_id"`
	Qualified      bool   `db:"qualified" json:"qualified"`
}

// AcolyteInterest declares interest in an event series with a restricted
// candidate pool.
type AcolyteInterest struct {
	AcolyteID     string `db:"acolyte_id" json:"acolyte_id"`
	EventSeriesID string `db:"event_series_id" json:"event_series_id"`
	Interested    bool   `db:"interested" json:"interested"`
}

// AcolyteStats is the externally aggregated load and incentive baseline.
type AcolyteStats struct {
	AcolyteID        string  `db:"acolyte_id" json:"acolyte_id"`
	RecentLoad       float64 `db:"recent_load" json:"recent_load"`
	CreditBalance    int     `db:"credit_balance" json:"credit_balance"`
	ReliabilityScore int     `db:"reliability_score" json:"reliability_score"`
}
