package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Parish is the scheduling scope: weights, consolidation window, acolytes.
type Parish struct {
	ID                string          `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	ConsolidationDays int             `db:"consolidation_days" json:"consolidation_days"`
	Weights           ScheduleWeights `db:"weights" json:"weights"`
}

// ScheduleWeights are the per-parish objective coefficients. Zero values
// fall back to the configured defaults via Merge.
type ScheduleWeights struct {
	Preference     int `json:"preference"`
	Stability      int `json:"stability"`
	LoadBalance    int `json:"load_balance"`
	Credit         int `json:"credit"`
	CreditCap      int `json:"credit_cap"`
	ReservePenalty int `json:"reserve_penalty"`
	FillBonus      int `json:"fill_bonus"`

	// ReliabilityPenalty scales a deduction for unreliable acolytes; 100
	// reliability means no deduction. Zero disables the term.
	ReliabilityPenalty int `json:"reliability_penalty"`
	// MaxServicesPerWeek caps assignments per acolyte per ISO week. Zero
	// disables the cap.
	MaxServicesPerWeek int `json:"max_services_per_week"`
	// MinRestMinutes is the required gap between an acolyte's consecutive
	// services at different instances.
	MinRestMinutes int `json:"min_rest_minutes"`
}

// Merge overlays parish-specific weights on the defaults, field by field.
func (w ScheduleWeights) Merge(defaults ScheduleWeights) ScheduleWeights {
	merged := w
	if merged.Preference == 0 {
		merged.Preference = defaults.Preference
	}
	if merged.Stability == 0 {
		merged.Stability = defaults.Stability
	}
	if merged.LoadBalance == 0 {
		merged.LoadBalance = defaults.LoadBalance
	}
	if merged.Credit == 0 {
		merged.Credit = defaults.Credit
	}
	if merged.CreditCap == 0 {
		merged.CreditCap = defaults.CreditCap
	}
	if merged.ReservePenalty == 0 {
		merged.ReservePenalty = defaults.ReservePenalty
	}
	if merged.FillBonus == 0 {
		merged.FillBonus = defaults.FillBonus
	}
	if merged.ReliabilityPenalty == 0 {
		merged.ReliabilityPenalty = defaults.ReliabilityPenalty
	}
	if merged.MaxServicesPerWeek == 0 {
		merged.MaxServicesPerWeek = defaults.MaxServicesPerWeek
	}
	if merged.MinRestMinutes == 0 {
		merged.MinRestMinutes = defaults.MinRestMinutes
	}
	return merged
}

// Value marshals weights for persistence.
func (w ScheduleWeights) Value() (driver.Value, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule weights: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the weights.
func (w *ScheduleWeights) Scan(value interface{}) error {
	if value == nil {
		*w = ScheduleWeights{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ScheduleWeights", value)
	}
	if len(data) == 0 {
		*w = ScheduleWeights{}
		return nil
	}
	if err := json.Unmarshal(data, w); err != nil {
		return fmt.Errorf("unmarshal schedule weights: %w", err)
	}
	return nil
}
