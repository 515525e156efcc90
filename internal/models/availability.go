package models

import "time"

// RuleKind discriminates the availability rule variants.
type RuleKind string

const (
	RuleAvailableOnly RuleKind = "available_only"
	RuleUnavailable   RuleKind = "unavailable"
	RuleAbsence       RuleKind = "absence"
)

// RuleOutcome is the three-way result of evaluating one rule against a slot time.
type RuleOutcome int

const (
	RuleNoOpinion RuleOutcome = iota
	RuleCovers
	RuleBlocks
)

// AvailabilityRule is a recurring or date-specific availability declaration.
// Weekday follows time.Weekday; StartMinute/EndMinute are minutes since
// midnight with an exclusive end bound.
type AvailabilityRule struct {
	ID          string     `db:"id" json:"id"`
	ParishID    string     `db:"parish_id" json:"parish_id"`
	AcolyteID   string     `db:"acolyte_id" json:"acolyte_id"`
	Kind        RuleKind   `db:"kind" json:"kind"`
	Weekday     *int       `db:"weekday" json:"weekday,omitempty"`
	StartMinute *int       `db:"start_minute" json:"start_minute,omitempty"`
	EndMinute   *int       `db:"end_minute" json:"end_minute,omitempty"`
	StartDate   *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	CommunityID *string    `db:"community_id" json:"community_id,omitempty"`
}

// validInterval reports whether the rule's time window is well-formed.
// Rules with inverted windows are ignored entirely.
func (r AvailabilityRule) validInterval() bool {
	if r.StartMinute != nil && r.EndMinute != nil {
		return *r.StartMinute < *r.EndMinute
	}
	return true
}

// appliesTo reports whether the rule's date, weekday, community and time
// window all match the given slot start. End minutes are exclusive: a rule
// ending at 10:00 does not apply to a slot starting at 10:00.
func (r AvailabilityRule) appliesTo(start time.Time, communityID string) bool {
	day := dateOnly(start)
	if r.StartDate != nil && day.Before(dateOnly(*r.StartDate)) {
		return false
	}
	if r.EndDate != nil && day.After(dateOnly(*r.EndDate)) {
		return false
	}
	if r.Weekday != nil && int(start.Weekday()) != *r.Weekday {
		return false
	}
	if r.CommunityID != nil && *r.CommunityID != communityID {
		return false
	}
	minute := start.Hour()*60 + start.Minute()
	if r.StartMinute != nil && r.EndMinute != nil {
		return minute >= *r.StartMinute && minute < *r.EndMinute
	}
	if r.StartMinute != nil {
		return minute >= *r.StartMinute
	}
	if r.EndMinute != nil {
		return minute < *r.EndMinute
	}
	return true
}

// Evaluate returns the rule's opinion on serving at the given time.
func (r AvailabilityRule) Evaluate(start time.Time, communityID string) RuleOutcome {
	if !r.validInterval() {
		return RuleNoOpinion
	}
	applies := r.appliesTo(start, communityID)
	switch r.Kind {
	case RuleAbsence, RuleUnavailable:
		if applies {
			return RuleBlocks
		}
	case RuleAvailableOnly:
		if applies {
			return RuleCovers
		}
	}
	return RuleNoOpinion
}

// Available combines a set of rules for one acolyte under the override law:
// any blocking rule wins; if any valid available-only rules exist, at least
// one must cover the slot time; otherwise the acolyte is available.
func Available(rules []AvailabilityRule, start time.Time, communityID string) bool {
	restrictive := false
	covered := false
	for _, rule := range rules {
		switch rule.Evaluate(start, communityID) {
		case RuleBlocks:
			return false
		case RuleCovers:
			covered = true
		}
		if rule.Kind == RuleAvailableOnly && rule.validInterval() {
			restrictive = true
		}
	}
	if restrictive {
		return covered
	}
	return true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
