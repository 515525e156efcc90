package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int          { return &v }
func strPtr(v string) *string    { return &v }
func datePtr(v time.Time) *time.Time { return &v }

func sundayMorning() time.Time {
	// 2026-03-08 is a Sunday.
	return time.Date(2026, 3, 8, 9, 30, 0, 0, time.UTC)
}

func TestAvailableNoRules(t *testing.T) {
	assert.True(t, Available(nil, sundayMorning(), "community-1"))
}

func TestAvailableBlockingRuleWins(t *testing.T) {
	rules := []AvailabilityRule{
		{Kind: RuleAvailableOnly, Weekday: intPtr(0)},
		{Kind: RuleUnavailable, Weekday: intPtr(0), StartMinute: intPtr(9 * 60), EndMinute: intPtr(12 * 60)},
	}
	assert.False(t, Available(rules, sundayMorning(), "community-1"))
}

func TestAvailableOnlyRestricts(t *testing.T) {
	// A single available-only rule for Saturdays makes Sunday unavailable.
	rules := []AvailabilityRule{
		{Kind: RuleAvailableOnly, Weekday: intPtr(6)},
	}
	assert.False(t, Available(rules, sundayMorning(), "community-1"))

	rules = append(rules, AvailabilityRule{Kind: RuleAvailableOnly, Weekday: intPtr(0)})
	assert.True(t, Available(rules, sundayMorning(), "community-1"))
}

func TestAvailableExclusiveEndMinute(t *testing.T) {
	start := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	rules := []AvailabilityRule{
		{Kind: RuleUnavailable, StartMinute: intPtr(8 * 60), EndMinute: intPtr(10 * 60)},
	}
	// The block ends at 10:00 exclusive, so a 10:00 slot is fine.
	assert.True(t, Available(rules, start, "community-1"))
	assert.False(t, Available(rules, start.Add(-time.Minute), "community-1"))
}

func TestAvailableInvalidIntervalIgnored(t *testing.T) {
	rules := []AvailabilityRule{
		{Kind: RuleUnavailable, StartMinute: intPtr(12 * 60), EndMinute: intPtr(9 * 60)},
	}
	assert.True(t, Available(rules, sundayMorning(), "community-1"))

	// An inverted available-only rule must not restrict either.
	rules = []AvailabilityRule{
		{Kind: RuleAvailableOnly, StartMinute: intPtr(12 * 60), EndMinute: intPtr(9 * 60)},
	}
	assert.True(t, Available(rules, sundayMorning(), "community-1"))
}

func TestAvailableAbsenceDateRange(t *testing.T) {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	rules := []AvailabilityRule{
		{Kind: RuleAbsence, StartDate: datePtr(from), EndDate: datePtr(until)},
	}
	assert.False(t, Available(rules, sundayMorning(), "community-1"))
	assert.True(t, Available(rules, sundayMorning().AddDate(0, 0, 7), "community-1"))
}

func TestAvailableCommunityScopedRule(t *testing.T) {
	rules := []AvailabilityRule{
		{Kind: RuleUnavailable, CommunityID: strPtr("community-2")},
	}
	assert.True(t, Available(rules, sundayMorning(), "community-1"))
	assert.False(t, Available(rules, sundayMorning(), "community-2"))
}

func TestSlotOverlapsExclusiveEnd(t *testing.T) {
	slot := Slot{
		StartsAt: time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC),
	}
	assert.False(t, slot.Overlaps(slot.EndsAt, slot.EndsAt.Add(time.Hour)))
	assert.True(t, slot.Overlaps(slot.StartsAt.Add(30*time.Minute), slot.EndsAt.Add(time.Hour)))
	assert.False(t, slot.Overlaps(slot.StartsAt.Add(-time.Hour), slot.StartsAt))
}
