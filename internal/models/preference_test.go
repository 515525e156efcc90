package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func prefSlot() Slot {
	return Slot{
		CommunityID:    "community-1",
		PositionTypeID: "thurifer",
		StartsAt:       time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC),
		EndsAt:         time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC),
	}
}

func TestPreferenceScoreCommunityAndPosition(t *testing.T) {
	prefs := []AcolytePreference{
		{Kind: PrefPreferredCommunity, TargetCommunity: strPtr("community-1"), Weight: 5},
		{Kind: PrefAvoidPosition, TargetPosition: strPtr("thurifer"), Weight: 3},
		{Kind: PrefPreferredPosition, TargetPosition: strPtr("crucifer"), Weight: 7},
	}
	assert.Equal(t, 2, PreferenceScore(prefs, prefSlot()))
}

func TestPreferenceScoreTimeslotExclusiveEnd(t *testing.T) {
	prefs := []AcolytePreference{
		{Kind: PrefPreferredTimeslot, Weekday: intPtr(0), StartMinute: intPtr(8 * 60), EndMinute: intPtr(9 * 60), Weight: 4},
	}
	// The window ends 09:00 exclusive and the slot starts at 09:00.
	assert.Equal(t, 0, PreferenceScore(prefs, prefSlot()))

	prefs[0].EndMinute = intPtr(10 * 60)
	assert.Equal(t, 4, PreferenceScore(prefs, prefSlot()))
}

func TestScheduleWeightsMerge(t *testing.T) {
	defaults := ScheduleWeights{Preference: 1, Stability: 10, LoadBalance: 2, Credit: 1, CreditCap: 10, ReservePenalty: 1000, FillBonus: 50}
	overrides := ScheduleWeights{Stability: 25}
	merged := overrides.Merge(defaults)
	assert.Equal(t, 25, merged.Stability)
	assert.Equal(t, 1, merged.Preference)
	assert.Equal(t, 1000, merged.ReservePenalty)
}
