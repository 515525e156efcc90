package models

// Preference kinds. Avoid variants subtract their weight.
const (
	PrefPreferredCommunity = "preferred_community"
	PrefAvoidCommunity     = "avoid_community"
	PrefPreferredPosition  = "preferred_position"
	PrefAvoidPosition      = "avoid_position"
	PrefPreferredTimeslot  = "preferred_timeslot"
)

// AcolytePreference is a declared soft preference with a signed weight.
type AcolytePreference struct {
	ID               string  `db:"id" json:"id"`
	ParishID         string  `db:"parish_id" json:"parish_id"`
	AcolyteID        string  `db:"acolyte_id" json:"acolyte_id"`
	Kind             string  `db:"kind" json:"kind"`
	TargetCommunity  *string `db:"target_community_id" json:"target_community_id,omitempty"`
	TargetPosition   *string `db:"target_position_id" json:"target_position_id,omitempty"`
	Weekday          *int    `db:"weekday" json:"weekday,omitempty"`
	StartMinute      *int    `db:"start_minute" json:"start_minute,omitempty"`
	EndMinute        *int    `db:"end_minute" json:"end_minute,omitempty"`
	Weight           int     `db:"weight" json:"weight"`
}

// PreferenceScore sums an acolyte's preference weights as they apply to a
// slot. Timeslot preferences use exclusive end minutes, matching
// availability rule semantics.
func PreferenceScore(prefs []AcolytePreference, slot Slot) int {
	total := 0
	minute := slot.StartsAt.Hour()*60 + slot.StartsAt.Minute()
	for _, pref := range prefs {
		switch pref.Kind {
		case PrefPreferredCommunity:
			if pref.TargetCommunity != nil && *pref.TargetCommunity == slot.CommunityID {
				total += pref.Weight
			}
		case PrefAvoidCommunity:
			if pref.TargetCommunity != nil && *pref.TargetCommunity == slot.CommunityID {
				total -= pref.Weight
			}
		case PrefPreferredPosition:
			if pref.TargetPosition != nil && *pref.TargetPosition == slot.PositionTypeID {
				total += pref.Weight
			}
		case PrefAvoidPosition:
			if pref.TargetPosition != nil && *pref.TargetPosition == slot.PositionTypeID {
				total -= pref.Weight
			}
		case PrefPreferredTimeslot:
			if pref.Weekday != nil && int(slot.StartsAt.Weekday()) != *pref.Weekday {
				continue
			}
			if pref.StartMinute != nil && minute < *pref.StartMinute {
				continue
			}
			if pref.EndMinute != nil && minute >= *pref.EndMinute {
				continue
			}
			total += pref.Weight
		}
	}
	return total
}
