package service

import (
	"math"
	"time"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
	"github.com/parishops/acolyte-scheduler-api/pkg/solver"
)

// assignmentPair links a solver variable back to its slot and candidate.
type assignmentPair struct {
	slotIndex int
	candIndex int
	v         solver.Var
}

// scheduleModel is the constraint model for one solve attempt.
type scheduleModel struct {
	model *solver.Model
	pairs []assignmentPair
}

// buildScheduleModel translates the snapshot into boolean variables and
// linear constraints. With relaxed set, mandatory coverage becomes optional
// coverage rewarded by the fill bonus, so an over-constrained instance still
// yields the best partial roster.
func buildScheduleModel(snap *ScheduleSnapshot, relaxed bool) *scheduleModel {
	m := solver.NewModel()
	sm := &scheduleModel{model: m}
	w := snap.Weights

	varsByAcolyte := map[string][]assignmentPair{}

	for si, snapSlot := range snap.Slots {
		slot := snapSlot.Slot
		slotVars := make([]solver.Var, 0, len(snapSlot.Candidates))
		bestScore := 0
		for _, cand := range snapSlot.Candidates {
			if score := w.Preference * cand.PrefScore; score > bestScore {
				bestScore = score
			}
		}
		for ci, cand := range snapSlot.Candidates {
			v := m.NewBoolVar(slot.ID + "/" + cand.Acolyte.ID)
			m.SetObjective(v, candidateObjective(snap, slot, cand))
			if !slot.Mandatory || relaxed {
				m.SetObjective(v, fillBonus(w, bestScore))
			}
			pair := assignmentPair{slotIndex: si, candIndex: ci, v: v}
			sm.pairs = append(sm.pairs, pair)
			slotVars = append(slotVars, v)
			varsByAcolyte[cand.Acolyte.ID] = append(varsByAcolyte[cand.Acolyte.ID], pair)
		}
		if slot.Mandatory && !relaxed {
			m.AddExactlyOne(slotVars)
		} else {
			m.AddAtMostOne(slotVars)
		}
	}

	addAcolyteConstraints(m, snap, varsByAcolyte)
	return sm
}

// candidateObjective scores one (slot, candidate) assignment: preference,
// capped credit bonus, reserve penalty, reliability deduction, stability
// toward the incumbent and a linearized load-balance term relative to the
// parish mean.
func candidateObjective(snap *ScheduleSnapshot, slot models.Slot, cand Candidate) int64 {
	w := snap.Weights
	score := int64(w.Preference * cand.PrefScore)

	if balance := snap.Stats[cand.Acolyte.ID].CreditBalance; balance > 0 {
		if balance > w.CreditCap {
			balance = w.CreditCap
		}
		score += int64(w.Credit * balance)
	}

	if cand.Reserve {
		score -= int64(w.ReservePenalty)
	}

	// Acolytes without a stats row have no track record to penalize.
	if st, ok := snap.Stats[cand.Acolyte.ID]; ok && w.ReliabilityPenalty > 0 {
		score -= int64(w.ReliabilityPenalty * (100 - st.ReliabilityScore) / 100)
	}

	if incumbent, ok := snap.Baseline[slot.ID]; ok && incumbent == cand.Acolyte.ID {
		score += int64(w.Stability)
	}

	deviation := snap.Stats[cand.Acolyte.ID].RecentLoad - snap.MeanLoad
	score -= int64(w.LoadBalance) * int64(math.Round(deviation))

	return score
}

// fillBonus rewards covering an optional slot. It scales with the slot's
// best candidate score so filling never loses to leaving slots open, while
// candidate ranking within the slot is preserved.
func fillBonus(w models.ScheduleWeights, bestScore int) int64 {
	bonus := int64(w.FillBonus)
	if bestScore > 0 {
		bonus += int64(bestScore)
	}
	return bonus
}

// addAcolyteConstraints forbids double-booking: at most one assignment per
// acolyte across overlapping slots and per service instance, with the rest
// gap widening what counts as overlapping. A weekly cap, when configured,
// bounds each acolyte's assignments per ISO week.
func addAcolyteConstraints(m *solver.Model, snap *ScheduleSnapshot, varsByAcolyte map[string][]assignmentPair) {
	rest := time.Duration(snap.Weights.MinRestMinutes) * time.Minute
	for _, pairs := range varsByAcolyte {
		for i := 0; i < len(pairs); i++ {
			for j := i + 1; j < len(pairs); j++ {
				a := snap.Slots[pairs[i].slotIndex].Slot
				b := snap.Slots[pairs[j].slotIndex].Slot
				if a.InstanceID == b.InstanceID || a.Overlaps(b.StartsAt.Add(-rest), b.EndsAt.Add(rest)) {
					m.AddAtMostOne([]solver.Var{pairs[i].v, pairs[j].v})
				}
			}
		}
	}

	weeklyCap := snap.Weights.MaxServicesPerWeek
	if weeklyCap <= 0 {
		return
	}
	type isoWeek struct{ year, week int }
	for _, pairs := range varsByAcolyte {
		byWeek := map[isoWeek][]solver.Var{}
		for _, pair := range pairs {
			y, wk := snap.Slots[pair.slotIndex].Slot.StartsAt.ISOWeek()
			key := isoWeek{y, wk}
			byWeek[key] = append(byWeek[key], pair.v)
		}
		for _, weekVars := range byWeek {
			if len(weekVars) > weeklyCap {
				m.AddSumRange(weekVars, 0, weeklyCap)
			}
		}
	}
}

// SlotDecision is one solver-chosen assignment ready to commit.
type SlotDecision struct {
	Slot      models.Slot
	AcolyteID string
}

// decisions extracts the chosen assignments and the slots left open.
func (sm *scheduleModel) decisions(snap *ScheduleSnapshot, values []bool) ([]SlotDecision, []models.SlotOutcome) {
	chosen := map[int]string{}
	for _, pair := range sm.pairs {
		if values[pair.v] {
			chosen[pair.slotIndex] = snap.Slots[pair.slotIndex].Candidates[pair.candIndex].Acolyte.ID
		}
	}
	var decided []SlotDecision
	var open []models.SlotOutcome
	for si, snapSlot := range snap.Slots {
		acolyteID, ok := chosen[si]
		if !ok {
			open = append(open, models.SlotOutcome{
				SlotID:    snapSlot.Slot.ID,
				Reason:    models.ReasonUnassigned,
				Mandatory: snapSlot.Slot.Mandatory,
			})
			continue
		}
		decided = append(decided, SlotDecision{Slot: snapSlot.Slot, AcolyteID: acolyteID})
	}
	return decided, open
}
