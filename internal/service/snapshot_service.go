package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

type parishReader interface {
	FindByID(ctx context.Context, parishID string) (*models.Parish, error)
}

type slotReader interface {
	ListInWindow(ctx context.Context, parishID string, communityID *string, from, to time.Time) ([]models.Slot, error)
	FindByID(ctx context.Context, slotID string) (*models.Slot, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, slotID string) (*models.Slot, error)
}

type acolyteReader interface {
	ListActive(ctx context.Context, parishID string) ([]models.Acolyte, error)
	ListQualifications(ctx context.Context, parishID string) ([]models.AcolyteQualification, error)
	ListInterests(ctx context.Context, parishID string) ([]models.AcolyteInterest, error)
}

type availabilityReader interface {
	ListByParish(ctx context.Context, parishID string) ([]models.AvailabilityRule, error)
}

type preferenceReader interface {
	ListByParish(ctx context.Context, parishID string) ([]models.AcolytePreference, error)
}

type statsReader interface {
	ListByParish(ctx context.Context, parishID string) ([]models.AcolyteStats, error)
}

type assignmentReader interface {
	ActiveBySlotIDs(ctx context.Context, slotIDs []string) (map[string]models.Assignment, error)
	ListActiveWindows(ctx context.Context, parishID string, from, to time.Time) ([]models.AssignmentWindow, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Candidate is one eligible acolyte for one slot with its raw preference score.
type Candidate struct {
	Acolyte   models.Acolyte
	PrefScore int
	Reserve   bool
}

// SnapshotSlot pairs a decidable slot with its eligible candidates.
type SnapshotSlot struct {
	Slot       models.Slot
	Candidates []Candidate
}

// ScheduleSnapshot is the immutable input state for one solve: decidable
// slots with candidate sets, the incumbent baseline, load statistics and the
// merged objective weights. Database state observed after the snapshot is
// reconciled at commit time, not here.
type ScheduleSnapshot struct {
	Parish   *models.Parish
	Weights  models.ScheduleWeights
	From     time.Time
	To       time.Time
	Slots    []SnapshotSlot
	Skipped  []models.SlotOutcome
	Baseline map[string]string
	Stats    map[string]models.AcolyteStats
	MeanLoad float64
}

// SnapshotService assembles schedule snapshots from the repositories.
type SnapshotService struct {
	parishes          parishReader
	slots             slotReader
	acolytes          acolyteReader
	availability      availabilityReader
	preferences       preferenceReader
	stats             statsReader
	assignments       assignmentReader
	defaultWeight     models.ScheduleWeights
	consolidationDays int
	logger            *zap.Logger
}

// NewSnapshotService wires the snapshot dependencies. consolidationDays is
// the default lock boundary offset; a parish value overrides it.
func NewSnapshotService(
	parishes parishReader,
	slots slotReader,
	acolytes acolyteReader,
	availability availabilityReader,
	preferences preferenceReader,
	stats statsReader,
	assignments assignmentReader,
	defaults models.ScheduleWeights,
	consolidationDays int,
	logger *zap.Logger,
) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		parishes:          parishes,
		slots:             slots,
		acolytes:          acolytes,
		availability:      availability,
		preferences:       preferences,
		stats:             stats,
		assignments:       assignments,
		defaultWeight:     defaults,
		consolidationDays: consolidationDays,
		logger:            logger,
	}
}

// parishState holds the per-parish eligibility inputs shared by the full
// snapshot and the single-slot candidate derivation.
type parishState struct {
	acolytes      []models.Acolyte
	qualified     map[string]map[string]bool
	interested    map[string]map[string]bool
	rulesByAco    map[string][]models.AvailabilityRule
	prefsByAco    map[string][]models.AcolytePreference
	stats         map[string]models.AcolyteStats
	blockedRanges map[string][]models.AssignmentWindow
}

// Build assembles the snapshot for a schedule job.
func (s *SnapshotService) Build(ctx context.Context, job *models.ScheduleJob) (*ScheduleSnapshot, error) {
	parish, err := s.parishes.FindByID(ctx, job.ParishID)
	if err != nil {
		return nil, err
	}
	weights := parish.Weights.Merge(s.defaultWeight)

	from := time.Now().UTC()
	to := from.AddDate(0, 0, job.HorizonDays)
	lockBoundary := from.AddDate(0, 0, s.lockWindowDays(parish))

	slots, err := s.slots.ListInWindow(ctx, job.ParishID, job.CommunityID, from, to)
	if err != nil {
		return nil, err
	}

	state, err := s.loadParishState(ctx, job.ParishID, from, to)
	if err != nil {
		return nil, err
	}

	slotIDs := make([]string, 0, len(slots))
	for _, slot := range slots {
		slotIDs = append(slotIDs, slot.ID)
	}
	active, err := s.assignments.ActiveBySlotIDs(ctx, slotIDs)
	if err != nil {
		return nil, err
	}

	snapshot := &ScheduleSnapshot{
		Parish:   parish,
		Weights:  weights,
		From:     from,
		To:       to,
		Baseline: map[string]string{},
		Stats:    state.stats,
	}

	// Decidable slot ids first: assignments about to be re-decided must not
	// count as busy time for their holders.
	decidable := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if s.decidable(slot, active, lockBoundary, job.ForceRepublish) && slot.EndsAt.After(slot.StartsAt) {
			decidable[slot.ID] = true
		}
	}

	for _, slot := range slots {
		if current, ok := active[slot.ID]; ok {
			snapshot.Baseline[slot.ID] = current.AcolyteID
		}
		if !s.decidable(slot, active, lockBoundary, job.ForceRepublish) {
			continue
		}
		if !slot.EndsAt.After(slot.StartsAt) {
			snapshot.Skipped = append(snapshot.Skipped, models.SlotOutcome{SlotID: slot.ID, Reason: models.ReasonInvalidWindow, Mandatory: slot.Mandatory})
			continue
		}
		candidates, reason := s.candidatesFor(slot, state, decidable)
		if len(candidates) == 0 {
			snapshot.Skipped = append(snapshot.Skipped, models.SlotOutcome{SlotID: slot.ID, Reason: reason, Mandatory: slot.Mandatory})
			continue
		}
		snapshot.Slots = append(snapshot.Slots, SnapshotSlot{Slot: slot, Candidates: candidates})
	}

	snapshot.MeanLoad = meanLoad(state.acolytes, state.stats)

	s.logger.Info("snapshot built",
		zap.String("parish_id", job.ParishID),
		zap.String("job_id", job.ID),
		zap.Int("slots_decidable", len(snapshot.Slots)),
		zap.Int("slots_skipped", len(snapshot.Skipped)),
		zap.Int("acolytes", len(state.acolytes)),
	)
	return snapshot, nil
}

// CandidatesForSlot derives the eligible candidates for one slot, reusing
// the snapshot eligibility rules. Used by vacancy resolution.
func (s *SnapshotService) CandidatesForSlot(ctx context.Context, slot models.Slot) ([]Candidate, string, error) {
	state, err := s.loadParishState(ctx, slot.ParishID, slot.StartsAt, slot.EndsAt)
	if err != nil {
		return nil, "", err
	}
	candidates, reason := s.candidatesFor(slot, state, map[string]bool{slot.ID: true})
	return candidates, reason, nil
}

func (s *SnapshotService) loadParishState(ctx context.Context, parishID string, from, to time.Time) (*parishState, error) {
	acolytes, err := s.acolytes.ListActive(ctx, parishID)
	if err != nil {
		return nil, err
	}
	quals, err := s.acolytes.ListQualifications(ctx, parishID)
	if err != nil {
		return nil, err
	}
	interests, err := s.acolytes.ListInterests(ctx, parishID)
	if err != nil {
		return nil, err
	}
	rules, err := s.availability.ListByParish(ctx, parishID)
	if err != nil {
		return nil, err
	}
	prefs, err := s.preferences.ListByParish(ctx, parishID)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats.ListByParish(ctx, parishID)
	if err != nil {
		return nil, err
	}
	windows, err := s.assignments.ListActiveWindows(ctx, parishID, from, to)
	if err != nil {
		return nil, err
	}

	state := &parishState{
		acolytes:      acolytes,
		qualified:     map[string]map[string]bool{},
		interested:    map[string]map[string]bool{},
		rulesByAco:    map[string][]models.AvailabilityRule{},
		prefsByAco:    map[string][]models.AcolytePreference{},
		stats:         map[string]models.AcolyteStats{},
		blockedRanges: map[string][]models.AssignmentWindow{},
	}
	for _, q := range quals {
		if state.qualified[q.AcolyteID] == nil {
			state.qualified[q.AcolyteID] = map[string]bool{}
		}
		state.qualified[q.AcolyteID][q.PositionTypeID] = true
	}
	for _, i := range interests {
		if state.interested[i.AcolyteID] == nil {
			state.interested[i.AcolyteID] = map[string]bool{}
		}
		state.interested[i.AcolyteID][i.EventSeriesID] = true
	}
	for _, rule := range rules {
		state.rulesByAco[rule.AcolyteID] = append(state.rulesByAco[rule.AcolyteID], rule)
	}
	for _, pref := range prefs {
		state.prefsByAco[pref.AcolyteID] = append(state.prefsByAco[pref.AcolyteID], pref)
	}
	for _, st := range stats {
		state.stats[st.AcolyteID] = st
	}
	for _, w := range windows {
		state.blockedRanges[w.AcolyteID] = append(state.blockedRanges[w.AcolyteID], w)
	}
	return state, nil
}

// candidatesFor filters the parish's acolytes down to those eligible for the
// slot. The returned reason explains an empty result.
func (s *SnapshotService) candidatesFor(slot models.Slot, state *parishState, decidable map[string]bool) ([]Candidate, string) {
	anyQualified := false
	var candidates []Candidate
	for _, acolyte := range state.acolytes {
		if !state.qualified[acolyte.ID][slot.PositionTypeID] {
			continue
		}
		anyQualified = true
		if slot.CandidatePool == models.PoolInterestedOnly && slot.EventSeriesID != nil {
			if !state.interested[acolyte.ID][*slot.EventSeriesID] {
				continue
			}
		}
		if !models.Available(state.rulesByAco[acolyte.ID], slot.StartsAt, slot.CommunityID) {
			continue
		}
		if s.busyElsewhere(acolyte.ID, slot, state, decidable) {
			continue
		}
		candidates = append(candidates, Candidate{
			Acolyte:   acolyte,
			PrefScore: models.PreferenceScore(state.prefsByAco[acolyte.ID], slot),
			Reserve:   acolyte.SchedulingMode == models.ModeReserve,
		})
	}
	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].Acolyte.ID < candidates[b].Acolyte.ID
	})
	if len(candidates) > 0 {
		return candidates, ""
	}
	if !anyQualified {
		return nil, models.ReasonMissingRole
	}
	return nil, models.ReasonNoCandidates
}

// busyElsewhere reports whether the acolyte holds a committed assignment
// overlapping the slot. Assignments on slots the solver is about to
// re-decide do not count.
func (s *SnapshotService) busyElsewhere(acolyteID string, slot models.Slot, state *parishState, decidable map[string]bool) bool {
	for _, w := range state.blockedRanges[acolyteID] {
		if w.SlotID == slot.ID || decidable[w.SlotID] {
			continue
		}
		if slot.StartsAt.Before(w.EndsAt) && w.StartsAt.Before(slot.EndsAt) {
			return true
		}
	}
	return false
}

// decidable reports whether the solver may choose this slot's assignee.
// Slots starting inside the consolidation window are treated as locked even
// when the lock-transition job has not flagged them yet.
func (s *SnapshotService) decidable(slot models.Slot, active map[string]models.Assignment, lockBoundary time.Time, forceRepublish bool) bool {
	if slot.Locked || slot.StartsAt.Before(lockBoundary) {
		return false
	}
	if _, taken := active[slot.ID]; taken && !forceRepublish {
		return false
	}
	return true
}

// lockWindowDays resolves the consolidation window, preferring the parish
// setting over the configured default.
func (s *SnapshotService) lockWindowDays(parish *models.Parish) int {
	if parish.ConsolidationDays > 0 {
		return parish.ConsolidationDays
	}
	return s.consolidationDays
}

func meanLoad(acolytes []models.Acolyte, stats map[string]models.AcolyteStats) float64 {
	if len(acolytes) == 0 {
		return 0
	}
	total := 0.0
	for _, a := range acolytes {
		total += stats[a.ID].RecentLoad
	}
	return total / float64(len(acolytes))
}
