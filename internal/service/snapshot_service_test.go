package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

type stubParishes struct {
	parish models.Parish
}

func (s *stubParishes) FindByID(context.Context, string) (*models.Parish, error) {
	parish := s.parish
	return &parish, nil
}

type stubSlots struct {
	slots []models.Slot
	byID  map[string]models.Slot
}

func (s *stubSlots) ListInWindow(_ context.Context, _ string, communityID *string, _, _ time.Time) ([]models.Slot, error) {
	if communityID == nil {
		return s.slots, nil
	}
	var filtered []models.Slot
	for _, slot := range s.slots {
		if slot.CommunityID == *communityID {
			filtered = append(filtered, slot)
		}
	}
	return filtered, nil
}

func (s *stubSlots) FindByID(_ context.Context, id string) (*models.Slot, error) {
	slot, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &slot, nil
}

func (s *stubSlots) FindByIDForUpdate(_ context.Context, _ *sqlx.Tx, id string) (*models.Slot, error) {
	slot, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &slot, nil
}

type stubAcolytes struct {
	acolytes  []models.Acolyte
	quals     []models.AcolyteQualification
	interests []models.AcolyteInterest
}

func (s *stubAcolytes) ListActive(context.Context, string) ([]models.Acolyte, error) {
	return s.acolytes, nil
}

func (s *stubAcolytes) ListQualifications(context.Context, string) ([]models.AcolyteQualification, error) {
	return s.quals, nil
}

func (s *stubAcolytes) ListInterests(context.Context, string) ([]models.AcolyteInterest, error) {
	return s.interests, nil
}

type stubAvailability struct {
	rules []models.AvailabilityRule
}

func (s *stubAvailability) ListByParish(context.Context, string) ([]models.AvailabilityRule, error) {
	return s.rules, nil
}

type stubPreferences struct {
	prefs []models.AcolytePreference
}

func (s *stubPreferences) ListByParish(context.Context, string) ([]models.AcolytePreference, error) {
	return s.prefs, nil
}

type stubStats struct {
	stats []models.AcolyteStats
}

func (s *stubStats) ListByParish(context.Context, string) ([]models.AcolyteStats, error) {
	return s.stats, nil
}

type stubAssignments struct {
	active  map[string]models.Assignment
	windows []models.AssignmentWindow
}

func (s *stubAssignments) ActiveBySlotIDs(context.Context, []string) (map[string]models.Assignment, error) {
	if s.active == nil {
		return map[string]models.Assignment{}, nil
	}
	return s.active, nil
}

func (s *stubAssignments) ListActiveWindows(context.Context, string, time.Time, time.Time) ([]models.AssignmentWindow, error) {
	return s.windows, nil
}

var defaultTestWeights = models.ScheduleWeights{
	Preference: 1, Stability: 10, LoadBalance: 2, Credit: 1,
	CreditCap: 10, ReservePenalty: 1000, FillBonus: 50,
}

func testSlot(id string, start time.Time, opts func(*models.Slot)) models.Slot {
	slot := models.Slot{
		ID:             id,
		ParishID:       "parish-1",
		InstanceID:     "mass-" + id,
		CommunityID:    "community-1",
		CandidatePool:  models.PoolAll,
		PositionTypeID: "thurifer",
		StartsAt:       start,
		EndsAt:         start.Add(time.Hour),
		Mandatory:      true,
	}
	if opts != nil {
		opts(&slot)
	}
	return slot
}

func newTestSnapshotService(slots *stubSlots, acolytes *stubAcolytes, availability *stubAvailability, assignments *stubAssignments) *SnapshotService {
	return NewSnapshotService(
		&stubParishes{parish: models.Parish{ID: "parish-1", Name: "St. Mary"}},
		slots,
		acolytes,
		availability,
		&stubPreferences{},
		&stubStats{},
		assignments,
		defaultTestWeights,
		0,
		zap.NewNop(),
	)
}

func futureSunday() time.Time {
	start := time.Now().UTC().AddDate(0, 0, 7)
	for start.Weekday() != time.Sunday {
		start = start.AddDate(0, 0, 1)
	}
	return time.Date(start.Year(), start.Month(), start.Day(), 9, 0, 0, 0, time.UTC)
}

func TestSnapshotBuildFiltersUnqualified(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-1", start, nil)}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{
			{ID: "aco-1", Active: true},
			{ID: "aco-2", Active: true},
		},
		quals: []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	svc := newTestSnapshotService(slots, acolytes, &stubAvailability{}, &stubAssignments{})

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	require.Len(t, snap.Slots, 1)
	require.Len(t, snap.Slots[0].Candidates, 1)
	assert.Equal(t, "aco-1", snap.Slots[0].Candidates[0].Acolyte.ID)
}

func TestSnapshotBuildInterestedOnlyPool(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{
		testSlot("slot-1", start, func(s *models.Slot) {
			s.CandidatePool = models.PoolInterestedOnly
			s.EventSeriesID = strPtr("series-1")
		}),
	}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}, {ID: "aco-2", Active: true}},
		quals: []models.AcolyteQualification{
			{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true},
			{AcolyteID: "aco-2", PositionTypeID: "thurifer", Qualified: true},
		},
		interests: []models.AcolyteInterest{{AcolyteID: "aco-2", EventSeriesID: "series-1", Interested: true}},
	}
	svc := newTestSnapshotService(slots, acolytes, &stubAvailability{}, &stubAssignments{})

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	require.Len(t, snap.Slots, 1)
	require.Len(t, snap.Slots[0].Candidates, 1)
	assert.Equal(t, "aco-2", snap.Slots[0].Candidates[0].Acolyte.ID)
}

func TestSnapshotBuildAvailabilityExcludes(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-1", start, nil)}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}},
		quals:    []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	availability := &stubAvailability{rules: []models.AvailabilityRule{
		{AcolyteID: "aco-1", Kind: models.RuleUnavailable, Weekday: intPtr(int(time.Sunday))},
	}}
	svc := newTestSnapshotService(slots, acolytes, availability, &stubAssignments{})

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	assert.Empty(t, snap.Slots)
	require.Len(t, snap.Skipped, 1)
	assert.Equal(t, models.ReasonNoCandidates, snap.Skipped[0].Reason)
}

func TestSnapshotBuildMissingRoleReason(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-1", start, func(s *models.Slot) {
		s.PositionTypeID = "crucifer"
	})}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}},
		quals:    []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	svc := newTestSnapshotService(slots, acolytes, &stubAvailability{}, &stubAssignments{})

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	require.Len(t, snap.Skipped, 1)
	assert.Equal(t, models.ReasonMissingRole, snap.Skipped[0].Reason)
}

func TestSnapshotBuildBusyElsewhereExcluded(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-1", start, nil)}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}},
		quals:    []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	// aco-1 already serves an overlapping locked slot outside the model.
	assignments := &stubAssignments{windows: []models.AssignmentWindow{
		{AcolyteID: "aco-1", SlotID: "slot-locked", StartsAt: start.Add(30 * time.Minute), EndsAt: start.Add(90 * time.Minute)},
	}}
	svc := newTestSnapshotService(slots, acolytes, &stubAvailability{}, assignments)

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	assert.Empty(t, snap.Slots)
	require.Len(t, snap.Skipped, 1)
	assert.Equal(t, models.ReasonNoCandidates, snap.Skipped[0].Reason)
}

func TestSnapshotBuildTakenSlotKeptWithoutForce(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-1", start, nil)}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}},
		quals:    []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	assignments := &stubAssignments{active: map[string]models.Assignment{
		"slot-1": {ID: "assign-1", SlotID: "slot-1", AcolyteID: "aco-1", IsActive: true},
	}}
	svc := newTestSnapshotService(slots, acolytes, &stubAvailability{}, assignments)

	job := &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30}
	snap, err := svc.Build(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, snap.Slots)
	assert.Empty(t, snap.Skipped)
	assert.Equal(t, "aco-1", snap.Baseline["slot-1"])

	job.ForceRepublish = true
	snap, err = svc.Build(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, snap.Slots, 1)
	assert.Equal(t, "aco-1", snap.Baseline["slot-1"])
}

func TestSnapshotBuildLockedSlotExcluded(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-1", start, func(s *models.Slot) { s.Locked = true })}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}},
		quals:    []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	svc := newTestSnapshotService(slots, acolytes, &stubAvailability{}, &stubAssignments{})

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30, ForceRepublish: true})
	require.NoError(t, err)
	assert.Empty(t, snap.Slots)
	assert.Empty(t, snap.Skipped)
}

func TestSnapshotBuildConsolidationWindowExcludes(t *testing.T) {
	near := time.Now().UTC().AddDate(0, 0, 2)
	far := time.Now().UTC().AddDate(0, 0, 20)
	slots := &stubSlots{slots: []models.Slot{
		testSlot("slot-near", near, nil),
		testSlot("slot-far", far, nil),
	}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}},
		quals:    []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	svc := NewSnapshotService(
		&stubParishes{parish: models.Parish{ID: "parish-1", Name: "St. Mary"}},
		slots,
		acolytes,
		&stubAvailability{},
		&stubPreferences{},
		&stubStats{},
		&stubAssignments{},
		defaultTestWeights,
		7,
		zap.NewNop(),
	)

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	require.Len(t, snap.Slots, 1)
	assert.Equal(t, "slot-far", snap.Slots[0].Slot.ID)
	// Slots inside the consolidation window are structural exclusions, not
	// skips the summary should report.
	assert.Empty(t, snap.Skipped)
}

func TestSnapshotBuildParishConsolidationOverride(t *testing.T) {
	near := time.Now().UTC().AddDate(0, 0, 2)
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-near", near, nil)}}
	acolytes := &stubAcolytes{
		acolytes: []models.Acolyte{{ID: "aco-1", Active: true}},
		quals:    []models.AcolyteQualification{{AcolyteID: "aco-1", PositionTypeID: "thurifer", Qualified: true}},
	}
	svc := NewSnapshotService(
		&stubParishes{parish: models.Parish{ID: "parish-1", Name: "St. Mary", ConsolidationDays: 1}},
		slots,
		acolytes,
		&stubAvailability{},
		&stubPreferences{},
		&stubStats{},
		&stubAssignments{},
		defaultTestWeights,
		7,
		zap.NewNop(),
	)

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	require.Len(t, snap.Slots, 1)
	assert.Equal(t, "slot-near", snap.Slots[0].Slot.ID)
}

func TestSnapshotBuildInvalidWindowSkipped(t *testing.T) {
	start := futureSunday()
	slots := &stubSlots{slots: []models.Slot{testSlot("slot-1", start, func(s *models.Slot) {
		s.EndsAt = s.StartsAt
	})}}
	acolytes := &stubAcolytes{acolytes: []models.Acolyte{{ID: "aco-1", Active: true}}}
	svc := newTestSnapshotService(slots, acolytes, &stubAvailability{}, &stubAssignments{})

	snap, err := svc.Build(context.Background(), &models.ScheduleJob{ID: "job-1", ParishID: "parish-1", HorizonDays: 30})
	require.NoError(t, err)
	require.Len(t, snap.Skipped, 1)
	assert.Equal(t, models.ReasonInvalidWindow, snap.Skipped[0].Reason)
}
