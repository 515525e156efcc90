package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
	appErrors "github.com/parishops/acolyte-scheduler-api/pkg/errors"
)

type stubRoster struct {
	rows []models.RosterRow
}

func (s *stubRoster) ListRoster(context.Context, string, time.Time, time.Time) ([]models.RosterRow, error) {
	return s.rows, nil
}

type stubJobFinder struct {
	job *models.ScheduleJob
	err error
}

func (s *stubJobFinder) FindByID(context.Context, string) (*models.ScheduleJob, error) {
	return s.job, s.err
}

func TestRosterCSVContainsRows(t *testing.T) {
	roster := &stubRoster{rows: []models.RosterRow{
		{StartsAt: time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC), CommunityID: "community-1", PositionType: "thurifer", AcolyteName: "Anna"},
	}}
	svc := NewExportService(roster, &stubJobFinder{}, zap.NewNop())

	payload, err := svc.RosterCSV(context.Background(), "parish-1", time.Now(), time.Now().AddDate(0, 0, 30))
	require.NoError(t, err)
	out := string(payload)
	assert.Contains(t, out, "Date,Time,Community,Position,Acolyte")
	assert.Contains(t, out, "2026-03-08,09:00,community-1,thurifer,Anna")
}

func TestRosterPDFRenders(t *testing.T) {
	roster := &stubRoster{rows: []models.RosterRow{
		{StartsAt: time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC), CommunityID: "community-1", PositionType: "thurifer", AcolyteName: "Anna"},
	}}
	svc := NewExportService(roster, &stubJobFinder{}, zap.NewNop())

	payload, err := svc.RosterPDF(context.Background(), "parish-1", time.Now(), time.Now().AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.True(t, len(payload) > 0)
	assert.Equal(t, "%PDF", string(payload[:4]))
}

func TestJobOutcomesCSV(t *testing.T) {
	job := &models.ScheduleJob{
		ID:     "job-1",
		Status: models.JobStatusPartial,
		Summary: models.JobSummary{
			OpenSlots:    []models.SlotOutcome{{SlotID: "slot-1", Reason: models.ReasonUnassigned}},
			SkippedSlots: []models.SlotOutcome{{SlotID: "slot-2", Reason: models.ReasonNoCandidates}},
		},
	}
	svc := NewExportService(&stubRoster{}, &stubJobFinder{job: job}, zap.NewNop())

	payload, err := svc.JobOutcomesCSV(context.Background(), "job-1")
	require.NoError(t, err)
	out := string(payload)
	assert.Contains(t, out, "slot-1,open,"+models.ReasonUnassigned)
	assert.Contains(t, out, "slot-2,skipped,"+models.ReasonNoCandidates)
}

func TestJobOutcomesCSVRequiresTerminalJob(t *testing.T) {
	job := &models.ScheduleJob{ID: "job-1", Status: models.JobStatusRunning}
	svc := NewExportService(&stubRoster{}, &stubJobFinder{job: job}, zap.NewNop())

	_, err := svc.JobOutcomesCSV(context.Background(), "job-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestJobOutcomesCSVNotFound(t *testing.T) {
	svc := NewExportService(&stubRoster{}, &stubJobFinder{err: sql.ErrNoRows}, zap.NewNop())

	_, err := svc.JobOutcomesCSV(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
