package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
	appErrors "github.com/parishops/acolyte-scheduler-api/pkg/errors"
	"github.com/parishops/acolyte-scheduler-api/pkg/export"
)

type rosterReader interface {
	ListRoster(ctx context.Context, parishID string, from, to time.Time) ([]models.RosterRow, error)
}

type jobFinder interface {
	FindByID(ctx context.Context, jobID string) (*models.ScheduleJob, error)
}

// ExportService renders rosters and job outcome reports as CSV or PDF.
type ExportService struct {
	roster rosterReader
	jobsDB jobFinder
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewExportService wires the export dependencies.
func NewExportService(roster rosterReader, jobsDB jobFinder, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		roster: roster,
		jobsDB: jobsDB,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

var rosterHeaders = []string{"Date", "Time", "Community", "Position", "Acolyte"}

// RosterCSV renders the active roster for the window as CSV.
func (s *ExportService) RosterCSV(ctx context.Context, parishID string, from, to time.Time) ([]byte, error) {
	data, err := s.rosterDataset(ctx, parishID, from, to)
	if err != nil {
		return nil, err
	}
	return s.csv.Render(*data)
}

// RosterPDF renders the active roster for the window as a printable PDF.
func (s *ExportService) RosterPDF(ctx context.Context, parishID string, from, to time.Time) ([]byte, error) {
	data, err := s.rosterDataset(ctx, parishID, from, to)
	if err != nil {
		return nil, err
	}
	return s.pdf.Render(*data, "Service Roster")
}

func (s *ExportService) rosterDataset(ctx context.Context, parishID string, from, to time.Time) (*export.Dataset, error) {
	rows, err := s.roster.ListRoster(ctx, parishID, from, to)
	if err != nil {
		return nil, err
	}
	data := &export.Dataset{Headers: rosterHeaders}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Date":      row.StartsAt.Format("2006-01-02"),
			"Time":      row.StartsAt.Format("15:04"),
			"Community": row.CommunityID,
			"Position":  row.PositionType,
			"Acolyte":   row.AcolyteName,
		})
	}
	return data, nil
}

// JobOutcomesCSV renders a terminal job's open and skipped slots as CSV so
// coordinators can work through them by hand.
func (s *ExportService) JobOutcomesCSV(ctx context.Context, jobID string) ([]byte, error) {
	job, err := s.jobsDB.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule job not found")
		}
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "job has not finished")
	}

	data := export.Dataset{Headers: []string{"Slot", "State", "Reason"}}
	for _, outcome := range job.Summary.OpenSlots {
		data.Rows = append(data.Rows, map[string]string{"Slot": outcome.SlotID, "State": "open", "Reason": outcome.Reason})
	}
	for _, outcome := range job.Summary.SkippedSlots {
		data.Rows = append(data.Rows, map[string]string{"Slot": outcome.SlotID, "State": "skipped", "Reason": outcome.Reason})
	}
	s.logger.Debug("job outcomes exported", zap.String("job_id", jobID), zap.Int("rows", len(data.Rows)))
	return s.csv.Render(data)
}
