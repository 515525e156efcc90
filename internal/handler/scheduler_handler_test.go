package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parishops/acolyte-scheduler-api/internal/dto"
	"github.com/parishops/acolyte-scheduler-api/internal/models"
	"github.com/parishops/acolyte-scheduler-api/internal/service"
	appErrors "github.com/parishops/acolyte-scheduler-api/pkg/errors"
)

type stubJobService struct {
	job       *models.ScheduleJob
	submitErr error
	statusErr error
	lastReq   dto.SubmitJobRequest
}

func (s *stubJobService) Submit(_ context.Context, req dto.SubmitJobRequest) (*models.ScheduleJob, error) {
	s.lastReq = req
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.job, nil
}

func (s *stubJobService) Status(context.Context, string) (*models.ScheduleJob, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return s.job, nil
}

type stubQuickFill struct {
	result *service.QuickFillResult
	err    error
}

func (s *stubQuickFill) Resolve(context.Context, string) (*service.QuickFillResult, error) {
	return s.result, s.err
}

type stubExports struct {
	csv []byte
	pdf []byte
	err error
}

func (s *stubExports) RosterCSV(context.Context, string, time.Time, time.Time) ([]byte, error) {
	return s.csv, s.err
}

func (s *stubExports) RosterPDF(context.Context, string, time.Time, time.Time) ([]byte, error) {
	return s.pdf, s.err
}

func (s *stubExports) JobOutcomesCSV(context.Context, string) ([]byte, error) {
	return s.csv, s.err
}

func newTestRouter(jobsSvc jobSubmitter, quickFill vacancyResolver, exports scheduleExporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewSchedulerHandler(jobsSvc, quickFill, exports)
	h.Register(r.Group("/api/v1"))
	return r
}

func pendingJob() *models.ScheduleJob {
	return &models.ScheduleJob{
		ID:        "job-1",
		ParishID:  "parish-1",
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSubmitJobAccepted(t *testing.T) {
	jobsSvc := &stubJobService{job: pendingJob()}
	r := newTestRouter(jobsSvc, &stubQuickFill{}, &stubExports{})

	body, _ := json.Marshal(dto.SubmitJobRequest{ParishID: "parish-1", HorizonDays: 30})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "parish-1", jobsSvc.lastReq.ParishID)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)
}

func TestSubmitJobInvalidBody(t *testing.T) {
	r := newTestRouter(&stubJobService{}, &stubQuickFill{}, &stubExports{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedule/jobs", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobStatusTerminalIncludesSummary(t *testing.T) {
	job := pendingJob()
	job.Status = models.JobStatusPartial
	job.Summary = models.JobSummary{SlotsTotal: 5, SlotsFilled: 4, SlotsOpen: 1}
	r := newTestRouter(&stubJobService{job: job}, &stubQuickFill{}, &stubExports{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/jobs/job-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"slots_filled":4`)
}

func TestJobStatusPendingOmitsSummary(t *testing.T) {
	r := newTestRouter(&stubJobService{job: pendingJob()}, &stubQuickFill{}, &stubExports{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/jobs/job-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "slots_filled")
}

func TestJobStatusNotFound(t *testing.T) {
	jobsSvc := &stubJobService{statusErr: appErrors.ErrNotFound}
	r := newTestRouter(jobsSvc, &stubQuickFill{}, &stubExports{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/jobs/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolveVacancy(t *testing.T) {
	quickFill := &stubQuickFill{result: &service.QuickFillResult{SlotID: "slot-1", Resolved: true, AcolyteID: "aco-1"}}
	r := newTestRouter(&stubJobService{}, quickFill, &stubExports{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/schedule/slots/slot-1/resolve", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"acolyte_id":"aco-1"`)
}

func TestResolveVacancyConflict(t *testing.T) {
	quickFill := &stubQuickFill{err: appErrors.ErrSlotFilled}
	r := newTestRouter(&stubJobService{}, quickFill, &stubExports{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/schedule/slots/slot-1/resolve", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExportRosterCSV(t *testing.T) {
	exports := &stubExports{csv: []byte("Date,Time\n")}
	r := newTestRouter(&stubJobService{}, &stubQuickFill{}, exports)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/roster/export?parish_id=parish-1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}

func TestExportRosterPDF(t *testing.T) {
	exports := &stubExports{pdf: []byte("%PDF-1.4")}
	r := newTestRouter(&stubJobService{}, &stubQuickFill{}, exports)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/roster/export?parish_id=parish-1&format=pdf", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestExportRosterMissingParish(t *testing.T) {
	r := newTestRouter(&stubJobService{}, &stubQuickFill{}, &stubExports{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/roster/export", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportJobOutcomes(t *testing.T) {
	exports := &stubExports{csv: []byte("Slot,State,Reason\n")}
	r := newTestRouter(&stubJobService{}, &stubQuickFill{}, exports)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schedule/jobs/job-1/export", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "job-outcomes.csv")
}
