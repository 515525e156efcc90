package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parishops/acolyte-scheduler-api/internal/dto"
	"github.com/parishops/acolyte-scheduler-api/internal/models"
	"github.com/parishops/acolyte-scheduler-api/internal/service"
	appErrors "github.com/parishops/acolyte-scheduler-api/pkg/errors"
	"github.com/parishops/acolyte-scheduler-api/pkg/response"
)

const defaultRosterDays = 30

type jobSubmitter interface {
	Submit(ctx context.Context, req dto.SubmitJobRequest) (*models.ScheduleJob, error)
	Status(ctx context.Context, jobID string) (*models.ScheduleJob, error)
}

type vacancyResolver interface {
	Resolve(ctx context.Context, slotID string) (*service.QuickFillResult, error)
}

type scheduleExporter interface {
	RosterCSV(ctx context.Context, parishID string, from, to time.Time) ([]byte, error)
	RosterPDF(ctx context.Context, parishID string, from, to time.Time) ([]byte, error)
	JobOutcomesCSV(ctx context.Context, jobID string) ([]byte, error)
}

// SchedulerHandler exposes the scheduling engine over HTTP.
type SchedulerHandler struct {
	jobs      jobSubmitter
	quickFill vacancyResolver
	exports   scheduleExporter
}

// NewSchedulerHandler constructs the handler.
func NewSchedulerHandler(jobs jobSubmitter, quickFill vacancyResolver, exports scheduleExporter) *SchedulerHandler {
	return &SchedulerHandler{jobs: jobs, quickFill: quickFill, exports: exports}
}

// Register mounts the scheduler routes on the group.
func (h *SchedulerHandler) Register(group *gin.RouterGroup) {
	schedule := group.Group("/schedule")
	schedule.POST("/jobs", h.SubmitJob)
	schedule.GET("/jobs/:id", h.JobStatus)
	schedule.GET("/jobs/:id/export", h.ExportJobOutcomes)
	schedule.POST("/slots/:id/resolve", h.ResolveVacancy)
	schedule.GET("/roster/export", h.ExportRoster)
}

// SubmitJob accepts a schedule run request and returns 202 with the job id.
func (h *SchedulerHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule request"))
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.JobResponse{JobID: job.ID, Status: string(job.Status)})
}

// JobStatus reports job progress and the terminal summary.
func (h *SchedulerHandler) JobStatus(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.JobStatusResponse{
		JobID:        job.ID,
		ParishID:     job.ParishID,
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
	}
	if job.Status.Terminal() {
		resp.Summary = job.Summary
	}
	response.JSON(c, http.StatusOK, resp)
}

// ResolveVacancy runs the quick fill heuristic on a locked slot.
func (h *SchedulerHandler) ResolveVacancy(c *gin.Context) {
	result, err := h.quickFill.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ResolveVacancyResponse{
		SlotID:    result.SlotID,
		Resolved:  result.Resolved,
		AcolyteID: result.AcolyteID,
		Reason:    result.Reason,
	})
}

// ExportJobOutcomes downloads a terminal job's open and skipped slots as CSV.
func (h *SchedulerHandler) ExportJobOutcomes(c *gin.Context) {
	payload, err := h.exports.JobOutcomesCSV(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="job-outcomes.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}

// ExportRoster downloads the active roster as CSV or PDF.
func (h *SchedulerHandler) ExportRoster(c *gin.Context) {
	var query dto.RosterExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	if query.ParishID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "parish_id is required"))
		return
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	if query.From != "" {
		parsed, err := time.Parse("2006-01-02", query.From)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	days := query.Days
	if days <= 0 {
		days = defaultRosterDays
	}
	to := from.AddDate(0, 0, days)

	if query.Format == "pdf" {
		payload, err := h.exports.RosterPDF(c.Request.Context(), query.ParishID, from, to)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="roster.pdf"`)
		c.Data(http.StatusOK, "application/pdf", payload)
		return
	}

	payload, err := h.exports.RosterCSV(c.Request.Context(), query.ParishID, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="roster.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}
