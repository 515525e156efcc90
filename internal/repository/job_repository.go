package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

// JobRepository persists schedule jobs and drives their state machine.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a pending job.
func (r *JobRepository) Create(ctx context.Context, job *models.ScheduleJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = models.JobStatusPending
	const query = `INSERT INTO schedule_jobs (id, parish_id, community_id, horizon_days, force_republish, status, summary, created_at)
		VALUES (:id, :parish_id, :community_id, :horizon_days, :force_republish, :status, :summary, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create schedule job: %w", err)
	}
	return nil
}

// FindByID returns a job.
func (r *JobRepository) FindByID(ctx context.Context, jobID string) (*models.ScheduleJob, error) {
	const query = `SELECT id, parish_id, community_id, horizon_days, force_republish, status, summary,
       error_message, created_at, started_at, finished_at
FROM schedule_jobs WHERE id = $1`
	var job models.ScheduleJob
	if err := r.db.GetContext(ctx, &job, query, jobID); err != nil {
		return nil, fmt.Errorf("find schedule job: %w", err)
	}
	return &job, nil
}

// Claim transitions a pending job to running. It returns false when the job
// was already claimed or finished, so duplicate deliveries are harmless.
func (r *JobRepository) Claim(ctx context.Context, jobID string) (bool, error) {
	const query = `UPDATE schedule_jobs SET status = $2, started_at = $3 WHERE id = $1 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, jobID, models.JobStatusRunning, time.Now().UTC(), models.JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim schedule job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check claimed rows: %w", err)
	}
	return affected > 0, nil
}

// Finish moves a running job into a terminal state with its summary.
func (r *JobRepository) Finish(ctx context.Context, jobID string, status models.JobStatus, summary models.JobSummary, errorMessage *string) error {
	const query = `UPDATE schedule_jobs SET status = $2, summary = $3, error_message = $4, finished_at = $5
WHERE id = $1 AND status = $6`
	result, err := r.db.ExecContext(ctx, query, jobID, status, summary, errorMessage, time.Now().UTC(), models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("finish schedule job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check finished rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPendingIDs returns pending job ids oldest first, for startup recovery.
func (r *JobRepository) ListPendingIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT id FROM schedule_jobs WHERE status = $1 ORDER BY created_at ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, models.JobStatusPending); err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return ids, nil
}

// FailStale marks jobs stuck in running longer than maxAge as failed. Used
// at startup after a crash mid-run.
func (r *JobRepository) FailStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	const query = `UPDATE schedule_jobs SET status = $1, error_message = $2, finished_at = $3
WHERE status = $4 AND started_at < $5`
	message := "abandoned after process restart"
	result, err := r.db.ExecContext(ctx, query, models.JobStatusFailed, message, time.Now().UTC(),
		models.JobStatusRunning, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check stale rows: %w", err)
	}
	return affected, nil
}
