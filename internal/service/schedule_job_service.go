package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/dto"
	"github.com/parishops/acolyte-scheduler-api/internal/models"
	appErrors "github.com/parishops/acolyte-scheduler-api/pkg/errors"
	"github.com/parishops/acolyte-scheduler-api/pkg/jobs"
	"github.com/parishops/acolyte-scheduler-api/pkg/solver"
)

// jobTypeSchedule is the queue job type for schedule runs.
const jobTypeSchedule = "schedule_run"

// staleJobAge bounds how long a running job may outlive its process before
// recovery marks it failed.
const staleJobAge = time.Hour

type jobStore interface {
	Create(ctx context.Context, job *models.ScheduleJob) error
	FindByID(ctx context.Context, jobID string) (*models.ScheduleJob, error)
	Claim(ctx context.Context, jobID string) (bool, error)
	Finish(ctx context.Context, jobID string, status models.JobStatus, summary models.JobSummary, errorMessage *string) error
	ListPendingIDs(ctx context.Context) ([]string, error)
	FailStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

type snapshotBuilder interface {
	Build(ctx context.Context, job *models.ScheduleJob) (*ScheduleSnapshot, error)
}

type decisionCommitter interface {
	Commit(ctx context.Context, job *models.ScheduleJob, decisions []SlotDecision) (*CommitResult, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type engineMetrics interface {
	ObserveJob(status string, duration time.Duration, filled, open int)
	ObserveSolve(status string, duration time.Duration)
}

// ScheduleJobConfig governs schedule run behaviour.
type ScheduleJobConfig struct {
	DefaultHorizonDays int
	SolveTimeout       time.Duration
	SolverSeed         int64
}

// ScheduleJobService owns the job lifecycle: submission, the pending to
// terminal state machine and the snapshot/solve/commit pipeline. One run
// per parish at a time; competing runs stay pending and are retried by the
// queue.
type ScheduleJobService struct {
	store     jobStore
	snapshots snapshotBuilder
	committer decisionCommitter
	queue     jobEnqueuer
	metrics   engineMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleJobConfig

	mu     sync.Mutex
	scopes map[string]bool
}

// NewScheduleJobService wires the job lifecycle dependencies.
func NewScheduleJobService(
	store jobStore,
	snapshots snapshotBuilder,
	committer decisionCommitter,
	queue jobEnqueuer,
	metrics engineMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleJobConfig,
) *ScheduleJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultHorizonDays <= 0 {
		cfg.DefaultHorizonDays = 60
	}
	if cfg.SolveTimeout <= 0 {
		cfg.SolveTimeout = 15 * time.Second
	}
	return &ScheduleJobService{
		store:     store,
		snapshots: snapshots,
		committer: committer,
		queue:     queue,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		scopes:    map[string]bool{},
	}
}

// Submit validates the request, persists a pending job and enqueues it.
func (s *ScheduleJobService) Submit(ctx context.Context, req dto.SubmitJobRequest) (*models.ScheduleJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule request")
	}
	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = s.cfg.DefaultHorizonDays
	}

	job := &models.ScheduleJob{
		ParishID:       req.ParishID,
		CommunityID:    req.CommunityID,
		HorizonDays:    horizon,
		ForceRepublish: req.ForceRepublish,
	}
	if err := s.store.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: jobTypeSchedule, Payload: job.ID}); err != nil {
		// The row stays pending; startup recovery re-enqueues it.
		s.logger.Error("enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("schedule job submitted",
		zap.String("job_id", job.ID),
		zap.String("parish_id", job.ParishID),
		zap.Int("horizon_days", job.HorizonDays),
		zap.Bool("force_republish", job.ForceRepublish),
	)
	return job, nil
}

// Status returns the job's current state.
func (s *ScheduleJobService) Status(ctx context.Context, jobID string) (*models.ScheduleJob, error) {
	job, err := s.store.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule job not found")
		}
		return nil, err
	}
	return job, nil
}

// Handle is the queue handler for schedule runs. Returning an error makes
// the queue retry, which is reserved for scope contention; run failures are
// recorded on the job row instead.
func (s *ScheduleJobService) Handle(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", queued.Payload)
	}
	job, err := s.store.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	if !s.tryAcquireScope(job.ParishID) {
		// Queued behind a running same-scope job; the retry must not count
		// against the attempt limit, however long the running solve takes.
		return jobs.Transient(appErrors.ErrScopeBusy)
	}
	defer s.releaseScope(job.ParishID)

	claimed, err := s.store.Claim(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	start := time.Now()
	summary, runErr := s.run(ctx, job)
	status := summaryStatus(summary, runErr)

	var message *string
	if runErr != nil {
		text := runErr.Error()
		message = &text
		s.logger.Error("schedule run failed", zap.String("job_id", jobID), zap.Error(runErr))
	}
	summary.DurationMillis = time.Since(start).Milliseconds()

	if err := s.store.Finish(ctx, jobID, status, summary, message); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ObserveJob(string(status), time.Since(start), summary.SlotsFilled, summary.SlotsOpen)
	}
	s.logger.Info("schedule job finished",
		zap.String("job_id", jobID),
		zap.String("status", string(status)),
		zap.Int("slots_filled", summary.SlotsFilled),
		zap.Int("slots_open", summary.SlotsOpen),
		zap.Int("slots_skipped", summary.SlotsSkipped),
		zap.Bool("relaxed", summary.Relaxed),
	)
	return nil
}

// run executes the snapshot, solve and commit pipeline for a claimed job.
func (s *ScheduleJobService) run(ctx context.Context, job *models.ScheduleJob) (summary models.JobSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schedule run panic: %v", r)
		}
	}()

	snap, err := s.snapshots.Build(ctx, job)
	if err != nil {
		return summary, err
	}
	summary.SlotsTotal = len(snap.Slots) + len(snap.Skipped)
	summary.SkippedSlots = snap.Skipped
	summary.SlotsSkipped = len(snap.Skipped)
	if len(snap.Slots) == 0 {
		summary.SolverStatus = string(solver.StatusOptimal)
		return summary, nil
	}

	result, relaxed, err := s.solve(ctx, snap)
	if err != nil {
		return summary, err
	}
	summary.Relaxed = relaxed
	summary.SolverStatus = string(result.status)
	summary.ObjectiveValue = result.objective

	commitResult, err := s.committer.Commit(ctx, job, result.decided)
	if err != nil {
		return summary, err
	}
	summary.Changes = commitResult.Changes
	summary.OpenSlots = result.open
	summary.SlotsOpen = len(result.open)
	summary.SkippedSlots = append(summary.SkippedSlots, commitResult.Skipped...)
	summary.SlotsSkipped = len(summary.SkippedSlots)
	summary.SlotsFilled = len(result.decided) - len(commitResult.Skipped)
	return summary, nil
}

type solveOutcome struct {
	status    solver.Status
	objective int64
	decided   []SlotDecision
	open      []models.SlotOutcome
}

// solve runs the strict model first, then retries with mandatory coverage
// relaxed when the instance is infeasible. A deadline that expires with no
// incumbent is a retryable failure and never triggers relaxation.
func (s *ScheduleJobService) solve(ctx context.Context, snap *ScheduleSnapshot) (*solveOutcome, bool, error) {
	outcome, status, err := s.attempt(ctx, snap, false)
	if err == nil {
		return outcome, false, nil
	}
	if status != solver.StatusInfeasible {
		return nil, false, err
	}

	s.logger.Warn("strict model infeasible, relaxing mandatory coverage",
		zap.String("parish_id", snap.Parish.ID))
	outcome, _, err = s.attempt(ctx, snap, true)
	if err != nil {
		return nil, true, err
	}
	return outcome, true, nil
}

func (s *ScheduleJobService) attempt(ctx context.Context, snap *ScheduleSnapshot, relaxed bool) (*solveOutcome, solver.Status, error) {
	sm := buildScheduleModel(snap, relaxed)
	start := time.Now()
	result := sm.model.Maximize(ctx, solver.Options{Deadline: s.cfg.SolveTimeout, Seed: s.cfg.SolverSeed})
	if s.metrics != nil {
		s.metrics.ObserveSolve(string(result.Status), time.Since(start))
	}
	switch result.Status {
	case solver.StatusOptimal, solver.StatusFeasible:
	default:
		return nil, result.Status, fmt.Errorf("solver returned %s", result.Status)
	}
	decided, open := sm.decisions(snap, result.Values)
	return &solveOutcome{
		status:    result.Status,
		objective: result.Objective,
		decided:   decided,
		open:      open,
	}, result.Status, nil
}

// summaryStatus maps a finished run onto the job state machine. Optional
// slots left open or skipped do not demote a run; only an uncovered
// mandatory slot makes it partial.
func summaryStatus(summary models.JobSummary, runErr error) models.JobStatus {
	if runErr != nil {
		return models.JobStatusFailed
	}
	for _, outcome := range summary.OpenSlots {
		if outcome.Mandatory {
			return models.JobStatusPartial
		}
	}
	for _, outcome := range summary.SkippedSlots {
		if outcome.Mandatory {
			return models.JobStatusPartial
		}
	}
	return models.JobStatusSucceeded
}

// RecoverPending fails abandoned running jobs and re-enqueues pending ones.
// Called once at startup.
func (s *ScheduleJobService) RecoverPending(ctx context.Context) error {
	stale, err := s.store.FailStale(ctx, staleJobAge)
	if err != nil {
		return err
	}
	if stale > 0 {
		s.logger.Warn("failed stale running jobs", zap.Int64("count", stale))
	}
	ids, err := s.store.ListPendingIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.queue.Enqueue(jobs.Job{ID: id, Type: jobTypeSchedule, Payload: id}); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		s.logger.Info("re-enqueued pending schedule jobs", zap.Int("count", len(ids)))
	}
	return nil
}

func (s *ScheduleJobService) tryAcquireScope(parishID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scopes[parishID] {
		return false
	}
	s.scopes[parishID] = true
	return true
}

func (s *ScheduleJobService) releaseScope(parishID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, parishID)
}
