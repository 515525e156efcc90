package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
)

type assignmentWriter interface {
	ActiveBySlotForUpdate(ctx context.Context, tx *sqlx.Tx, slotID string) (*models.Assignment, error)
	Deactivate(ctx context.Context, tx *sqlx.Tx, assignmentID, reason string) error
	Insert(ctx context.Context, tx *sqlx.Tx, assignment *models.Assignment) error
	ExistsByJob(ctx context.Context, jobID string) (bool, error)
}

type slotLocker interface {
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, slotID string) (*models.Slot, error)
}

// CommitResult summarises what a commit actually changed.
type CommitResult struct {
	Changes int
	Skipped []models.SlotOutcome
}

// CommitService writes solver decisions in a single transaction. Each slot
// is row-locked and re-checked against the live database before writing, so
// a stale snapshot can only cause skips, never double assignments.
type CommitService struct {
	assignments assignmentWriter
	slots       slotLocker
	tx          txProvider
	events      EventPublisher
	logger      *zap.Logger
}

// NewCommitService wires the commit dependencies.
func NewCommitService(assignments assignmentWriter, slots slotLocker, tx txProvider, events EventPublisher, logger *zap.Logger) *CommitService {
	if events == nil {
		events = NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitService{assignments: assignments, slots: slots, tx: tx, events: events, logger: logger}
}

// Commit persists the decisions on behalf of job. A job that already wrote
// assignments is treated as committed and skipped wholesale, which makes
// retried deliveries idempotent.
func (s *CommitService) Commit(ctx context.Context, job *models.ScheduleJob, decisions []SlotDecision) (*CommitResult, error) {
	result := &CommitResult{}
	if len(decisions) == 0 {
		return result, nil
	}

	committed, err := s.assignments.ExistsByJob(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if committed {
		s.logger.Warn("job already committed, skipping", zap.String("job_id", job.ID))
		return result, nil
	}

	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var events []models.DomainEvent
	now := time.Now().UTC()

	for _, decision := range decisions {
		slot, err := s.slots.FindByIDForUpdate(ctx, tx, decision.Slot.ID)
		if err != nil {
			return nil, err
		}
		if slot.Locked {
			result.Skipped = append(result.Skipped, models.SlotOutcome{SlotID: slot.ID, Reason: models.ReasonLockedDuringRun, Mandatory: slot.Mandatory})
			continue
		}

		current, err := s.assignments.ActiveBySlotForUpdate(ctx, tx, slot.ID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			if current.AcolyteID == decision.AcolyteID {
				continue
			}
			if !job.ForceRepublish {
				result.Skipped = append(result.Skipped, models.SlotOutcome{SlotID: slot.ID, Reason: models.ReasonCommitConflict, Mandatory: slot.Mandatory})
				continue
			}
			if err := s.assignments.Deactivate(ctx, tx, current.ID, models.EndReplacedBySolver); err != nil {
				return nil, err
			}
			events = append(events, models.DomainEvent{
				Type:       models.EventAssignmentSuperseded,
				ParishID:   slot.ParishID,
				SlotID:     slot.ID,
				AcolyteID:  current.AcolyteID,
				JobID:      job.ID,
				OccurredAt: now,
			})
		}

		jobID := job.ID
		next := &models.Assignment{
			ParishID:  slot.ParishID,
			SlotID:    slot.ID,
			AcolyteID: decision.AcolyteID,
			JobID:     &jobID,
		}
		if err := s.assignments.Insert(ctx, tx, next); err != nil {
			return nil, err
		}
		result.Changes++
		events = append(events, models.DomainEvent{
			Type:       models.EventAssignmentCreated,
			ParishID:   slot.ParishID,
			SlotID:     slot.ID,
			AcolyteID:  decision.AcolyteID,
			JobID:      job.ID,
			OccurredAt: now,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, event := range events {
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("event publish failed",
				zap.String("type", event.Type),
				zap.String("slot_id", event.SlotID),
				zap.Error(err))
		}
	}
	return result, nil
}
