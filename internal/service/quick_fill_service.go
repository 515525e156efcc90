package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parishops/acolyte-scheduler-api/internal/models"
	appErrors "github.com/parishops/acolyte-scheduler-api/pkg/errors"
)

type slotCandidateSource interface {
	CandidatesForSlot(ctx context.Context, slot models.Slot) ([]Candidate, string, error)
}

// quickFillAssignments extends the writer with a transactional window read,
// so the chosen candidate's availability is re-checked against rows committed
// after the ranking was cached.
type quickFillAssignments interface {
	assignmentWriter
	ActiveWindowsOverlapping(ctx context.Context, tx *sqlx.Tx, parishID string, from, to time.Time) ([]models.AssignmentWindow, error)
}

// CandidateCache stores derived candidate lists between resolution attempts
// for the same vacancy.
type CandidateCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCandidateCache adapts a Redis client to the candidate cache.
type RedisCandidateCache struct {
	client *redis.Client
}

// NewRedisCandidateCache constructs the cache adapter.
func NewRedisCandidateCache(client *redis.Client) *RedisCandidateCache {
	return &RedisCandidateCache{client: client}
}

// Get fetches a cached value; a miss returns redis.Nil.
func (c *RedisCandidateCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// Set stores a value with expiry.
func (c *RedisCandidateCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// scoredCandidate is the cache and ranking representation for quick fill.
type scoredCandidate struct {
	AcolyteID string `json:"acolyte_id"`
	Score     int    `json:"score"`
}

type quickFillMetrics interface {
	ObserveQuickFill(outcome string)
}

// QuickFillResult describes the outcome of a vacancy resolution attempt.
type QuickFillResult struct {
	SlotID    string
	Resolved  bool
	AcolyteID string
	Reason    string
}

// QuickFillService resolves single vacancies on locked slots with a greedy
// heuristic instead of a full solve. The solver never touches locked slots,
// so quick fill is the only writer competing for them.
type QuickFillService struct {
	slots       slotReader
	candidates  slotCandidateSource
	assignments quickFillAssignments
	stats       statsReader
	tx          txProvider
	events      EventPublisher
	cache       CandidateCache
	cacheTTL    time.Duration
	metrics     quickFillMetrics
	logger      *zap.Logger
}

// NewQuickFillService wires the quick fill dependencies. cache and metrics
// may be nil.
func NewQuickFillService(
	slots slotReader,
	candidates slotCandidateSource,
	assignments quickFillAssignments,
	stats statsReader,
	tx txProvider,
	events EventPublisher,
	cache CandidateCache,
	cacheTTL time.Duration,
	metrics quickFillMetrics,
	logger *zap.Logger,
) *QuickFillService {
	if events == nil {
		events = NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &QuickFillService{
		slots:       slots,
		candidates:  candidates,
		assignments: assignments,
		stats:       stats,
		tx:          tx,
		events:      events,
		cache:       cache,
		cacheTTL:    cacheTTL,
		metrics:     metrics,
		logger:      logger,
	}
}

// Resolve assigns the best available acolyte to a locked, open slot.
func (s *QuickFillService) Resolve(ctx context.Context, slotID string) (*QuickFillResult, error) {
	slot, err := s.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, err
	}
	if !slot.Locked {
		return nil, appErrors.ErrSlotNotLocked
	}

	ranked, err := s.rankedCandidates(ctx, *slot)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		s.publish(ctx, models.DomainEvent{
			Type:       models.EventVacancyOpen,
			ParishID:   slot.ParishID,
			SlotID:     slot.ID,
			OccurredAt: time.Now().UTC(),
		})
		s.observe("unresolved")
		return &QuickFillResult{SlotID: slot.ID, Reason: models.ReasonManualResolution}, nil
	}

	chosen, err := s.commit(ctx, slot, ranked)
	if err != nil {
		return nil, err
	}
	if chosen == "" {
		// Every ranked candidate picked up another service since the ranking
		// was cached.
		s.publish(ctx, models.DomainEvent{
			Type:       models.EventVacancyOpen,
			ParishID:   slot.ParishID,
			SlotID:     slot.ID,
			OccurredAt: time.Now().UTC(),
		})
		s.observe("unresolved")
		return &QuickFillResult{SlotID: slot.ID, Reason: models.ReasonManualResolution}, nil
	}

	s.publish(ctx, models.DomainEvent{
		Type:       models.EventVacancyResolved,
		ParishID:   slot.ParishID,
		SlotID:     slot.ID,
		AcolyteID:  chosen,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("vacancy resolved", zap.String("slot_id", slot.ID), zap.String("acolyte_id", chosen))
	s.observe("resolved")
	return &QuickFillResult{SlotID: slot.ID, Resolved: true, AcolyteID: chosen}, nil
}

func (s *QuickFillService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveQuickFill(outcome)
	}
}

// rankedCandidates returns candidates best first, from cache when possible.
func (s *QuickFillService) rankedCandidates(ctx context.Context, slot models.Slot) ([]scoredCandidate, error) {
	key := "quickfill:candidates:" + slot.ID
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached []scoredCandidate
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	candidates, _, err := s.candidates.CandidatesForSlot(ctx, slot)
	if err != nil {
		return nil, err
	}
	statRows, err := s.stats.ListByParish(ctx, slot.ParishID)
	if err != nil {
		return nil, err
	}
	statsByAco := make(map[string]models.AcolyteStats, len(statRows))
	for _, st := range statRows {
		statsByAco[st.AcolyteID] = st
	}

	ranked := make([]scoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		ranked = append(ranked, scoredCandidate{
			AcolyteID: cand.Acolyte.ID,
			Score:     quickFillScore(cand, statsByAco[cand.Acolyte.ID]),
		})
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		return ranked[a].AcolyteID < ranked[b].AcolyteID
	})

	if s.cache != nil {
		if payload, err := json.Marshal(ranked); err == nil {
			if err := s.cache.Set(ctx, key, string(payload), s.cacheTTL); err != nil {
				s.logger.Debug("candidate cache write failed", zap.String("slot_id", slot.ID), zap.Error(err))
			}
		}
	}
	return ranked, nil
}

// quickFillScore ranks a candidate for immediate substitution: preferences
// first, reserves last, lightly loaded and reliable acolytes ahead.
func quickFillScore(cand Candidate, stats models.AcolyteStats) int {
	score := cand.PrefScore
	if cand.Reserve {
		score -= 1000
	}
	if relief := 10 - int(stats.RecentLoad/2); relief > 0 {
		score += relief
	}
	score += stats.ReliabilityScore / 25
	return score
}

func (s *QuickFillService) commit(ctx context.Context, slot *models.Slot, ranked []scoredCandidate) (string, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := s.slots.FindByIDForUpdate(ctx, tx, slot.ID); err != nil {
		return "", err
	}
	current, err := s.assignments.ActiveBySlotForUpdate(ctx, tx, slot.ID)
	if err != nil {
		return "", err
	}
	if current != nil {
		return "", appErrors.ErrSlotFilled
	}

	// The ranking may be minutes old. Re-read overlapping assignments inside
	// the transaction and skip candidates that are no longer free.
	windows, err := s.assignments.ActiveWindowsOverlapping(ctx, tx, slot.ParishID, slot.StartsAt, slot.EndsAt)
	if err != nil {
		return "", err
	}
	busy := make(map[string]bool, len(windows))
	for _, w := range windows {
		if w.SlotID == slot.ID {
			continue
		}
		busy[w.AcolyteID] = true
	}

	var chosen string
	for _, cand := range ranked {
		if !busy[cand.AcolyteID] {
			chosen = cand.AcolyteID
			break
		}
	}
	if chosen == "" {
		return "", nil
	}

	next := &models.Assignment{
		ParishID:  slot.ParishID,
		SlotID:    slot.ID,
		AcolyteID: chosen,
	}
	if err := s.assignments.Insert(ctx, tx, next); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return chosen, nil
}

func (s *QuickFillService) publish(ctx context.Context, event models.DomainEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", event.Type), zap.String("slot_id", event.SlotID), zap.Error(err))
	}
}
