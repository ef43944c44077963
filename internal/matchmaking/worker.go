package matchmaking

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/debate_hub/internal/events"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/store"
	"github.com/mroshb/debate_hub/pkg/logger"
)

// Threshold is the minimum score for a pair to be accepted.
const Threshold = 0.8

// MatchRecorder persists accepted pairings.
type MatchRecorder interface {
	CreateMatch(ctx context.Context, match *models.Match) error
}

type WorkerConfig struct {
	Interval        time.Duration
	MatchedTTL      time.Duration
	EventTTL        time.Duration
	DurationMinutes int
}

// Worker periodically pairs queued candidates. Ticks from every instance are
// serialized by a lease lock that expires after one interval.
type Worker struct {
	queue     *store.QueueStore
	markers   *store.Markers
	locker    *store.Locker
	publisher events.Publisher
	recorder  MatchRecorder
	cfg       WorkerConfig
	now       func() time.Time
}

func NewWorker(
	queue *store.QueueStore,
	markers *store.Markers,
	locker *store.Locker,
	publisher events.Publisher,
	recorder MatchRecorder,
	cfg WorkerConfig,
) *Worker {
	return &Worker{
		queue:     queue,
		markers:   markers,
		locker:    locker,
		publisher: publisher,
		recorder:  recorder,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start runs ticks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	logger.Info("Matching worker started", "interval", w.cfg.Interval.String())

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Matching worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil {
				logger.Error("Matching tick failed", "error", err)
			}
		}
	}
}

type pair struct {
	a, b  models.MatchCandidate
	score float64
}

// Tick runs one matching pass and returns the number of accepted pairs.
// Not holding the lock is a skip, not an error.
func (w *Worker) Tick(ctx context.Context) (matched int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in matching tick: %v", r)
		}
	}()

	token, ok, err := w.locker.Acquire(ctx, store.MatchLockKey, w.cfg.Interval)
	if err != nil {
		return 0, err
	}
	if !ok {
		logger.Debug("Matching lock held by another instance, skipping tick")
		return 0, nil
	}
	defer func() {
		if _, relErr := w.locker.Release(context.Background(), store.MatchLockKey, token); relErr != nil {
			logger.Warn("Failed to release matching lock", "error", relErr)
		}
	}()

	for {
		queue, err := w.queue.List(ctx)
		if err != nil {
			return matched, err
		}
		if len(queue) < 2 {
			return matched, nil
		}

		p, err := w.findPair(ctx, queue)
		if err != nil {
			return matched, err
		}
		if p == nil {
			return matched, nil
		}

		accepted, err := w.accept(ctx, p)
		if err != nil {
			return matched, err
		}
		if accepted {
			matched++
		}
	}
}

// findPair scans outer indexes in queue order and returns the first outer
// candidate's best partner at or above the threshold.
func (w *Worker) findPair(ctx context.Context, queue []models.MatchCandidate) (*pair, error) {
	userIDs := make([]string, len(queue))
	for i, c := range queue {
		userIDs[i] = c.UserID
	}
	recent, err := w.markers.MatchedAmong(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for i := range queue {
		a := &queue[i]
		if recent[a.UserID] {
			continue
		}

		var best *models.MatchCandidate
		bestScore := 0.0
		for j := i + 1; j < len(queue); j++ {
			b := &queue[j]
			if recent[b.UserID] || a.UserID == b.UserID {
				continue
			}
			score := Score(a, b)
			if score >= Threshold && score > bestScore {
				best = b
				bestScore = score
			}
		}

		if best != nil {
			return &pair{a: *a, b: *best, score: bestScore}, nil
		}
	}
	return nil, nil
}

func (w *Worker) accept(ctx context.Context, p *pair) (bool, error) {
	taken, err := w.queue.Take(ctx, p.a.UserID, p.b.UserID)
	if err != nil {
		return false, err
	}
	if !taken {
		// One of them left the queue since we read it; re-read and carry on.
		return false, nil
	}

	if err := w.markers.MarkMatched(ctx, w.cfg.MatchedTTL, p.a.UserID, p.b.UserID); err != nil {
		w.rollback(ctx, p, false)
		return false, err
	}

	claimed, err := w.markers.ClaimMatchEvent(ctx, p.a.UserID, p.b.UserID, w.cfg.EventTTL)
	if err != nil {
		w.rollback(ctx, p, false)
		return false, err
	}
	if !claimed {
		logger.Warn("Duplicate match event suppressed", "user_a", p.a.UserID, "user_b", p.b.UserID)
		return false, nil
	}

	evt := events.MatchFound{
		Users:           []string{p.a.UserID, p.b.UserID},
		DebateType:      p.a.DebateType,
		Mode:            p.a.Mode,
		DurationMinutes: w.cfg.DurationMinutes,
		Visibility:      "PUBLIC",
		AIModeration:    true,
		ChatEnabled:     true,
		Language:        p.a.Language,
		Timestamp:       w.now().UnixMilli(),
	}
	if err := w.publisher.Publish(ctx, events.TopicMatchFound, evt); err != nil {
		w.rollback(ctx, p, true)
		return false, err
	}

	match := &models.Match{
		UserAID:    p.a.UserID,
		UserBID:    p.b.UserID,
		DebateType: p.a.DebateType,
		Mode:       p.a.Mode,
		Language:   p.a.Language,
		Score:      p.score,
		Status:     models.MatchStatusPending,
	}
	if err := w.recorder.CreateMatch(ctx, match); err != nil {
		// History is for audit only, the event is already out.
		logger.Error("Failed to persist match", "user_a", p.a.UserID, "user_b", p.b.UserID, "error", err)
	}

	logger.Info("Match found",
		"user_a", p.a.UserID,
		"user_b", p.b.UserID,
		"score", p.score,
	)
	return true, nil
}

// rollback undoes a half-accepted pair: both users go back to the head of the
// queue with their original wait time and lose their markers, so a later tick
// can pair them again. It runs detached from ctx so a cancelled tick still cleans up.
func (w *Worker) rollback(ctx context.Context, p *pair, claimed bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if claimed {
		if err := w.markers.ReleaseMatchEvent(ctx, p.a.UserID, p.b.UserID); err != nil {
			logger.Error("Failed to release match event marker", "user_a", p.a.UserID, "user_b", p.b.UserID, "error", err)
		}
	}
	if err := w.markers.ReleaseMatched(ctx, p.a.UserID, p.b.UserID); err != nil {
		logger.Error("Failed to release matched markers", "user_a", p.a.UserID, "user_b", p.b.UserID, "error", err)
	}
	restored, err := w.queue.Restore(ctx, p.a, p.b)
	if err != nil {
		logger.Error("Failed to restore candidates to queue", "user_a", p.a.UserID, "user_b", p.b.UserID, "error", err)
		return
	}
	logger.Warn("Match rolled back", "user_a", p.a.UserID, "user_b", p.b.UserID, "restored", restored)
}
