package matchmaking

import (
	"context"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/store"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
)

// Matchmaker guards the queue: one entry per user and no re-enqueue while the
// user's matched marker is alive.
type Matchmaker struct {
	queue   *store.QueueStore
	markers *store.Markers
	now     func() time.Time
}

func NewMatchmaker(queue *store.QueueStore, markers *store.Markers) *Matchmaker {
	return &Matchmaker{
		queue:   queue,
		markers: markers,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnqueueUser adds the candidate. Already queued or recently matched users are a
// logged no-op and return false.
func (m *Matchmaker) EnqueueUser(ctx context.Context, candidate *models.MatchCandidate) (bool, error) {
	if err := candidate.Validate(); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeValidation, err.Error())
	}

	matched, err := m.markers.IsMatched(ctx, candidate.UserID)
	if err != nil {
		return false, err
	}
	if matched {
		logger.Warn("User was matched recently, skipping enqueue", "user_id", candidate.UserID)
		return false, nil
	}

	candidate.EnqueuedAt = m.now()
	added, err := m.queue.Push(ctx, candidate)
	if err != nil {
		return false, err
	}
	if !added {
		logger.Warn("User already in matchmaking queue", "user_id", candidate.UserID)
		return false, nil
	}

	logger.Info("User added to matchmaking queue",
		"user_id", candidate.UserID,
		"debate_type", candidate.DebateType,
		"mode", candidate.Mode,
	)
	return true, nil
}

// RemoveUser is idempotent.
func (m *Matchmaker) RemoveUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New(errors.ErrCodeValidation, "userId is required")
	}
	removed, err := m.queue.Remove(ctx, userID)
	if err != nil {
		return err
	}
	if removed {
		logger.Info("User removed from matchmaking queue", "user_id", userID)
	}
	return nil
}

func (m *Matchmaker) GetQueue(ctx context.Context) ([]models.MatchCandidate, error) {
	return m.queue.List(ctx)
}

func (m *Matchmaker) IsUserQueued(ctx context.Context, userID string) (bool, error) {
	return m.queue.Contains(ctx, userID)
}

func (m *Matchmaker) ClearQueue(ctx context.Context) error {
	if err := m.queue.Clear(ctx); err != nil {
		return err
	}
	logger.Info("Matchmaking queue cleared")
	return nil
}
