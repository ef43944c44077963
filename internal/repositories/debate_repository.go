package repositories

import (
	"context"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DebateRepository keeps the durable side of debate sessions. Live state is in Redis.
type DebateRepository struct {
	db *gorm.DB
}

func NewDebateRepository(db *gorm.DB) *DebateRepository {
	return &DebateRepository{db: db}
}

// CreateSession inserts the session row together with its participants
func (r *DebateRepository) CreateSession(ctx context.Context, session *models.DebateSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &models.DebateSessionRecord{
			ID:         session.SessionID,
			Topic:      session.Topic,
			DebateType: session.DebateType,
			Mode:       session.Mode,
			State:      session.State,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create debate session")
		}

		for _, p := range session.Participants {
			if err := r.upsertParticipant(tx, session.SessionID, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddParticipant stores a participant row, updating name and role if it exists
func (r *DebateRepository) AddParticipant(ctx context.Context, sessionID string, p models.Participant) error {
	return r.upsertParticipant(r.db.WithContext(ctx), sessionID, p)
}

func (r *DebateRepository) upsertParticipant(tx *gorm.DB, sessionID string, p models.Participant) error {
	record := &models.DebateParticipantRecord{
		SessionID:    sessionID,
		UserID:       p.ID,
		Name:         p.Name,
		Role:         p.Role,
		Score:        p.Score,
		Disqualified: p.Disqualified,
		IsConnected:  p.IsConnected,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role"}),
	}).Create(record).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save participant")
	}
	return nil
}

// UpdateSessionState records a lifecycle transition
func (r *DebateRepository) UpdateSessionState(ctx context.Context, sessionID, state string, at time.Time) error {
	updates := map[string]interface{}{"state": state}
	if state == models.SessionStateOngoing {
		// Only the first start stamps started_at.
		err := r.db.WithContext(ctx).Model(&models.DebateSessionRecord{}).
			Where("id = ? AND started_at IS NULL", sessionID).
			Update("started_at", at).Error
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to stamp session start")
		}
	}

	result := r.db.WithContext(ctx).Model(&models.DebateSessionRecord{}).
		Where("id = ?", sessionID).
		Updates(updates)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update session state")
	}
	return nil
}

// AddMessage appends an accepted turn message
func (r *DebateRepository) AddMessage(ctx context.Context, sessionID string, msg models.DebateMessage) error {
	record := &models.DebateMessageRecord{
		SessionID: sessionID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Type:      msg.Type,
		SentAt:    msg.Timestamp,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save message")
	}
	return nil
}

// SetParticipantConnected mirrors tracker connectivity into the participant row
func (r *DebateRepository) SetParticipantConnected(ctx context.Context, sessionID, userID string, connected bool, lastSeen time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.DebateParticipantRecord{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Updates(map[string]interface{}{
			"is_connected": connected,
			"last_seen":    lastSeen,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update participant connectivity")
	}
	return nil
}

// SetParticipantDisqualified flags a participant
func (r *DebateRepository) SetParticipantDisqualified(ctx context.Context, sessionID, userID string) error {
	result := r.db.WithContext(ctx).Model(&models.DebateParticipantRecord{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Update("disqualified", true)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to disqualify participant")
	}
	return nil
}

// EndSession writes final scores and the verdict and marks the row ended
func (r *DebateRepository) EndSession(ctx context.Context, sessionID string, eval *models.Evaluation, endedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for userID, score := range eval.Scores {
			err := tx.Model(&models.DebateParticipantRecord{}).
				Where("session_id = ? AND user_id = ?", sessionID, userID).
				Update("score", score).Error
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update participant score")
			}
		}

		err := tx.Model(&models.DebateSessionRecord{}).
			Where("id = ?", sessionID).
			Updates(map[string]interface{}{
				"state":     models.SessionStateEnded,
				"winner_id": eval.WinnerID,
				"summary":   eval.Summary,
				"ended_at":  endedAt,
			}).Error
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to end session")
		}
		return nil
	})
}

// ListEndedSessions returns finished sessions for reporting, newest first
func (r *DebateRepository) ListEndedSessions(ctx context.Context, limit int) ([]models.DebateSessionRecord, error) {
	var sessions []models.DebateSessionRecord
	query := r.db.WithContext(ctx).
		Where("state = ?", models.SessionStateEnded).
		Order("ended_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list ended sessions")
	}
	return sessions, nil
}

// DeleteSession removes the session and its children
func (r *DebateRepository) DeleteSession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.DebateMessageRecord{}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete messages")
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&models.DebateParticipantRecord{}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete participants")
		}
		if err := tx.Where("id = ?", sessionID).Delete(&models.DebateSessionRecord{}).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete session")
		}
		return nil
	})
}
