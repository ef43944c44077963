package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mroshb/debate_hub/internal/events"
	"github.com/mroshb/debate_hub/internal/models"
	"github.com/mroshb/debate_hub/internal/store"
	"github.com/mroshb/debate_hub/pkg/errors"
	"github.com/mroshb/debate_hub/pkg/logger"
)

// RegisterConsumers wires the manager to the bus topics it consumes.
func RegisterConsumers(sub events.Subscriber, m *Manager) error {
	handlers := map[string]events.Handler{
		events.TopicMatchFound:         m.handleMatchFound,
		events.TopicSessionStart:       m.handleSessionStart,
		events.TopicModerationResult:   m.handleModerationResult,
		events.TopicAIModerationResult: m.handleModerationResult,
	}
	for topic, h := range handlers {
		if err := sub.Subscribe(topic, h); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// MatchSessionID derives a stable session id from a match event so a
// redelivered event maps to the same session.
func MatchSessionID(evt events.MatchFound) string {
	if len(evt.Users) != 2 {
		return ""
	}
	name := fmt.Sprintf("debate-hub/match/%s/%d", store.PairKey(evt.Users[0], evt.Users[1]), evt.Timestamp)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (m *Manager) handleMatchFound(ctx context.Context, data []byte) error {
	var evt events.MatchFound
	if err := events.Decode(data, &evt); err != nil {
		return err
	}
	if len(evt.Users) != 2 {
		return errors.Newf(errors.ErrCodeValidation, "match event needs two users, got %d", len(evt.Users))
	}

	rules := m.defaultRules(evt.DebateType)
	rules.AllowChat = evt.ChatEnabled

	session, err := m.CreateSession(ctx, CreateSessionRequest{
		SessionID:    MatchSessionID(evt),
		DebateType:   evt.DebateType,
		Mode:         evt.Mode,
		DurationMins: evt.DurationMinutes,
		Participants: []models.Participant{
			{ID: evt.Users[0], Role: models.RolePro},
			{ID: evt.Users[1], Role: models.RoleCon},
		},
		Rules: &rules,
	})
	if errors.Is(err, errors.ErrCodeAlreadyExists) {
		logger.Info("Duplicate match event ignored", "users", evt.Users)
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("Session created from match", "session_id", session.SessionID, "users", evt.Users)
	return nil
}

func (m *Manager) handleSessionStart(ctx context.Context, data []byte) error {
	var evt events.SessionStart
	if err := events.Decode(data, &evt); err != nil {
		return err
	}

	_, err := m.CreateSession(ctx, CreateSessionRequest{
		SessionID:  evt.DebateID,
		Topic:      evt.Topic,
		DebateType: evt.DebateType,
		Mode:       evt.Mode,
		Participants: []models.Participant{
			{ID: evt.User1.ID, Name: evt.User1.Name, Role: models.RolePro},
			{ID: evt.User2.ID, Name: evt.User2.Name, Role: models.RoleCon},
		},
		Rules: evt.Rules,
	})
	if errors.Is(err, errors.ErrCodeAlreadyExists) {
		logger.Info("Duplicate session start ignored", "session_id", evt.DebateID)
		return nil
	}
	return err
}

// handleModerationResult records feedback. Only an explicit disqualify action changes the session.
func (m *Manager) handleModerationResult(ctx context.Context, data []byte) error {
	var res events.ModerationResult
	if err := events.Decode(data, &res); err != nil {
		return err
	}

	logger.Info("Moderation result received",
		"session_id", res.SessionID,
		"participant_id", res.ParticipantID,
		"flagged", res.Flagged,
		"score", res.Score,
		"action", res.Action,
	)
	if res.Action != events.ModerationActionDisqualify || res.ParticipantID == "" {
		return nil
	}

	_, err := m.DisqualifyParticipant(ctx, res.SessionID, res.ParticipantID, res.Reason)
	if errors.Is(err, errors.ErrCodeConflict) || errors.Is(err, errors.ErrCodeNotFound) {
		logger.Warn("Moderation disqualify skipped", "session_id", res.SessionID, "error", err)
		return nil
	}
	return err
}
