package events

import (
	"time"

	"github.com/mroshb/debate_hub/internal/models"
)

// Topics
const (
	TopicMatchFound         = "matchmaking.match.found"
	TopicSessionStart       = "debate.session.start"
	TopicDebateStarted      = "debate.started"
	TopicDebateEnded        = "debate.ended"
	TopicModerationRequest  = "moderation.request"
	TopicModerationResult   = "moderation.result"
	TopicAIModerationResult = "ai.moderation.result"
)

// MatchFound is emitted once per accepted pair.
type MatchFound struct {
	Users           []string `json:"users"`
	DebateType      string   `json:"debateType"`
	Mode            string   `json:"mode"`
	DurationMinutes int      `json:"duration_minutes"`
	Visibility      string   `json:"visibility"`
	AIModeration    bool     `json:"ai_moderation"`
	ChatEnabled     bool     `json:"chat_enabled"`
	Language        string   `json:"language,omitempty"`
	Timestamp       int64    `json:"timestamp"`
}

type UserDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionStart asks the session service to materialize a debate.
type SessionStart struct {
	DebateID   string         `json:"debateId"`
	User1      UserDescriptor `json:"user1"`
	User2      UserDescriptor `json:"user2"`
	Topic      string         `json:"topic,omitempty"`
	DebateType string         `json:"debateType"`
	Mode       string         `json:"mode"`
	Rules      *models.Rules  `json:"rules,omitempty"`
}

type DebateStarted struct {
	SessionID    string    `json:"sessionId"`
	Participants []string  `json:"participants"`
	StartedAt    time.Time `json:"startedAt"`
}

type DebateEnded struct {
	SessionID   string         `json:"sessionId"`
	WinnerID    *string        `json:"winnerId"`
	IsDraw      bool           `json:"isDraw"`
	Scores      map[string]int `json:"scores"`
	Summary     string         `json:"summary"`
	EndedAt     time.Time      `json:"endedAt"`
	ElapsedSecs int64          `json:"elapsedSeconds"`
	Reason      string         `json:"reason,omitempty"`
}

// ModerationRequest carries an accepted turn message plus recent context.
type ModerationRequest struct {
	SessionID string                 `json:"sessionId"`
	Message   models.DebateMessage   `json:"message"`
	Context   []models.DebateMessage `json:"context"`
}

// Moderation actions
const (
	ModerationActionNone       = "none"
	ModerationActionWarn       = "warn"
	ModerationActionDisqualify = "disqualify"
)

// ModerationResult is the feedback from the moderation service. It never gates turns.
type ModerationResult struct {
	SessionID     string  `json:"sessionId"`
	ParticipantID string  `json:"participantId"`
	Flagged       bool    `json:"flagged"`
	Score         float64 `json:"score"`
	Reason        string  `json:"reason,omitempty"`
	Action        string  `json:"action,omitempty"`
}
