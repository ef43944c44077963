package models

import (
	"time"
)

// Session state constants
const (
	SessionStateWaiting = "waiting"
	SessionStateOngoing = "ongoing"
	SessionStatePaused  = "paused"
	SessionStateEnded   = "ended"
)

// Participant role constants
const (
	RolePro = "pro"
	RoleCon = "con"
)

// Message type constants
const (
	MessageTypeChat  = "chat"
	MessageTypeVoice = "voice"
	MessageTypeVideo = "video"
)

type Participant struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Role            string `json:"role"`
	Score           int    `json:"score"`
	ScoreOverridden bool   `json:"scoreOverridden,omitempty"`
	Disqualified    bool   `json:"disqualified"`
	IsConnected     bool   `json:"isConnected"`
}

type Rules struct {
	TurnDurationSecs int  `json:"turnDurationSecs"`
	AllowChat        bool `json:"allowChat"`
	AllowVoice       bool `json:"allowVoice"`
	RelaxedMode      bool `json:"relaxedMode"`
}

// DebateMessage is a turn-gated message.
type DebateMessage struct {
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// ChatMessage belongs to the side channel and is never turn-gated.
type ChatMessage struct {
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DebateSession is the snapshot of one live debate. Version is bumped on every
// committed write and guards concurrent read-modify-write cycles.
type DebateSession struct {
	SessionID           string          `json:"sessionId"`
	Topic               string          `json:"topic,omitempty"`
	DebateType          string          `json:"debateType"`
	Mode                string          `json:"mode"`
	DurationMins        int             `json:"durationMinutes,omitempty"`
	Participants        []Participant   `json:"participants"`
	State               string          `json:"state"`
	CurrentTurn         *string         `json:"currentTurn"`
	TurnStartedAt       *time.Time      `json:"turnStartedAt,omitempty"`
	StartTime           *time.Time      `json:"startTime,omitempty"`
	EndTime             *time.Time      `json:"endTime,omitempty"`
	PausedAt            *time.Time      `json:"pausedAt,omitempty"`
	TotalPausedDuration time.Duration   `json:"totalPausedDuration"`
	Rules               Rules           `json:"rules"`
	Messages            []DebateMessage `json:"messages"`
	ChatMessages        []ChatMessage   `json:"chatMessages"`
	Version             int64           `json:"version"`
}

// Participant returns the participant with the given id or nil.
func (s *DebateSession) Participant(id string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

func (s *DebateSession) HasParticipant(id string) bool {
	return s.Participant(id) != nil
}

// Opponent returns the id of the other participant, or "" when id is unknown.
func (s *DebateSession) Opponent(id string) string {
	if !s.HasParticipant(id) {
		return ""
	}
	for _, p := range s.Participants {
		if p.ID != id {
			return p.ID
		}
	}
	return ""
}

func (s *DebateSession) IsTurnOf(id string) bool {
	return s.CurrentTurn != nil && *s.CurrentTurn == id
}

func (s *DebateSession) IsEnded() bool {
	return s.State == SessionStateEnded
}

// MessagesFrom returns the turn messages authored by senderID in order.
func (s *DebateSession) MessagesFrom(senderID string) []DebateMessage {
	var out []DebateMessage
	for _, m := range s.Messages {
		if m.SenderID == senderID {
			out = append(out, m)
		}
	}
	return out
}

// ElapsedActive returns the debate time spent outside of pauses.
func (s *DebateSession) ElapsedActive(now time.Time) time.Duration {
	if s.StartTime == nil {
		return 0
	}
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	paused := s.TotalPausedDuration
	if s.PausedAt != nil && s.EndTime == nil {
		paused += now.Sub(*s.PausedAt)
	}
	elapsed := end.Sub(*s.StartTime) - paused
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ParticipantStatus is the tracker-owned connectivity record.
type ParticipantStatus struct {
	IsConnected bool      `json:"isConnected"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Evaluation is the verdict for an ended session. A nil WinnerID means a draw.
type Evaluation struct {
	WinnerID *string        `json:"winnerId"`
	Scores   map[string]int `json:"scores"`
	IsDraw   bool           `json:"isDraw"`
	Summary  string         `json:"summary"`
}
