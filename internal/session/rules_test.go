package session

import (
	"strings"
	"testing"
	"time"

	"github.com/mroshb/debate_hub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ruleNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func ruleSession() *models.DebateSession {
	turn := "A"
	started := ruleNow.Add(-10 * time.Second)
	return &models.DebateSession{
		SessionID:  "s1",
		DebateType: models.DebateTypeProfessional,
		Mode:       models.ModeText,
		State:      models.SessionStateOngoing,
		Participants: []models.Participant{
			{ID: "A", Name: "Alice", Role: models.RolePro},
			{ID: "B", Name: "Bob", Role: models.RoleCon},
		},
		CurrentTurn:   &turn,
		TurnStartedAt: &started,
		Rules:         models.Rules{TurnDurationSecs: 60, AllowChat: true, AllowVoice: true},
	}
}

func fixedEngine() *RuleEngine {
	return &RuleEngine{now: func() time.Time { return ruleNow }}
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		return ""
	}
	v, ok := err.(*Violation)
	require.True(t, ok, "expected *Violation, got %T", err)
	return v.Reason
}

func TestRuleEngine_ValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *models.DebateSession)
		sender  string
		msgType string
		content string
		want    string
	}{
		{name: "valid", sender: "A", content: "A perfectly fine argument."},
		{
			name:    "not ongoing",
			mutate:  func(s *models.DebateSession) { s.State = models.SessionStatePaused },
			sender:  "A",
			content: "A perfectly fine argument.",
			want:    ReasonSessionNotOngoing,
		},
		{name: "stranger", sender: "Z", content: "A perfectly fine argument.", want: ReasonNotParticipant},
		{
			name:    "disqualified",
			mutate:  func(s *models.DebateSession) { s.Participants[0].Disqualified = true },
			sender:  "A",
			content: "A perfectly fine argument.",
			want:    ReasonDisqualified,
		},
		{
			name:    "chat disabled",
			mutate:  func(s *models.DebateSession) { s.Rules.AllowChat = false },
			sender:  "A",
			content: "A perfectly fine argument.",
			want:    ReasonTypeDisabled,
		},
		{
			name:    "voice disabled",
			mutate:  func(s *models.DebateSession) { s.Rules.AllowVoice = false },
			sender:  "A",
			msgType: models.MessageTypeVoice,
			content: "A perfectly fine argument.",
			want:    ReasonTypeDisabled,
		},
		{name: "not your turn", sender: "B", content: "A perfectly fine argument.", want: ReasonNotYourTurn},
		{
			name: "turn expired",
			mutate: func(s *models.DebateSession) {
				old := ruleNow.Add(-61 * time.Second)
				s.TurnStartedAt = &old
			},
			sender:  "A",
			content: "A perfectly fine argument.",
			want:    ReasonNotYourTurn,
		},
		{name: "too short", sender: "A", content: "  hey  ", want: ReasonTooShort},
		{name: "too long", sender: "A", content: strings.Repeat("ab", 501), want: ReasonTooLong},
		{name: "profanity", sender: "A", content: "What the HELL is this", want: ReasonProfanity},
		{name: "word boundary", sender: "A", content: "Hello there, friends."},
		{
			name: "profanity allowed when unprofessional",
			mutate: func(s *models.DebateSession) {
				s.DebateType = models.DebateTypeUnprofessional
			},
			sender:  "A",
			content: "What the hell is this",
		},
		{
			name: "repeated",
			mutate: func(s *models.DebateSession) {
				s.Messages = []models.DebateMessage{{SenderID: "A", Content: "Same words again", Timestamp: ruleNow.Add(-time.Minute)}}
			},
			sender:  "A",
			content: "Same words again",
			want:    ReasonRepetition,
		},
		{
			name: "repeating the opponent is fine",
			mutate: func(s *models.DebateSession) {
				s.Messages = []models.DebateMessage{{SenderID: "B", Content: "Same words again", Timestamp: ruleNow.Add(-time.Second)}}
			},
			sender:  "A",
			content: "Same words again",
		},
		{
			name: "too frequent",
			mutate: func(s *models.DebateSession) {
				s.Messages = []models.DebateMessage{{SenderID: "A", Content: "Earlier point", Timestamp: ruleNow.Add(-2 * time.Second)}}
			},
			sender:  "A",
			content: "A different point",
			want:    ReasonTooFrequent,
		},
		{name: "spam", sender: "A", content: "Nooooooo way", want: ReasonSpam},
		{name: "five repeats allowed", sender: "A", content: "Nooooo way"},
		{name: "blank lines between paragraphs", sender: "A", content: "First point.\n\n\n\n\n\nSecond point."},
		{
			name: "message limit",
			mutate: func(s *models.DebateSession) {
				for i := 0; i < MaxMessagesPerParticipant; i++ {
					s.Messages = append(s.Messages, models.DebateMessage{
						SenderID:  "A",
						Content:   strings.Repeat("x", i%5+1) + " point",
						Timestamp: ruleNow.Add(-time.Hour),
					})
				}
			},
			sender:  "A",
			content: "One more argument",
			want:    ReasonMessageLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ruleSession()
			if tt.mutate != nil {
				tt.mutate(s)
			}
			msgType := tt.msgType
			if msgType == "" {
				msgType = models.MessageTypeChat
			}
			msg := &models.DebateMessage{SenderID: tt.sender, Content: tt.content, Type: msgType, Timestamp: ruleNow}
			err := fixedEngine().ValidateMessage(s, msg)
			assert.Equal(t, tt.want, reasonOf(t, err))
		})
	}
}

func TestRuleEngine_RelaxedMode(t *testing.T) {
	s := ruleSession()
	s.Rules.RelaxedMode = true
	s.Messages = []models.DebateMessage{{SenderID: "A", Content: "ok", Timestamp: ruleNow.Add(-time.Minute)}}

	assert.NoError(t, fixedEngine().ValidateMessage(s, &models.DebateMessage{SenderID: "A", Content: "ok", Type: models.MessageTypeChat}))
	assert.NoError(t, fixedEngine().ValidateMessage(s, &models.DebateMessage{SenderID: "A", Content: "damn", Type: models.MessageTypeChat}))

	err := fixedEngine().ValidateMessage(s, &models.DebateMessage{SenderID: "A", Content: "!!!!!!", Type: models.MessageTypeChat})
	assert.Equal(t, ReasonSpam, reasonOf(t, err), "spam is checked in every mode")
}

func TestRuleEngine_CanSpeak(t *testing.T) {
	r := fixedEngine()
	s := ruleSession()

	assert.True(t, r.CanSpeak(s, "A"))
	assert.False(t, r.CanSpeak(s, "B"))
	assert.False(t, r.CanSpeak(s, "Z"))

	s.Participants[0].Disqualified = true
	assert.False(t, r.CanSpeak(s, "A"))

	s = ruleSession()
	s.State = models.SessionStatePaused
	assert.False(t, r.CanSpeak(s, "A"))
}

func TestHasRepeatedRun(t *testing.T) {
	assert.True(t, hasRepeatedRun("aaaaaa", 6))
	assert.True(t, hasRepeatedRun("ok ?????? ok", 6))
	assert.True(t, hasRepeatedRun("ههههههه", 6))
	assert.False(t, hasRepeatedRun("aaaaa", 6))
	assert.False(t, hasRepeatedRun("abababab", 6))
	assert.False(t, hasRepeatedRun("", 6))
	assert.False(t, hasRepeatedRun("first point\n\n\n\n\n\nsecond point", 6))
	assert.False(t, hasRepeatedRun("a\r\n\r\n\r\n\r\n\r\n\r\nb", 6))
	assert.False(t, hasRepeatedRun("aaa\naaa", 6), "a line break ends the run")
	assert.True(t, hasRepeatedRun("line\n!!!!!!", 6))
}
