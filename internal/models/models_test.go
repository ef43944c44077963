package models

import (
	"testing"
	"time"
)

func TestMatchCandidate_Validate(t *testing.T) {
	elo := 1200.0
	negative := -5.0

	tests := []struct {
		name      string
		candidate MatchCandidate
		wantErr   bool
	}{
		{
			name:      "Valid minimal",
			candidate: MatchCandidate{UserID: "A", DebateType: DebateTypeProfessional, Mode: ModeText},
			wantErr:   false,
		},
		{
			name:      "Valid with elo",
			candidate: MatchCandidate{UserID: "A", DebateType: DebateTypeUnprofessional, Mode: ModeVideo, EloRating: &elo, Language: "en"},
			wantErr:   false,
		},
		{
			name:      "Missing user",
			candidate: MatchCandidate{DebateType: DebateTypeProfessional, Mode: ModeText},
			wantErr:   true,
		},
		{
			name:      "Invalid debate type",
			candidate: MatchCandidate{UserID: "A", DebateType: "casual", Mode: ModeText},
			wantErr:   true,
		},
		{
			name:      "Invalid mode",
			candidate: MatchCandidate{UserID: "A", DebateType: DebateTypeProfessional, Mode: "smoke"},
			wantErr:   true,
		},
		{
			name:      "Negative elo",
			candidate: MatchCandidate{UserID: "A", DebateType: DebateTypeProfessional, Mode: ModeText, EloRating: &negative},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.candidate.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDebateSession_Participants(t *testing.T) {
	s := &DebateSession{
		Participants: []Participant{
			{ID: "p1", Role: RolePro},
			{ID: "p2", Role: RoleCon},
		},
	}

	if got := s.Opponent("p1"); got != "p2" {
		t.Errorf("Opponent(p1) = %q, want p2", got)
	}
	if got := s.Opponent("ghost"); got != "" {
		t.Errorf("Opponent(ghost) = %q, want empty", got)
	}
	if s.HasParticipant("ghost") {
		t.Error("HasParticipant(ghost) = true")
	}

	s.Participant("p2").Score = 4
	if s.Participants[1].Score != 4 {
		t.Error("Participant() must return a pointer into the slice")
	}

	turn := "p1"
	s.CurrentTurn = &turn
	if !s.IsTurnOf("p1") || s.IsTurnOf("p2") {
		t.Error("IsTurnOf() mismatch")
	}
}

func TestDebateSession_ElapsedActive(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	now := start.Add(10 * time.Minute)

	tests := []struct {
		name    string
		session DebateSession
		want    time.Duration
	}{
		{
			name:    "Not started",
			session: DebateSession{},
			want:    0,
		},
		{
			name:    "Running without pauses",
			session: DebateSession{StartTime: &start},
			want:    10 * time.Minute,
		},
		{
			name:    "Past pauses excluded",
			session: DebateSession{StartTime: &start, TotalPausedDuration: 2 * time.Minute},
			want:    8 * time.Minute,
		},
		{
			name: "Current pause excluded",
			session: func() DebateSession {
				pausedAt := now.Add(-time.Minute)
				return DebateSession{StartTime: &start, PausedAt: &pausedAt, TotalPausedDuration: time.Minute}
			}(),
			want: 8 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.ElapsedActive(now); got != tt.want {
				t.Errorf("ElapsedActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableNames(t *testing.T) {
	if (Match{}).TableName() != "matches" {
		t.Error("Match table name mismatch")
	}
	if (DebateSessionRecord{}).TableName() != "debate_sessions" {
		t.Error("DebateSessionRecord table name mismatch")
	}
	if (DebateParticipantRecord{}).TableName() != "debate_participants" {
		t.Error("DebateParticipantRecord table name mismatch")
	}
	if (DebateMessageRecord{}).TableName() != "debate_messages" {
		t.Error("DebateMessageRecord table name mismatch")
	}
}
