package models

import (
	"errors"
	"time"
)

// Debate type constants
const (
	DebateTypeProfessional   = "professional"
	DebateTypeUnprofessional = "unprofessional"
)

// Debate mode constants
const (
	ModeText  = "text"
	ModeAudio = "audio"
	ModeVideo = "video"
)

// MatchCandidate is a user waiting in the matchmaking queue.
type MatchCandidate struct {
	UserID     string    `json:"userId"`
	DebateType string    `json:"debateType"`
	Mode       string    `json:"mode"`
	EloRating  *float64  `json:"eloRating,omitempty"`
	Language   string    `json:"language,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func (c *MatchCandidate) Validate() error {
	if c.UserID == "" {
		return errors.New("userId is required")
	}
	if !IsValidDebateType(c.DebateType) {
		return errors.New("debateType must be professional or unprofessional")
	}
	if !IsValidMode(c.Mode) {
		return errors.New("mode must be text, audio or video")
	}
	if c.EloRating != nil && *c.EloRating < 0 {
		return errors.New("eloRating cannot be negative")
	}
	return nil
}

func IsValidDebateType(t string) bool {
	return t == DebateTypeProfessional || t == DebateTypeUnprofessional
}

func IsValidMode(m string) bool {
	switch m {
	case ModeText, ModeAudio, ModeVideo:
		return true
	}
	return false
}
