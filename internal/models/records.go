package models

import (
	"time"
)

// DebateSessionRecord is the durable row behind a debate session.
type DebateSessionRecord struct {
	ID         string     `gorm:"primaryKey;type:varchar(64)"`
	Topic      string     `gorm:"type:varchar(255)"`
	DebateType string     `gorm:"type:varchar(20);not null"`
	Mode       string     `gorm:"type:varchar(10);not null"`
	State      string     `gorm:"type:varchar(20);default:'waiting';index"`
	WinnerID   *string    `gorm:"type:varchar(64)"`
	Summary    string     `gorm:"type:text"`
	StartedAt  *time.Time `gorm:"index"`
	EndedAt    *time.Time `gorm:"index"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

func (DebateSessionRecord) TableName() string {
	return "debate_sessions"
}

type DebateParticipantRecord struct {
	ID           uint   `gorm:"primaryKey"`
	SessionID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_session_participant"`
	UserID       string `gorm:"type:varchar(64);not null;uniqueIndex:idx_session_participant"`
	Name         string `gorm:"type:varchar(100)"`
	Role         string `gorm:"type:varchar(10)"`
	Score        int    `gorm:"default:0"`
	Disqualified bool   `gorm:"default:false"`
	IsConnected  bool   `gorm:"default:false"`
	LastSeen     *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (DebateParticipantRecord) TableName() string {
	return "debate_participants"
}

type DebateMessageRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID string    `gorm:"type:varchar(64);not null;index"`
	SenderID  string    `gorm:"type:varchar(64);not null;index"`
	Content   string    `gorm:"type:text"`
	Type      string    `gorm:"type:varchar(10);index"`
	SentAt    time.Time `gorm:"index"`
}

func (DebateMessageRecord) TableName() string {
	return "debate_messages"
}
