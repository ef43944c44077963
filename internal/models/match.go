package models

import (
	"time"
)

// Match is the durable record of an accepted pairing.
type Match struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserAID    string    `gorm:"type:varchar(64);not null;index" json:"userAId"`
	UserBID    string    `gorm:"type:varchar(64);not null;index" json:"userBId"`
	DebateType string    `gorm:"type:varchar(20);not null" json:"debateType"`
	Mode       string    `gorm:"type:varchar(10);not null" json:"mode"`
	Language   string    `gorm:"type:varchar(16)" json:"language,omitempty"`
	Score      float64   `gorm:"not null" json:"score"`
	Status     string    `gorm:"type:varchar(20);default:'PENDING';index" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// Match status constants. Only PENDING is set here, later transitions belong to downstream services.
const (
	MatchStatusPending   = "PENDING"
	MatchStatusAccepted  = "ACCEPTED"
	MatchStatusCancelled = "CANCELLED"
)

func (Match) TableName() string {
	return "matches"
}

// MatchFilters for listing match history
type MatchFilters struct {
	UserID     string
	DebateType string
	Limit      int
	Offset     int
}
