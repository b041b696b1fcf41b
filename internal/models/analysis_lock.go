package models

import "time"

// AnalysisLock marks a team analysis as in progress. The unique team_id makes
// a second concurrent insert fail, so at most one run holds it.
type AnalysisLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    string    `gorm:"uniqueIndex;size:36;not null" json:"team_id"`
	LockedBy  string    `gorm:"size:100" json:"locked_by"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (AnalysisLock) TableName() string { return "analysis_locks" }
