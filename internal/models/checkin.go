package models

import (
	"time"

	"gorm.io/gorm"
)

// Check-in moods
const (
	MoodGreat      = "great"
	MoodGood       = "good"
	MoodOkay       = "okay"
	MoodStruggling = "struggling"
)

var Moods = []string{MoodGreat, MoodGood, MoodOkay, MoodStruggling}

// CheckIn is an append-only mood and progress report.
type CheckIn struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID     string    `gorm:"index:idx_checkin_team_created;size:36;not null" json:"team_id"`
	UserID     string    `gorm:"index;size:36;not null" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Mood       string    `gorm:"size:20;not null" json:"mood"`
	Progress   int       `gorm:"not null" json:"progress"`
	Challenges string    `gorm:"type:text" json:"challenges"`
	NeedsHelp  bool      `gorm:"default:false" json:"needs_help"`
	CreatedAt  time.Time `gorm:"index:idx_checkin_team_created" json:"created_at"`
}

func (CheckIn) TableName() string { return "checkins" }

func (c *CheckIn) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}

// IsValidMood reports whether mood is a known check-in mood.
func IsValidMood(mood string) bool {
	return oneOf(mood, Moods)
}
