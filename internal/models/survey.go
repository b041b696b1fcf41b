package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Survey answer values
const (
	WorkStylePlanner    = "planner"
	WorkStyleFlexible   = "flexible"
	WorkStyleLastMinute = "last-minute"

	CommunicationFrequent  = "frequent"
	CommunicationScheduled = "scheduled"
	CommunicationMinimal   = "minimal"

	ScheduleVeryFlexible     = "very-flexible"
	ScheduleSomewhatFlexible = "somewhat-flexible"
	ScheduleStrict           = "strict"

	ConflictDirect   = "direct"
	ConflictMediator = "mediator"
	ConflictAvoider  = "avoider"
)

var (
	WorkStyles            = []string{WorkStylePlanner, WorkStyleFlexible, WorkStyleLastMinute}
	CommunicationPrefs    = []string{CommunicationFrequent, CommunicationScheduled, CommunicationMinimal}
	ScheduleFlexibilities = []string{ScheduleVeryFlexible, ScheduleSomewhatFlexible, ScheduleStrict}
	ConflictStyles        = []string{ConflictDirect, ConflictMediator, ConflictAvoider}
)

// Survey is a member's one-time work-style questionnaire for a team.
// At most one survey exists per (team, user).
type Survey struct {
	ID                      string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID                  string    `gorm:"uniqueIndex:idx_survey_team_user;size:36;not null" json:"team_id"`
	UserID                  string    `gorm:"uniqueIndex:idx_survey_team_user;size:36;not null" json:"user_id"`
	WorkStyle               string    `gorm:"size:20;not null" json:"work_style"`
	CommunicationPreference string    `gorm:"size:20;not null" json:"communication_preference"`
	ScheduleFlexibility     string    `gorm:"size:20;not null" json:"schedule_flexibility"`
	ConflictStyle           string    `gorm:"size:20;not null" json:"conflict_style"`
	Strengths               []string  `gorm:"type:text;serializer:json" json:"strengths"`
	CompletedAt             time.Time `gorm:"autoCreateTime" json:"completed_at"`
	User                    *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Survey) TableName() string { return "surveys" }

func (s *Survey) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}

// Validate checks every enumerated answer and trims strength tags.
func (s *Survey) Validate() error {
	fields := []struct {
		name    string
		value   string
		allowed []string
	}{
		{"work_style", s.WorkStyle, WorkStyles},
		{"communication_preference", s.CommunicationPreference, CommunicationPrefs},
		{"schedule_flexibility", s.ScheduleFlexibility, ScheduleFlexibilities},
		{"conflict_style", s.ConflictStyle, ConflictStyles},
	}
	for _, f := range fields {
		if !oneOf(f.value, f.allowed) {
			return fmt.Errorf("%s must be one of %s", f.name, strings.Join(f.allowed, ", "))
		}
	}

	strengths := make([]string, 0, len(s.Strengths))
	for _, tag := range s.Strengths {
		if tag = strings.TrimSpace(tag); tag != "" {
			strengths = append(strengths, tag)
		}
	}
	s.Strengths = strengths
	return nil
}
