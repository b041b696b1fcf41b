package models

import (
	"time"

	"gorm.io/gorm"
)

// Severity and priority levels shared by risk factors and recommendations.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// IsValidLevel reports whether v is low, medium or high.
func IsValidLevel(v string) bool {
	return v == LevelLow || v == LevelMedium || v == LevelHigh
}

type RiskFactor struct {
	Category        string     `json:"category"`
	Severity        string     `json:"severity"`
	Description     string     `json:"description"`
	AffectedMembers MemberRefs `json:"affected_members"`
}

type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Actions     []string `json:"actions"`
}

// RoleSuggestion is a suggested role for one member. UserID is nil when the
// model pointed at a member index outside the submitted survey list.
type RoleSuggestion struct {
	MemberIndex   int      `json:"member_index"`
	UserID        *string  `json:"user_id"`
	SuggestedRole string   `json:"suggested_role"`
	Reasoning     string   `json:"reasoning"`
	Strengths     []string `json:"strengths"`
}

// TeamAnalysis is one AI risk assessment run. Runs are never updated; the
// most recent row is the one displayed.
type TeamAnalysis struct {
	ID              string           `gorm:"primaryKey;size:36" json:"id"`
	TeamID          string           `gorm:"index:idx_analysis_team_created;size:36;not null" json:"team_id"`
	RiskScore       int              `gorm:"not null" json:"risk_score"`
	RiskFactors     []RiskFactor     `gorm:"type:text;serializer:json" json:"risk_factors"`
	Recommendations []Recommendation `gorm:"type:text;serializer:json" json:"recommendations"`
	RoleSuggestions []RoleSuggestion `gorm:"type:text;serializer:json" json:"role_suggestions"`
	CreatedAt       time.Time        `gorm:"index:idx_analysis_team_created" json:"created_at"`
}

func (TeamAnalysis) TableName() string { return "team_analysis" }

func (a *TeamAnalysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}
