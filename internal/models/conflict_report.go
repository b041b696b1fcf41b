package models

import (
	"time"

	"gorm.io/gorm"
)

// Conflict risk levels
const (
	RiskNone   = "none"
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Conflict report sources
const (
	SourceManual    = "manual"
	SourceScheduled = "scheduled"
)

func IsValidRiskLevel(v string) bool {
	return v == RiskNone || v == RiskLow || v == RiskMedium || v == RiskHigh
}

type Concern struct {
	Type            string     `json:"type"`
	Description     string     `json:"description"`
	AffectedMembers MemberRefs `json:"affected_members"`
}

// ConflictAnalysis is the conflict-risk result returned to callers.
type ConflictAnalysis struct {
	RiskLevel          string    `json:"risk_level"`
	Concerns           []Concern `json:"concerns"`
	InterventionNeeded bool      `json:"intervention_needed"`
	SuggestedActions   []string  `json:"suggested_actions"`
}

// ConflictReport archives a conflict analysis so scheduled scans leave a trail.
type ConflictReport struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	TeamID             string    `gorm:"index;size:36;not null" json:"team_id"`
	RiskLevel          string    `gorm:"size:10;not null" json:"risk_level"`
	Concerns           []Concern `gorm:"type:text;serializer:json" json:"concerns"`
	InterventionNeeded bool      `json:"intervention_needed"`
	SuggestedActions   []string  `gorm:"type:text;serializer:json" json:"suggested_actions"`
	CheckInCount       int       `json:"checkin_count"`
	Source             string    `gorm:"size:20;default:manual" json:"source"` // manual, scheduled
	CreatedAt          time.Time `gorm:"index" json:"created_at"`
}

func (ConflictReport) TableName() string { return "conflict_reports" }

func (r *ConflictReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = newID()
	}
	return nil
}
