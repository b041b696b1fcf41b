package services

import (
	"context"
	"errors"
	"math"

	"github.com/teamello/backend/internal/models"
	"gorm.io/gorm"
)

// ReadinessState tells whether a team's analysis may be started automatically.
type ReadinessState string

const (
	StateNotReady        ReadinessState = "NOT_READY"
	StateReadyUnanalyzed ReadinessState = "READY_UNANALYZED"
	StateAlreadyAnalyzed ReadinessState = "ALREADY_ANALYZED"
)

// EvaluateReadiness decides the readiness state from raw counts. An existing
// analysis wins regardless of later membership changes, and an empty team is
// never ready.
func EvaluateReadiness(memberCount, surveyCount int, hasAnalysis bool) ReadinessState {
	if hasAnalysis {
		return StateAlreadyAnalyzed
	}
	if memberCount > 0 && surveyCount == memberCount {
		return StateReadyUnanalyzed
	}
	return StateNotReady
}

type ReadinessReport struct {
	TeamID            string         `json:"team_id"`
	State             ReadinessState `json:"state"`
	MemberCount       int            `json:"member_count"`
	SurveyCount       int            `json:"survey_count"`
	CompletionPercent int            `json:"completion_percent"`
	HasAnalysis       bool           `json:"has_analysis"`
}

type ReadinessService struct {
	db *gorm.DB
}

func NewReadinessService(db *gorm.DB) *ReadinessService {
	return &ReadinessService{db: db}
}

// Check counts current members, the surveys they submitted and prior analyses.
func (s *ReadinessService) Check(ctx context.Context, teamID string) (*ReadinessReport, error) {
	db := s.db.WithContext(ctx)

	var team models.Team
	if err := db.Select("id").First(&team, "id = ?", teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, persistenceError("load team", err)
	}

	var members, surveys, analyses int64
	if err := db.Model(&models.TeamMember{}).Where("team_id = ?", teamID).Count(&members).Error; err != nil {
		return nil, persistenceError("count members", err)
	}

	// surveys left behind by removed members do not count
	memberIDs := db.Model(&models.TeamMember{}).Select("user_id").Where("team_id = ?", teamID)
	if err := db.Model(&models.Survey{}).
		Where("team_id = ? AND user_id IN (?)", teamID, memberIDs).
		Count(&surveys).Error; err != nil {
		return nil, persistenceError("count surveys", err)
	}
	if err := db.Model(&models.TeamAnalysis{}).Where("team_id = ?", teamID).Count(&analyses).Error; err != nil {
		return nil, persistenceError("count analyses", err)
	}

	report := &ReadinessReport{
		TeamID:      teamID,
		MemberCount: int(members),
		SurveyCount: int(surveys),
		HasAnalysis: analyses > 0,
	}
	report.State = EvaluateReadiness(report.MemberCount, report.SurveyCount, report.HasAnalysis)
	if members > 0 {
		report.CompletionPercent = int(math.Round(float64(surveys) / float64(members) * 100))
	}
	return report, nil
}
