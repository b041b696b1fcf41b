package services

import (
	"context"
	"strings"

	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
	"gorm.io/gorm"
)

// InitialCheckInAction is the only suggestion for a team without check-ins.
const InitialCheckInAction = "recommend team members submit an initial check-in"

// NoCheckInsResult is returned without calling the model when a team has no
// check-ins yet.
func NoCheckInsResult() *models.ConflictAnalysis {
	return &models.ConflictAnalysis{
		RiskLevel:          models.RiskNone,
		Concerns:           []models.Concern{},
		InterventionNeeded: false,
		SuggestedActions:   []string{InitialCheckInAction},
	}
}

type ConflictService struct {
	db         *gorm.DB
	requester  *AnalysisRequester
	events     *EventHub
	fetchLimit int
}

func NewConflictService(db *gorm.DB, requester *AnalysisRequester, events *EventHub, fetchLimit int) *ConflictService {
	if fetchLimit <= 0 {
		fetchLimit = 20
	}
	return &ConflictService{
		db:         db,
		requester:  requester,
		events:     events,
		fetchLimit: fetchLimit,
	}
}

// Detect runs conflict-risk detection over the team's newest check-ins.
// source is models.SourceManual or models.SourceScheduled.
func (s *ConflictService) Detect(ctx context.Context, teamID, source string) (*models.ConflictAnalysis, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, NewValidationError("Team ID is required")
	}

	var checkins []models.CheckIn
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamID).
		Order("created_at DESC, id DESC").
		Limit(s.fetchLimit).
		Find(&checkins).Error; err != nil {
		return nil, persistenceError("load check-ins", err)
	}

	if len(checkins) == 0 {
		return NoCheckInsResult(), nil
	}

	result, err := s.requester.DetectConflictRisk(ctx, teamID, checkins)
	if err != nil {
		return nil, err
	}

	s.archive(ctx, teamID, source, len(checkins), result)
	if result.InterventionNeeded && s.events != nil {
		s.events.Publish(Event{
			Type:   EventConflictDetected,
			TeamID: teamID,
			Data: map[string]interface{}{
				"risk_level":        result.RiskLevel,
				"suggested_actions": result.SuggestedActions,
			},
		})
	}
	return result, nil
}

// archive keeps a trail of results; failing to store one does not fail detection.
func (s *ConflictService) archive(ctx context.Context, teamID, source string, count int, result *models.ConflictAnalysis) {
	if source == "" {
		source = models.SourceManual
	}
	report := models.ConflictReport{
		TeamID:             teamID,
		RiskLevel:          result.RiskLevel,
		Concerns:           result.Concerns,
		InterventionNeeded: result.InterventionNeeded,
		SuggestedActions:   result.SuggestedActions,
		CheckInCount:       count,
		Source:             source,
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		logger.Warn().Err(err).Str("team_id", teamID).Msg("[Conflict] failed to archive report")
	}
}

// History lists archived conflict reports newest first.
func (s *ConflictService) History(ctx context.Context, teamID string, limit int) ([]models.ConflictReport, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var reports []models.ConflictReport
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at DESC").
		Limit(limit).
		Find(&reports).Error; err != nil {
		return nil, persistenceError("list conflict reports", err)
	}
	return reports, nil
}
