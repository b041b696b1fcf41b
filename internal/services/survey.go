package services

import (
	"context"
	"errors"

	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
	"gorm.io/gorm"
)

type SurveyService struct {
	db      *gorm.DB
	events  *EventHub
	trigger AnalysisTrigger
}

func NewSurveyService(db *gorm.DB, events *EventHub, trigger AnalysisTrigger) *SurveyService {
	return &SurveyService{db: db, events: events, trigger: trigger}
}

type SubmitSurveyRequest struct {
	WorkStyle               string   `json:"work_style" binding:"required"`
	CommunicationPreference string   `json:"communication_preference" binding:"required"`
	ScheduleFlexibility     string   `json:"schedule_flexibility" binding:"required"`
	ConflictStyle           string   `json:"conflict_style" binding:"required"`
	Strengths               []string `json:"strengths"`
}

// Submit stores the caller's survey for a team. Each member submits once;
// afterwards the team is handed to the auto-trigger.
func (s *SurveyService) Submit(ctx context.Context, identity Identity, teamID string, req *SubmitSurveyRequest) (*models.Survey, error) {
	if _, err := requireMember(ctx, s.db, teamID, identity.UserID); err != nil {
		return nil, err
	}

	survey := models.Survey{
		TeamID:                  teamID,
		UserID:                  identity.UserID,
		WorkStyle:               req.WorkStyle,
		CommunicationPreference: req.CommunicationPreference,
		ScheduleFlexibility:     req.ScheduleFlexibility,
		ConflictStyle:           req.ConflictStyle,
		Strengths:               req.Strengths,
	}
	if err := survey.Validate(); err != nil {
		return nil, NewValidationError("%s", err.Error())
	}

	db := s.db.WithContext(ctx)
	exists := func() (bool, error) {
		var count int64
		err := db.Model(&models.Survey{}).Where("team_id = ? AND user_id = ?", teamID, identity.UserID).Count(&count).Error
		return count > 0, err
	}

	found, err := exists()
	if err != nil {
		return nil, persistenceError("check survey", err)
	}
	if found {
		return nil, ErrSurveyExists
	}
	if err := db.Create(&survey).Error; err != nil {
		// a concurrent submit may have won the unique index
		if found, _ := exists(); found {
			return nil, ErrSurveyExists
		}
		return nil, persistenceError("insert survey", err)
	}

	logger.Info().Str("team_id", teamID).Str("user_id", identity.UserID).Msg("[Survey] submitted")
	if s.events != nil {
		s.events.Publish(Event{Type: EventSurveySubmitted, TeamID: teamID, Data: map[string]string{"user_id": identity.UserID}})
	}
	if s.trigger != nil {
		s.trigger(teamID, "survey_submitted")
	}
	return &survey, nil
}

// List returns the team's surveys in analysis order.
func (s *SurveyService) List(ctx context.Context, teamID string) ([]models.Survey, error) {
	var surveys []models.Survey
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamID).
		Order("completed_at ASC, id ASC").
		Find(&surveys).Error; err != nil {
		return nil, persistenceError("list surveys", err)
	}
	return surveys, nil
}

// Get returns one member's survey, or nil when it has not been submitted.
func (s *SurveyService) Get(ctx context.Context, teamID, userID string) (*models.Survey, error) {
	var survey models.Survey
	err := s.db.WithContext(ctx).Where("team_id = ? AND user_id = ?", teamID, userID).First(&survey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("load survey", err)
	}
	return &survey, nil
}
