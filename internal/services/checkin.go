package services

import (
	"context"
	"strings"

	"github.com/teamello/backend/internal/models"
	"gorm.io/gorm"
)

type CheckInService struct {
	db     *gorm.DB
	events *EventHub
}

func NewCheckInService(db *gorm.DB, events *EventHub) *CheckInService {
	return &CheckInService{db: db, events: events}
}

type SubmitCheckInRequest struct {
	Mood       string `json:"mood" binding:"required"`
	Progress   *int   `json:"progress" binding:"required"`
	Challenges string `json:"challenges"`
	NeedsHelp  bool   `json:"needs_help"`
}

// Submit appends a check-in for the caller.
func (s *CheckInService) Submit(ctx context.Context, identity Identity, teamID string, req *SubmitCheckInRequest) (*models.CheckIn, error) {
	if !models.IsValidMood(req.Mood) {
		return nil, NewValidationError("mood must be one of %s", strings.Join(models.Moods, ", "))
	}
	if req.Progress == nil || *req.Progress < 0 || *req.Progress > 100 {
		return nil, NewValidationError("progress must be between 0 and 100")
	}
	if _, err := requireMember(ctx, s.db, teamID, identity.UserID); err != nil {
		return nil, err
	}

	checkin := models.CheckIn{
		TeamID:     teamID,
		UserID:     identity.UserID,
		Mood:       req.Mood,
		Progress:   *req.Progress,
		Challenges: strings.TrimSpace(req.Challenges),
		NeedsHelp:  req.NeedsHelp,
	}
	if err := s.db.WithContext(ctx).Create(&checkin).Error; err != nil {
		return nil, persistenceError("insert check-in", err)
	}

	if s.events != nil {
		s.events.Publish(Event{
			Type:   EventCheckInSubmitted,
			TeamID: teamID,
			Data: map[string]interface{}{
				"user_id":    identity.UserID,
				"mood":       checkin.Mood,
				"needs_help": checkin.NeedsHelp,
			},
		})
	}
	return &checkin, nil
}

// ListRecent returns the newest check-ins first.
func (s *CheckInService) ListRecent(ctx context.Context, teamID string, limit int) ([]models.CheckIn, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var checkins []models.CheckIn
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&checkins).Error; err != nil {
		return nil, persistenceError("list check-ins", err)
	}
	return checkins, nil
}
