package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
	"gorm.io/gorm"
)

// AnalysisService runs team-dynamics analyses: load surveys, ask the model,
// resolve member indices to users and store a new analysis row.
type AnalysisService struct {
	db          *gorm.DB
	requester   *AnalysisRequester
	readiness   *ReadinessService
	guard       AnalysisGuard
	events      *EventHub
	configSvc   *SystemConfigService
	autoTrigger bool
}

// NewAnalysisService builds the orchestrator. A nil guard lets concurrent
// runs for the same team each insert their own row.
func NewAnalysisService(db *gorm.DB, requester *AnalysisRequester, guard AnalysisGuard, events *EventHub, autoTrigger bool) *AnalysisService {
	return &AnalysisService{
		db:          db,
		requester:   requester,
		readiness:   NewReadinessService(db),
		guard:       guard,
		events:      events,
		configSvc:   NewSystemConfigService(db),
		autoTrigger: autoTrigger,
	}
}

// LoadSurveys returns the current members' surveys in the stable order used
// both for the prompt and for member_index resolution.
func LoadSurveys(ctx context.Context, db *gorm.DB, teamID string) ([]models.Survey, error) {
	db = db.WithContext(ctx)
	// only current members, matching what readiness counts
	memberIDs := db.Model(&models.TeamMember{}).Select("user_id").Where("team_id = ?", teamID)
	var surveys []models.Survey
	if err := db.
		Where("team_id = ? AND user_id IN (?)", teamID, memberIDs).
		Order("completed_at ASC, id ASC").
		Find(&surveys).Error; err != nil {
		return nil, persistenceError("load surveys", err)
	}
	return surveys, nil
}

// ResolveRoleSuggestions fills UserID from surveys[member_index]. Indices
// outside the list leave UserID nil.
func ResolveRoleSuggestions(suggestions []models.RoleSuggestion, surveys []models.Survey) []models.RoleSuggestion {
	resolved := make([]models.RoleSuggestion, len(suggestions))
	for i, s := range suggestions {
		s.UserID = nil
		if s.MemberIndex >= 0 && s.MemberIndex < len(surveys) {
			userID := surveys[s.MemberIndex].UserID
			s.UserID = &userID
		}
		resolved[i] = s
	}
	return resolved
}

// errAutoTriggerStale means the team stopped being READY_UNANALYZED while
// an auto trigger waited for the guard.
var errAutoTriggerStale = errors.New("team no longer awaits its first analysis")

// Analyze always runs a new analysis for the team and stores it.
func (s *AnalysisService) Analyze(ctx context.Context, teamID string) (*models.TeamAnalysis, error) {
	return s.run(ctx, teamID, nil)
}

// run executes one analysis. precondition, when set, is evaluated after the
// guard is held and before any survey is read.
func (s *AnalysisService) run(ctx context.Context, teamID string, precondition func(context.Context) error) (*models.TeamAnalysis, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, NewValidationError("Team ID is required")
	}
	log := logger.ForTeam(teamID)

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, teamID)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	if precondition != nil {
		if err := precondition(ctx); err != nil {
			return nil, err
		}
	}

	surveys, err := LoadSurveys(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}
	if len(surveys) == 0 {
		return nil, ErrNoSurveysFound
	}

	s.publish(EventAnalysisStarted, teamID, map[string]int{"survey_count": len(surveys)})
	log.Info().Int("surveys", len(surveys)).Msg("[Analysis] started")

	result, err := s.requester.AnalyzeTeamDynamics(ctx, teamID, surveys)
	if err != nil {
		log.Error().Err(err).Msg("[Analysis] failed")
		s.publish(EventAnalysisFailed, teamID, map[string]string{"error": "analysis unavailable"})
		return nil, err
	}

	analysis := &models.TeamAnalysis{
		TeamID:          teamID,
		RiskScore:       result.RiskScore,
		RiskFactors:     result.RiskFactors,
		Recommendations: result.Recommendations,
		RoleSuggestions: ResolveRoleSuggestions(result.RoleSuggestions, surveys),
	}
	if err := s.db.WithContext(ctx).Create(analysis).Error; err != nil {
		log.Error().Err(err).Msg("[Analysis] failed to store result")
		s.publish(EventAnalysisFailed, teamID, map[string]string{"error": "failed to store analysis"})
		return nil, persistenceError("insert team analysis", err)
	}

	log.Info().Str("analysis_id", analysis.ID).Int("risk_score", analysis.RiskScore).Msg("[Analysis] completed")
	s.publish(EventAnalysisCompleted, teamID, map[string]interface{}{
		"analysis_id": analysis.ID,
		"risk_score":  analysis.RiskScore,
	})
	return analysis, nil
}

// TriggerIfReady runs an analysis only when every member has submitted a
// survey and none exists yet. It reports whether a run happened.
func (s *AnalysisService) TriggerIfReady(ctx context.Context, teamID string) (bool, error) {
	if !s.configSvc.GetBool(KeyAnalysisAutoTrigger, s.autoTrigger) {
		return false, nil
	}

	if err := s.stillAwaitingAnalysis(ctx, teamID); err != nil {
		if errors.Is(err, errAutoTriggerStale) {
			return false, nil
		}
		return false, err
	}

	// readiness can change while waiting for the guard; another run may
	// have stored the first analysis meanwhile
	if _, err := s.run(ctx, teamID, func(ctx context.Context) error {
		return s.stillAwaitingAnalysis(ctx, teamID)
	}); err != nil {
		if errors.Is(err, ErrAnalysisInProgress) || errors.Is(err, errAutoTriggerStale) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *AnalysisService) stillAwaitingAnalysis(ctx context.Context, teamID string) error {
	report, err := s.readiness.Check(ctx, teamID)
	if err != nil {
		return err
	}
	if report.State != StateReadyUnanalyzed {
		logger.Debug().Str("team_id", teamID).Str("state", string(report.State)).Msg("[Analysis] auto trigger skipped")
		return errAutoTriggerStale
	}
	return nil
}

// ProcessTask adapts TriggerIfReady to the task queue.
func (s *AnalysisService) ProcessTask(ctx context.Context, task *AnalysisTask) error {
	ran, err := s.TriggerIfReady(ctx, task.TeamID)
	if err != nil {
		return fmt.Errorf("auto analysis for team %s: %w", task.TeamID, err)
	}
	if ran {
		logger.Infof("[Analysis] auto analysis completed for team %s", task.TeamID)
	}
	return nil
}

// Latest returns the most recent analysis, which is the one displayed.
func (s *AnalysisService) Latest(ctx context.Context, teamID string) (*models.TeamAnalysis, error) {
	var analysis models.TeamAnalysis
	err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at DESC, id DESC").
		First(&analysis).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, persistenceError("load latest analysis", err)
	}
	return &analysis, nil
}

// List returns the team's analyses newest first.
func (s *AnalysisService) List(ctx context.Context, teamID string, limit int) ([]models.TeamAnalysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var analyses []models.TeamAnalysis
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&analyses).Error; err != nil {
		return nil, persistenceError("list analyses", err)
	}
	return analyses, nil
}

func (s *AnalysisService) publish(eventType, teamID string, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(Event{Type: eventType, TeamID: teamID, Data: data})
}
