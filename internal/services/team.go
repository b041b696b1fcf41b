package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
	"gorm.io/gorm"
)

type TeamService struct {
	db        *gorm.DB
	members   *MemberService
	readiness *ReadinessService
}

func NewTeamService(db *gorm.DB, members *MemberService) *TeamService {
	return &TeamService{
		db:        db,
		members:   members,
		readiness: NewReadinessService(db),
	}
}

type CreateTeamRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateTeamRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// TeamSummary is a dashboard entry for one of the caller's teams.
type TeamSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Role        string    `json:"role"`
	MemberCount int64     `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// TeamOverview is everything the team page shows at once.
type TeamOverview struct {
	Team           *models.Team           `json:"team"`
	MyRole         string                 `json:"my_role"`
	Members        []MemberView           `json:"members"`
	Readiness      *ReadinessReport       `json:"readiness"`
	MySurveyDone   bool                   `json:"my_survey_done"`
	LatestAnalysis *models.TeamAnalysis   `json:"latest_analysis"`
	LatestConflict *models.ConflictReport `json:"latest_conflict"`
	RecentCheckIns []models.CheckIn       `json:"recent_checkins"`
}

// Create makes a team with the caller as its leader.
func (s *TeamService) Create(ctx context.Context, identity Identity, req *CreateTeamRequest) (*models.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, NewValidationError("team name is required")
	}

	team := models.Team{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatorID:   identity.UserID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		return tx.Create(&models.TeamMember{
			TeamID: team.ID,
			UserID: identity.UserID,
			Role:   models.RoleLeader,
		}).Error
	})
	if err != nil {
		return nil, persistenceError("create team", err)
	}

	logger.Info().Str("team_id", team.ID).Str("user_id", identity.UserID).Msg("[Team] created")
	return &team, nil
}

func (s *TeamService) Get(ctx context.Context, teamID string) (*models.Team, error) {
	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, persistenceError("load team", err)
	}
	return &team, nil
}

// ListForUser returns the teams the user belongs to, newest first.
func (s *TeamService) ListForUser(ctx context.Context, userID string) ([]TeamSummary, error) {
	var summaries []TeamSummary
	err := s.db.WithContext(ctx).
		Table("teams").
		Select("teams.id, teams.name, teams.description, teams.created_at, tm.role, "+
			"(SELECT COUNT(*) FROM team_members m WHERE m.team_id = teams.id) AS member_count").
		Joins("JOIN team_members tm ON tm.team_id = teams.id AND tm.user_id = ?", userID).
		Order("teams.created_at DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, persistenceError("list teams", err)
	}
	if summaries == nil {
		summaries = []TeamSummary{}
	}
	return summaries, nil
}

func (s *TeamService) Update(ctx context.Context, identity Identity, teamID string, req *UpdateTeamRequest) (*models.Team, error) {
	if _, err := s.members.RequireLeader(ctx, teamID, identity.UserID); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidationError("team name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", teamID).Updates(updates).Error; err != nil {
			return nil, persistenceError("update team", err)
		}
	}
	return s.Get(ctx, teamID)
}

// Delete removes the team and everything it owns in one transaction.
func (s *TeamService) Delete(ctx context.Context, identity Identity, teamID string) error {
	if _, err := s.members.RequireLeader(ctx, teamID, identity.UserID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned := []interface{}{
			&models.TeamMember{},
			&models.Survey{},
			&models.CheckIn{},
			&models.TeamAnalysis{},
			&models.ConflictReport{},
			&models.AnalysisLock{},
		}
		for _, model := range owned {
			if err := tx.Where("team_id = ?", teamID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", teamID).Delete(&models.Team{}).Error
	})
	if err != nil {
		return persistenceError("delete team", err)
	}

	logger.Info().Str("team_id", teamID).Str("user_id", identity.UserID).Msg("[Team] deleted")
	return nil
}

// Overview gathers the team page for a member.
func (s *TeamService) Overview(ctx context.Context, identity Identity, teamID string) (*TeamOverview, error) {
	team, err := s.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	me, err := s.members.Require(ctx, teamID, identity.UserID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, teamID)
	if err != nil {
		return nil, err
	}
	readiness, err := s.readiness.Check(ctx, teamID)
	if err != nil {
		return nil, err
	}

	overview := &TeamOverview{
		Team:      team,
		MyRole:    me.Role,
		Members:   members,
		Readiness: readiness,
	}
	for _, m := range members {
		if m.UserID == identity.UserID {
			overview.MySurveyDone = m.SurveySubmitted
		}
	}

	db := s.db.WithContext(ctx)
	var analysis models.TeamAnalysis
	if err := db.Where("team_id = ?", teamID).Order("created_at DESC, id DESC").First(&analysis).Error; err == nil {
		overview.LatestAnalysis = &analysis
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistenceError("load latest analysis", err)
	}

	var conflict models.ConflictReport
	if err := db.Where("team_id = ?", teamID).Order("created_at DESC").First(&conflict).Error; err == nil {
		overview.LatestConflict = &conflict
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistenceError("load latest conflict report", err)
	}

	if err := db.Preload("User").Where("team_id = ?", teamID).
		Order("created_at DESC, id DESC").Limit(5).
		Find(&overview.RecentCheckIns).Error; err != nil {
		return nil, persistenceError("load check-ins", err)
	}
	return overview, nil
}
