package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/teamello/backend/internal/models"
	"gorm.io/gorm"
)

// AnalysisTrigger is notified when a team change may have made it ready for
// automatic analysis.
type AnalysisTrigger func(teamID, reason string)

type MemberService struct {
	db      *gorm.DB
	events  *EventHub
	trigger AnalysisTrigger
}

func NewMemberService(db *gorm.DB, events *EventHub, trigger AnalysisTrigger) *MemberService {
	return &MemberService{db: db, events: events, trigger: trigger}
}

type MemberView struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Role            string              `json:"role"`
	JoinedAt        time.Time           `json:"joined_at"`
	User            *models.UserSummary `json:"user"`
	SurveySubmitted bool                `json:"survey_submitted"`
}

type AddMemberRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// Require returns the caller's membership, or ErrTeamNotFound /
// ErrNotTeamMember.
func (s *MemberService) Require(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	return requireMember(ctx, s.db, teamID, userID)
}

// RequireLeader is Require restricted to team leaders.
func (s *MemberService) RequireLeader(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	member, err := requireMember(ctx, s.db, teamID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.RoleLeader {
		return nil, ErrNotTeamLeader
	}
	return member, nil
}

func requireMember(ctx context.Context, db *gorm.DB, teamID, userID string) (*models.TeamMember, error) {
	db = db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Team{}).Where("id = ?", teamID).Count(&count).Error; err != nil {
		return nil, persistenceError("load team", err)
	}
	if count == 0 {
		return nil, ErrTeamNotFound
	}

	var member models.TeamMember
	err := db.Where("team_id = ? AND user_id = ?", teamID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotTeamMember
	}
	if err != nil {
		return nil, persistenceError("load membership", err)
	}
	return &member, nil
}

// List returns members in join order with their survey status.
func (s *MemberService) List(ctx context.Context, teamID string) ([]MemberView, error) {
	db := s.db.WithContext(ctx)

	var members []models.TeamMember
	if err := db.Preload("User").Where("team_id = ?", teamID).Order("joined_at ASC, id ASC").Find(&members).Error; err != nil {
		return nil, persistenceError("list members", err)
	}

	var surveyed []string
	if err := db.Model(&models.Survey{}).Where("team_id = ?", teamID).Pluck("user_id", &surveyed).Error; err != nil {
		return nil, persistenceError("list surveys", err)
	}
	done := make(map[string]bool, len(surveyed))
	for _, id := range surveyed {
		done[id] = true
	}

	views := make([]MemberView, len(members))
	for i, m := range members {
		views[i] = MemberView{
			ID:              m.ID,
			UserID:          m.UserID,
			Role:            m.Role,
			JoinedAt:        m.JoinedAt,
			User:            m.User.Summary(),
			SurveySubmitted: done[m.UserID],
		}
	}
	return views, nil
}

// AddByEmail adds an existing user to the team. Only leaders may invite.
func (s *MemberService) AddByEmail(ctx context.Context, identity Identity, teamID string, req *AddMemberRequest) (*models.TeamMember, error) {
	if _, err := s.RequireLeader(ctx, teamID, identity.UserID); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	if !models.IsValidRole(role) {
		return nil, NewValidationError("role must be leader or member")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, NewValidationError("email is required")
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, persistenceError("find user", err)
	}

	var existing int64
	if err := db.Model(&models.TeamMember{}).Where("team_id = ? AND user_id = ?", teamID, user.ID).Count(&existing).Error; err != nil {
		return nil, persistenceError("check membership", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyMember
	}

	member := models.TeamMember{TeamID: teamID, UserID: user.ID, Role: role}
	if err := db.Create(&member).Error; err != nil {
		return nil, persistenceError("add member", err)
	}
	member.User = &user

	if s.events != nil {
		s.events.Publish(Event{Type: EventMemberJoined, TeamID: teamID, Data: user.Summary()})
	}
	return &member, nil
}

// UpdateRole changes a member's role. A team always keeps one leader.
func (s *MemberService) UpdateRole(ctx context.Context, identity Identity, teamID, memberID, role string) (*models.TeamMember, error) {
	if !models.IsValidRole(role) {
		return nil, NewValidationError("role must be leader or member")
	}
	if _, err := s.RequireLeader(ctx, teamID, identity.UserID); err != nil {
		return nil, err
	}

	member, err := s.findMember(ctx, teamID, memberID)
	if err != nil {
		return nil, err
	}
	if member.Role == models.RoleLeader && role != models.RoleLeader {
		if err := s.ensureAnotherLeader(ctx, teamID, member.ID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(member).Update("role", role).Error; err != nil {
		return nil, persistenceError("update role", err)
	}
	member.Role = role
	return member, nil
}

// Remove deletes a membership. Leaders may remove anyone; members may only
// leave themselves.
func (s *MemberService) Remove(ctx context.Context, identity Identity, teamID, memberID string) error {
	caller, err := s.Require(ctx, teamID, identity.UserID)
	if err != nil {
		return err
	}

	member, err := s.findMember(ctx, teamID, memberID)
	if err != nil {
		return err
	}
	if caller.Role != models.RoleLeader && member.UserID != identity.UserID {
		return ErrNotTeamLeader
	}
	if member.Role == models.RoleLeader {
		if err := s.ensureAnotherLeader(ctx, teamID, member.ID); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Delete(member).Error; err != nil {
		return persistenceError("remove member", err)
	}
	if s.trigger != nil {
		s.trigger(teamID, "member_removed")
	}
	return nil
}

func (s *MemberService) findMember(ctx context.Context, teamID, memberID string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := s.db.WithContext(ctx).Where("id = ? AND team_id = ?", memberID, teamID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, persistenceError("load member", err)
	}
	return &member, nil
}

func (s *MemberService) ensureAnotherLeader(ctx context.Context, teamID, exceptMemberID string) error {
	var leaders int64
	if err := s.db.WithContext(ctx).Model(&models.TeamMember{}).
		Where("team_id = ? AND role = ? AND id != ?", teamID, models.RoleLeader, exceptMemberID).
		Count(&leaders).Error; err != nil {
		return persistenceError("count leaders", err)
	}
	if leaders == 0 {
		return NewValidationError("a team must keep at least one leader")
	}
	return nil
}
