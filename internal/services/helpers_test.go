package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// newTestDB opens a private in-memory database with every table migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:services_test_%d?mode=memory&cache=shared", testDBSeq.Add(1)),
	}, logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{Email: strings.ToLower(name) + "@example.com", Name: name}
	require.NoError(t, db.Create(user).Error)
	return user
}

// createTeam makes a team led by the first user; the rest join as members.
func createTeam(t *testing.T, db *gorm.DB, users ...*models.User) *models.Team {
	t.Helper()
	team := &models.Team{Name: "Capstone", CreatorID: users[0].ID}
	require.NoError(t, db.Create(team).Error)
	for i, u := range users {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleLeader
		}
		require.NoError(t, db.Create(&models.TeamMember{TeamID: team.ID, UserID: u.ID, Role: role}).Error)
	}
	return team
}

func createSurvey(t *testing.T, db *gorm.DB, teamID, userID string, completedAt time.Time) *models.Survey {
	t.Helper()
	survey := &models.Survey{
		TeamID:                  teamID,
		UserID:                  userID,
		WorkStyle:               models.WorkStylePlanner,
		CommunicationPreference: models.CommunicationFrequent,
		ScheduleFlexibility:     models.ScheduleSomewhatFlexible,
		ConflictStyle:           models.ConflictMediator,
		Strengths:               []string{"design"},
		CompletedAt:             completedAt,
	}
	require.NoError(t, db.Create(survey).Error)
	return survey
}

func createCheckIn(t *testing.T, db *gorm.DB, teamID, userID string, createdAt time.Time, challenges string) *models.CheckIn {
	t.Helper()
	checkin := &models.CheckIn{
		TeamID:     teamID,
		UserID:     userID,
		Mood:       models.MoodOkay,
		Progress:   50,
		Challenges: challenges,
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Create(checkin).Error)
	return checkin
}

func identityOf(u *models.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email}
}

// fakeLLM answers every completion with a fixed response and records the
// requests it saw. block, when set, holds each call until it is closed.
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
	requests []*CompletionRequest
	entered  chan struct{}
	block    chan struct{}
}

func newFakeLLM(response string) *fakeLLM {
	return &fakeLLM{response: response}
}

func (f *fakeLLM) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	entered, block := f.entered, f.block
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &CompletionResult{Content: f.response, Provider: "fake", Model: "fake-1"}, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return ""
	}
	return f.requests[len(f.requests)-1].Prompt
}

func testAnalysisConfig() config.AnalysisConfig {
	cfg := config.DefaultConfig().Analysis
	cfg.TimeoutSeconds = 5
	return cfg
}

const validDynamicsJSON = `{
  "risk_score": 42,
  "risk_factors": [
    {"category": "communication", "severity": "medium", "description": "Mixed preferences", "affected_members": [0, 1]}
  ],
  "recommendations": [
    {"title": "Weekly sync", "description": "Hold a short weekly meeting", "priority": "high", "actions": ["Pick a slot"]}
  ],
  "role_suggestions": [
    {"member_index": 1, "suggested_role": "Coordinator", "reasoning": "Frequent communicator", "strengths": ["organizing"]},
    {"member_index": 7, "suggested_role": "Reviewer", "reasoning": "Detail oriented", "strengths": []}
  ]
}`

const validConflictJSON = `{
  "risk_level": "medium",
  "concerns": [{"type": "workload", "description": "One member is overloaded", "affected_members": ["Alice"]}],
  "intervention_needed": true,
  "suggested_actions": ["Rebalance tasks"]
}`
