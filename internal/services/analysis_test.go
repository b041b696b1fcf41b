package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamello/backend/internal/models"
	"gorm.io/gorm"
)

type analysisFixture struct {
	db     *gorm.DB
	llm    *fakeLLM
	svc    *AnalysisService
	team   *models.Team
	users  []*models.User
	events *EventHub
}

// newAnalysisFixture builds a three-member team where every member has
// surveyed, Carol first, then Alice, then Bob.
func newAnalysisFixture(t *testing.T, guard bool) *analysisFixture {
	t.Helper()
	db := newTestDB(t)
	alice, bob, carol := createUser(t, db, "Alice"), createUser(t, db, "Bob"), createUser(t, db, "Carol")
	team := createTeam(t, db, alice, bob, carol)

	base := time.Now().Add(-time.Hour)
	createSurvey(t, db, team.ID, carol.ID, base)
	createSurvey(t, db, team.ID, alice.ID, base.Add(time.Minute))
	createSurvey(t, db, team.ID, bob.ID, base.Add(2*time.Minute))

	llm := newFakeLLM(validDynamicsJSON)
	var g AnalysisGuard
	if guard {
		g = NewDBAnalysisGuard(db, time.Minute)
	}
	events := NewEventHub()
	svc := NewAnalysisService(db, NewAnalysisRequester(llm, testAnalysisConfig()), g, events, true)
	return &analysisFixture{db: db, llm: llm, svc: svc, team: team, users: []*models.User{alice, bob, carol}, events: events}
}

func TestResolveRoleSuggestions(t *testing.T) {
	surveys := []models.Survey{{UserID: "u0"}, {UserID: "u1"}}
	suggestions := []models.RoleSuggestion{
		{MemberIndex: 1, SuggestedRole: "Lead"},
		{MemberIndex: 0, SuggestedRole: "Builder"},
		{MemberIndex: 2, SuggestedRole: "Ghost"},
		{MemberIndex: -1, SuggestedRole: "Negative"},
	}

	resolved := ResolveRoleSuggestions(suggestions, surveys)
	require.Len(t, resolved, 4)
	require.NotNil(t, resolved[0].UserID)
	assert.Equal(t, "u1", *resolved[0].UserID)
	require.NotNil(t, resolved[1].UserID)
	assert.Equal(t, "u0", *resolved[1].UserID)
	assert.Nil(t, resolved[2].UserID)
	assert.Nil(t, resolved[3].UserID)
	assert.Equal(t, 2, resolved[2].MemberIndex)
}

func TestAnalyze_StoresResolvedAnalysis(t *testing.T) {
	f := newAnalysisFixture(t, true)
	ctx := context.Background()

	analysis, err := f.svc.Analyze(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, analysis.RiskScore)
	assert.NotEmpty(t, analysis.ID)

	// member_index 1 is the second survey submitted: Alice
	require.Len(t, analysis.RoleSuggestions, 2)
	require.NotNil(t, analysis.RoleSuggestions[0].UserID)
	assert.Equal(t, f.users[0].ID, *analysis.RoleSuggestions[0].UserID)
	assert.Nil(t, analysis.RoleSuggestions[1].UserID, "out-of-range index must resolve to no user")

	stored, err := f.svc.Latest(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.ID, stored.ID)
	assert.Equal(t, "communication", stored.RiskFactors[0].Category)
	assert.Equal(t, models.MemberRefs{"0", "1"}, stored.RiskFactors[0].AffectedMembers)

	var locks int64
	f.db.Model(&models.AnalysisLock{}).Count(&locks)
	assert.Zero(t, locks, "lock must be released after the run")
}

func TestAnalyze_EmptyTeamID(t *testing.T) {
	f := newAnalysisFixture(t, false)
	_, err := f.svc.Analyze(context.Background(), "  ")
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Team ID is required", err.Error())
	assert.Zero(t, f.llm.calls())
}

func TestAnalyze_NoSurveys(t *testing.T) {
	f := newAnalysisFixture(t, false)
	_, err := f.svc.Analyze(context.Background(), "unknown-team")
	assert.ErrorIs(t, err, ErrNoSurveysFound)
	assert.Zero(t, f.llm.calls(), "the model must not be called without surveys")
}

func TestAnalyze_ProviderFailureStoresNothing(t *testing.T) {
	f := newAnalysisFixture(t, true)
	f.llm.err = errors.New("upstream 503")

	_, err := f.svc.Analyze(context.Background(), f.team.ID)
	assert.ErrorIs(t, err, ErrAnalysisUnavailable)

	var count int64
	f.db.Model(&models.TeamAnalysis{}).Count(&count)
	assert.Zero(t, count)
}

func TestAnalyze_InvalidModelOutputStoresNothing(t *testing.T) {
	f := newAnalysisFixture(t, false)
	f.llm.response = `{"risk_score": 150, "risk_factors": [], "recommendations": [], "role_suggestions": []}`

	_, err := f.svc.Analyze(context.Background(), f.team.ID)
	assert.ErrorIs(t, err, ErrAnalysisUnavailable)

	var count int64
	f.db.Model(&models.TeamAnalysis{}).Count(&count)
	assert.Zero(t, count)
}

func TestAnalyze_RerunAddsRowAndLatestWins(t *testing.T) {
	f := newAnalysisFixture(t, true)
	ctx := context.Background()

	first, err := f.svc.Analyze(ctx, f.team.ID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	f.llm.response = `{"risk_score": 77, "risk_factors": [], "recommendations": [], "role_suggestions": []}`
	second, err := f.svc.Analyze(ctx, f.team.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	latest, err := f.svc.Latest(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, 77, latest.RiskScore)

	all, err := f.svc.List(ctx, f.team.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAnalyze_GuardRejectsConcurrentRun(t *testing.T) {
	f := newAnalysisFixture(t, true)
	f.llm.entered = make(chan struct{}, 1)
	f.llm.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Analyze(context.Background(), f.team.ID)
		done <- err
	}()

	select {
	case <-f.llm.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first analysis never reached the model")
	}

	_, err := f.svc.Analyze(context.Background(), f.team.ID)
	assert.ErrorIs(t, err, ErrAnalysisInProgress)
	assert.Equal(t, 409, ToAppError(err).HTTPStatus)

	close(f.llm.block)
	require.NoError(t, <-done)

	var count int64
	f.db.Model(&models.TeamAnalysis{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAnalyze_WithoutGuardConcurrentRunsBothStore(t *testing.T) {
	f := newAnalysisFixture(t, false)
	f.llm.entered = make(chan struct{}, 2)
	f.llm.block = make(chan struct{})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Analyze(context.Background(), f.team.ID)
			errs <- err
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-f.llm.entered:
		case <-time.After(5 * time.Second):
			t.Fatal("both runs should reach the model")
		}
	}
	close(f.llm.block)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var count int64
	f.db.Model(&models.TeamAnalysis{}).Where("team_id = ?", f.team.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestAnalyze_PublishesEvents(t *testing.T) {
	f := newAnalysisFixture(t, false)
	ch := f.events.Subscribe("watcher", Subscription{TeamIDs: []string{f.team.ID}})

	_, err := f.svc.Analyze(context.Background(), f.team.ID)
	require.NoError(t, err)

	var types []string
	for len(types) < 2 {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("expected two events, got %v", types)
		}
	}
	assert.Equal(t, []string{EventAnalysisStarted, EventAnalysisCompleted}, types)
}

func TestTriggerIfReady(t *testing.T) {
	ctx := context.Background()

	t.Run("runs once when every member surveyed", func(t *testing.T) {
		f := newAnalysisFixture(t, true)
		ran, err := f.svc.TriggerIfReady(ctx, f.team.ID)
		require.NoError(t, err)
		assert.True(t, ran)

		ran, err = f.svc.TriggerIfReady(ctx, f.team.ID)
		require.NoError(t, err)
		assert.False(t, ran, "an analyzed team must not be re-analyzed automatically")
		assert.Equal(t, 1, f.llm.calls())
	})

	t.Run("skips incomplete team", func(t *testing.T) {
		f := newAnalysisFixture(t, true)
		dave := createUser(t, f.db, "Dave")
		require.NoError(t, f.db.Create(&models.TeamMember{TeamID: f.team.ID, UserID: dave.ID, Role: models.RoleMember}).Error)

		ran, err := f.svc.TriggerIfReady(ctx, f.team.ID)
		require.NoError(t, err)
		assert.False(t, ran)
		assert.Zero(t, f.llm.calls())
	})

	t.Run("disabled by runtime setting", func(t *testing.T) {
		f := newAnalysisFixture(t, true)
		require.NoError(t, NewSystemConfigService(f.db).Set(KeyAnalysisAutoTrigger, "false"))

		ran, err := f.svc.TriggerIfReady(ctx, f.team.ID)
		require.NoError(t, err)
		assert.False(t, ran)
	})

	t.Run("process task wraps failures", func(t *testing.T) {
		f := newAnalysisFixture(t, true)
		f.llm.err = errors.New("boom")
		err := f.svc.ProcessTask(ctx, &AnalysisTask{TeamID: f.team.ID})
		assert.ErrorIs(t, err, ErrAnalysisUnavailable)
	})
}

type holdReadinessKey struct{}

func TestTriggerIfReady_RechecksAfterGuard(t *testing.T) {
	f := newAnalysisFixture(t, true)
	ctx := context.Background()

	// park the held trigger right after it counted zero analyses
	reached, resume := make(chan struct{}), make(chan struct{})
	var once sync.Once
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:hold_readiness", func(tx *gorm.DB) {
		if tx.Statement.Context == nil || tx.Statement.Context.Value(holdReadinessKey{}) == nil {
			return
		}
		if tx.Statement.Schema == nil || tx.Statement.Schema.Name != "TeamAnalysis" {
			return
		}
		once.Do(func() {
			close(reached)
			<-resume
		})
	}))

	type outcome struct {
		ran bool
		err error
	}
	held := make(chan outcome, 1)
	go func() {
		ran, err := f.svc.TriggerIfReady(context.WithValue(ctx, holdReadinessKey{}, true), f.team.ID)
		held <- outcome{ran, err}
	}()

	select {
	case <-reached:
	case <-time.After(5 * time.Second):
		t.Fatal("held trigger never checked readiness")
	}

	ran, err := f.svc.TriggerIfReady(ctx, f.team.ID)
	require.NoError(t, err)
	require.True(t, ran)

	close(resume)
	res := <-held
	require.NoError(t, res.err)
	assert.False(t, res.ran, "a trigger that saw READY_UNANALYZED before the first run finished must not run again")
	assert.Equal(t, 1, f.llm.calls())

	var count int64
	f.db.Model(&models.TeamAnalysis{}).Where("team_id = ?", f.team.ID).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestAnalyze_IgnoresSurveysOfRemovedMembers(t *testing.T) {
	f := newAnalysisFixture(t, true)
	ctx := context.Background()
	alice, bob, carol := f.users[0], f.users[1], f.users[2]

	// Carol surveyed first and then left the team
	require.NoError(t, f.db.Where("team_id = ? AND user_id = ?", f.team.ID, carol.ID).Delete(&models.TeamMember{}).Error)

	report, err := f.svc.readiness.Check(ctx, f.team.ID)
	require.NoError(t, err)
	assert.Equal(t, StateReadyUnanalyzed, report.State)

	surveys, err := LoadSurveys(ctx, f.db, f.team.ID)
	require.NoError(t, err)
	require.Len(t, surveys, report.SurveyCount)
	assert.Equal(t, alice.ID, surveys[0].UserID)
	assert.Equal(t, bob.ID, surveys[1].UserID)

	ran, err := f.svc.TriggerIfReady(ctx, f.team.ID)
	require.NoError(t, err)
	require.True(t, ran)

	analysis, err := f.svc.Latest(ctx, f.team.ID)
	require.NoError(t, err)
	require.NotNil(t, analysis.RoleSuggestions[0].UserID)
	assert.Equal(t, bob.ID, *analysis.RoleSuggestions[0].UserID)
	for _, s := range analysis.RoleSuggestions {
		if s.UserID != nil {
			assert.NotEqual(t, carol.ID, *s.UserID)
		}
	}
}

func TestLatest_NotFound(t *testing.T) {
	f := newAnalysisFixture(t, false)
	_, err := f.svc.Latest(context.Background(), f.team.ID)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}
