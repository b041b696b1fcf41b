package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/internal/services"
)

// streamRecorder lets gin's c.Stream run against a recorder.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)
	alice, token := env.user(t, "Alice")
	team := env.teamWithSurveys(t, alice)
	other := &models.Team{Name: "Other", CreatorID: "someone-else"}
	require.NoError(t, env.db.Create(other).Error)

	hub := services.NewEventHub()
	members := services.NewMemberService(env.db, hub, nil)
	h := NewEventsHandler(hub, services.NewTeamService(env.db, members), members)
	h.keepAlive = 10 * time.Millisecond

	router := gin.New()
	router.GET("/api/events", middleware.AuthRequired(), h.Stream)

	t.Run("rejects a team the caller is not in", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/events?team_id="+other.ID+"&token="+token, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("delivers team events", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
		req, _ := http.NewRequestWithContext(ctx, "GET", "/api/events?token="+token, nil)

		done := make(chan struct{})
		go func() {
			defer close(done)
			router.ServeHTTP(w, req)
		}()

		require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
		hub.Publish(services.Event{Type: services.EventAnalysisCompleted, TeamID: other.ID})
		hub.Publish(services.Event{Type: services.EventAnalysisCompleted, TeamID: team.ID})
		time.Sleep(50 * time.Millisecond)
		cancel()
		<-done

		body := w.Body.String()
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		assert.Equal(t, 1, strings.Count(body, "event: analysis_completed"))
		assert.Contains(t, body, team.ID)
		assert.NotContains(t, body, other.ID)
		assert.Equal(t, 0, hub.ClientCount())
	})
}
