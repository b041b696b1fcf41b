package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/logger"
)

// EventsHandler streams real-time events over Server-Sent Events
type EventsHandler struct {
	hub       *services.EventHub
	teams     *services.TeamService
	members   *services.MemberService
	keepAlive time.Duration
}

func NewEventsHandler(hub *services.EventHub, teams *services.TeamService, members *services.MemberService) *EventsHandler {
	return &EventsHandler{
		hub:       hub,
		teams:     teams,
		members:   members,
		keepAlive: 30 * time.Second,
	}
}

// subscription resolves which teams the caller listens to: the ?team_id
// values when given (each must be one of the caller's teams), otherwise all
// of them.
func (h *EventsHandler) subscription(c *gin.Context, identity services.Identity) (services.Subscription, error) {
	sub := services.Subscription{UserID: identity.UserID}

	if teamIDs := c.QueryArray("team_id"); len(teamIDs) > 0 {
		for _, teamID := range teamIDs {
			if _, err := h.members.Require(c.Request.Context(), teamID, identity.UserID); err != nil {
				return sub, err
			}
		}
		sub.TeamIDs = teamIDs
		return sub, nil
	}

	teams, err := h.teams.ListForUser(c.Request.Context(), identity.UserID)
	if err != nil {
		return sub, err
	}
	for _, t := range teams {
		sub.TeamIDs = append(sub.TeamIDs, t.ID)
	}
	return sub, nil
}

// Stream handles SSE connections for team and session events
// GET /api/events
func (h *EventsHandler) Stream(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	sub, err := h.subscription(c, identity)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID, sub)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Str("user_id", identity.UserID).
		Int("teams", len(sub.TeamIDs)).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			c.Writer.Flush()
			return true
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
