package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

type TeamHandler struct {
	teams   *services.TeamService
	members *services.MemberService
}

func NewTeamHandler(teams *services.TeamService, members *services.MemberService) *TeamHandler {
	return &TeamHandler{teams: teams, members: members}
}

// List returns the caller's teams for the dashboard.
// GET /api/teams
func (h *TeamHandler) List(c *gin.Context) {
	teams, err := h.teams.ListForUser(c.Request.Context(), middleware.GetIdentity(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, teams)
}

// POST /api/teams
func (h *TeamHandler) Create(c *gin.Context) {
	var req services.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	team, err := h.teams.Create(c.Request.Context(), middleware.GetIdentity(c), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, team)
}

// GET /api/teams/:id
func (h *TeamHandler) Get(c *gin.Context) {
	team, err := h.teams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if _, ok := memberOfTeam(c, h.members); !ok {
		return
	}
	response.Success(c, team)
}

// PUT /api/teams/:id
func (h *TeamHandler) Update(c *gin.Context) {
	var req services.UpdateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	team, err := h.teams.Update(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, team)
}

// DELETE /api/teams/:id
func (h *TeamHandler) Delete(c *gin.Context) {
	if err := h.teams.Delete(c.Request.Context(), middleware.GetIdentity(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "team deleted successfully"})
}

// GET /api/teams/:id/overview
func (h *TeamHandler) Overview(c *gin.Context) {
	overview, err := h.teams.Overview(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, overview)
}
