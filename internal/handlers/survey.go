package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

type SurveyHandler struct {
	surveys *services.SurveyService
	members *services.MemberService
}

func NewSurveyHandler(surveys *services.SurveyService, members *services.MemberService) *SurveyHandler {
	return &SurveyHandler{surveys: surveys, members: members}
}

// List returns the team's surveys, or only the caller's with ?mine=1.
// GET /api/teams/:id/surveys
func (h *SurveyHandler) List(c *gin.Context) {
	teamID, ok := memberOfTeam(c, h.members)
	if !ok {
		return
	}

	if c.Query("mine") == "1" {
		survey, err := h.surveys.Get(c.Request.Context(), teamID, middleware.GetIdentity(c).UserID)
		if err != nil {
			fail(c, err)
			return
		}
		response.Success(c, survey)
		return
	}

	surveys, err := h.surveys.List(c.Request.Context(), teamID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, surveys)
}

// POST /api/teams/:id/surveys
func (h *SurveyHandler) Submit(c *gin.Context) {
	var req services.SubmitSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	survey, err := h.surveys.Submit(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, survey)
}
