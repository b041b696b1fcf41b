package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

type CheckInHandler struct {
	checkins *services.CheckInService
	members  *services.MemberService
}

func NewCheckInHandler(checkins *services.CheckInService, members *services.MemberService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins, members: members}
}

// GET /api/teams/:id/checkins
func (h *CheckInHandler) List(c *gin.Context) {
	teamID, ok := memberOfTeam(c, h.members)
	if !ok {
		return
	}

	checkins, err := h.checkins.ListRecent(c.Request.Context(), teamID, queryLimit(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, checkins)
}

// POST /api/teams/:id/checkins
func (h *CheckInHandler) Submit(c *gin.Context) {
	var req services.SubmitCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	checkin, err := h.checkins.Submit(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, checkin)
}
