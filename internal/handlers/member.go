package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(members *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: members}
}

// GET /api/teams/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	teamID, ok := memberOfTeam(c, h.memberService)
	if !ok {
		return
	}

	members, err := h.memberService.List(c.Request.Context(), teamID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, members)
}

// Add invites a registered user by email.
// POST /api/teams/:id/members
func (h *MemberHandler) Add(c *gin.Context) {
	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.memberService.AddByEmail(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, member)
}

// PUT /api/teams/:id/members/:memberID
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	var req services.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.memberService.UpdateRole(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), c.Param("memberID"), req.Role)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, member)
}

// DELETE /api/teams/:id/members/:memberID
func (h *MemberHandler) Remove(c *gin.Context) {
	if err := h.memberService.Remove(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"), c.Param("memberID")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "member removed successfully"})
}
