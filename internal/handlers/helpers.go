package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

func fail(c *gin.Context, err error) {
	response.Error(c, services.ToAppError(err))
}

// memberOfTeam checks that the caller belongs to the team in the :id path
// param and writes the error response when not.
func memberOfTeam(c *gin.Context, members *services.MemberService) (string, bool) {
	teamID := c.Param("id")
	if _, err := members.Require(c.Request.Context(), teamID, middleware.GetIdentity(c).UserID); err != nil {
		fail(c, err)
		return "", false
	}
	return teamID, true
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return limit
}
