package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

// TeamRequest is the body of POST /api/ai and POST /api/conflict.
type TeamRequest struct {
	TeamID string `json:"teamId"`
}

type AnalysisHandler struct {
	analyses  *services.AnalysisService
	conflicts *services.ConflictService
	readiness *services.ReadinessService
	members   *services.MemberService
}

func NewAnalysisHandler(analyses *services.AnalysisService, conflicts *services.ConflictService, readiness *services.ReadinessService, members *services.MemberService) *AnalysisHandler {
	return &AnalysisHandler{
		analyses:  analyses,
		conflicts: conflicts,
		readiness: readiness,
		members:   members,
	}
}

func bindTeamID(c *gin.Context) (string, bool) {
	var req TeamRequest
	// a malformed body is reported the same way as a missing id
	_ = c.ShouldBindJSON(&req)
	teamID := strings.TrimSpace(req.TeamID)
	if teamID == "" {
		response.BadRequest(c, "Team ID is required")
		return "", false
	}
	return teamID, true
}

// callerMayRun rejects callers outside an existing team. An unknown team is
// left to the run itself, which answers it as before.
func (h *AnalysisHandler) callerMayRun(c *gin.Context, teamID string) bool {
	_, err := h.members.Require(c.Request.Context(), teamID, middleware.GetIdentity(c).UserID)
	if err != nil && !errors.Is(err, services.ErrTeamNotFound) {
		fail(c, err)
		return false
	}
	return true
}

// Analyze runs a new team-dynamics analysis.
// POST /api/ai
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	teamID, ok := bindTeamID(c)
	if !ok || !h.callerMayRun(c, teamID) {
		return
	}

	analysis, err := h.analyses.Analyze(c.Request.Context(), teamID)
	if err != nil {
		fail(c, err)
		return
	}

	response.Analysis(c, analysis)
}

// DetectConflict runs conflict-risk detection over recent check-ins.
// POST /api/conflict
func (h *AnalysisHandler) DetectConflict(c *gin.Context) {
	teamID, ok := bindTeamID(c)
	if !ok || !h.callerMayRun(c, teamID) {
		return
	}

	result, err := h.conflicts.Detect(c.Request.Context(), teamID, models.SourceManual)
	if err != nil {
		fail(c, err)
		return
	}

	response.Analysis(c, result)
}

// GET /api/teams/:id/readiness
func (h *AnalysisHandler) Readiness(c *gin.Context) {
	teamID, ok := memberOfTeam(c, h.members)
	if !ok {
		return
	}

	report, err := h.readiness.Check(c.Request.Context(), teamID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, report)
}

// GET /api/teams/:id/analysis
func (h *AnalysisHandler) Latest(c *gin.Context) {
	teamID, ok := memberOfTeam(c, h.members)
	if !ok {
		return
	}

	analysis, err := h.analyses.Latest(c.Request.Context(), teamID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, analysis)
}

// GET /api/teams/:id/analyses
func (h *AnalysisHandler) List(c *gin.Context) {
	teamID, ok := memberOfTeam(c, h.members)
	if !ok {
		return
	}

	analyses, err := h.analyses.List(c.Request.Context(), teamID, queryLimit(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, analyses)
}

// GET /api/teams/:id/conflicts
func (h *AnalysisHandler) Conflicts(c *gin.Context) {
	teamID, ok := memberOfTeam(c, h.members)
	if !ok {
		return
	}

	reports, err := h.conflicts.History(c.Request.Context(), teamID, queryLimit(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, reports)
}
