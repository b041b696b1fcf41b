package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/internal/services"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Render serves the printable team report.
// GET /api/teams/:id/report
func (h *ReportHandler) Render(c *gin.Context) {
	html, err := h.reports.Render(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	if c.Query("download") == "1" {
		c.Header("Content-Disposition", `attachment; filename="team-report.html"`)
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
