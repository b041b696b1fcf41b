package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

type ConflictScanHandler struct {
	scan     *services.ConflictScanService
	holidays *services.HolidayCalendar
}

func NewConflictScanHandler(scan *services.ConflictScanService) *ConflictScanHandler {
	return &ConflictScanHandler{
		scan:     scan,
		holidays: services.NewHolidayCalendar(),
	}
}

// Run starts a conflict scan immediately instead of waiting for the schedule.
// POST /api/conflict-scan/run
func (h *ConflictScanHandler) Run(c *gin.Context) {
	summary, err := h.scan.RunOnce(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, summary)
}

// HolidayCountries lists the calendars the scan can skip holidays for.
// GET /api/settings/holiday-countries
func (h *ConflictScanHandler) HolidayCountries(c *gin.Context) {
	response.Success(c, h.holidays.SupportedCountries())
}
