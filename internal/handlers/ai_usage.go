package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/response"
)

// AIUsageHandler provides endpoints for AI usage statistics.
type AIUsageHandler struct {
	usageService *services.AIUsageService
}

func NewAIUsageHandler(usageService *services.AIUsageService) *AIUsageHandler {
	return &AIUsageHandler{usageService: usageService}
}

// GetStats returns aggregated AI usage statistics, optionally filtered by
// date range, team and analysis kind.
// GET /api/ai-usage/stats
func (h *AIUsageHandler) GetStats(c *gin.Context) {
	var filter services.UsageFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	stats, err := h.usageService.GetStats(&filter)
	if err != nil {
		response.ServerError(c, "failed to get AI usage stats: "+err.Error())
		return
	}

	response.Success(c, stats)
}

// GetDailyTrend returns daily AI usage data for charting.
// GET /api/ai-usage/trend
func (h *AIUsageHandler) GetDailyTrend(c *gin.Context) {
	var filter services.UsageFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trend, err := h.usageService.GetDailyTrend(&filter)
	if err != nil {
		response.ServerError(c, "failed to get AI usage trend: "+err.Error())
		return
	}

	response.Success(c, trend)
}

// GetProviderBreakdown returns AI usage grouped by provider/model.
// GET /api/ai-usage/providers
func (h *AIUsageHandler) GetProviderBreakdown(c *gin.Context) {
	var filter services.UsageFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	providers, err := h.usageService.GetProviderBreakdown(&filter)
	if err != nil {
		response.ServerError(c, "failed to get provider breakdown: "+err.Error())
		return
	}

	response.Success(c, providers)
}
