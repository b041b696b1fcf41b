package main

import (
	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/middleware"
	"github.com/teamello/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS())

	aiLimiter := middleware.NewRateLimiter(svc.cfg.Analysis.RateLimitRPS, svc.cfg.Analysis.RateLimitBurst)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", svc.metricsHandler.Metrics)

	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", svc.authHandler.SignUp)
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)

			// SSE accepts ?token= since EventSource cannot send headers
			protected.GET("/events", svc.eventsHandler.Stream)

			// AI analysis
			ai := protected.Group("", aiLimiter.Middleware())
			{
				ai.POST("/ai", svc.analysisHandler.Analyze)
				ai.POST("/conflict", svc.analysisHandler.DetectConflict)
			}

			// Teams
			protected.GET("/teams", svc.teamHandler.List)
			protected.POST("/teams", svc.teamHandler.Create)
			protected.GET("/teams/:id", svc.teamHandler.Get)
			protected.PUT("/teams/:id", svc.teamHandler.Update)
			protected.DELETE("/teams/:id", svc.teamHandler.Delete)
			protected.GET("/teams/:id/overview", svc.teamHandler.Overview)

			// Members
			protected.GET("/teams/:id/members", svc.memberHandler.List)
			protected.POST("/teams/:id/members", svc.memberHandler.Add)
			protected.PUT("/teams/:id/members/:memberID", svc.memberHandler.UpdateRole)
			protected.DELETE("/teams/:id/members/:memberID", svc.memberHandler.Remove)

			// Surveys and check-ins
			protected.GET("/teams/:id/surveys", svc.surveyHandler.List)
			protected.POST("/teams/:id/surveys", svc.surveyHandler.Submit)
			protected.GET("/teams/:id/checkins", svc.checkinHandler.List)
			protected.POST("/teams/:id/checkins", svc.checkinHandler.Submit)

			// Analysis results
			protected.GET("/teams/:id/readiness", svc.analysisHandler.Readiness)
			protected.GET("/teams/:id/analysis", svc.analysisHandler.Latest)
			protected.GET("/teams/:id/analyses", svc.analysisHandler.List)
			protected.GET("/teams/:id/conflicts", svc.analysisHandler.Conflicts)
			protected.GET("/teams/:id/report", svc.reportHandler.Render)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(svc.cfg.Server.AdminEmails))
		{
			admin.GET("/llm-configs", svc.llmConfigHandler.List)
			admin.GET("/llm-configs/:id", svc.llmConfigHandler.GetByID)
			admin.POST("/llm-configs", svc.llmConfigHandler.Create)
			admin.PUT("/llm-configs/:id", svc.llmConfigHandler.Update)
			admin.DELETE("/llm-configs/:id", svc.llmConfigHandler.Delete)

			admin.GET("/ai-usage/stats", svc.aiUsageHandler.GetStats)
			admin.GET("/ai-usage/trend", svc.aiUsageHandler.GetDailyTrend)
			admin.GET("/ai-usage/providers", svc.aiUsageHandler.GetProviderBreakdown)

			admin.GET("/settings", svc.systemConfigHandler.List)
			admin.PUT("/settings", svc.systemConfigHandler.Update)
			admin.GET("/settings/holiday-countries", svc.conflictScanHandler.HolidayCountries)
			admin.POST("/conflict-scan/run", svc.conflictScanHandler.Run)
		}
	}
}
