package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, queue and event hub.
type HealthHandler struct {
	db  *gorm.DB
	hub *services.EventHub
}

func NewHealthHandler(db *gorm.DB, hub *services.EventHub) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

// CheckHealth returns the health status of all subsystems.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err = sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if err != nil {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if taskQueue := services.GetTaskQueue(); taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "teamello",
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode,
			"sse_clients": h.hub.ClientCount(),
		},
	})
}
