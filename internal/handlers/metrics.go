package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler serves Prometheus-compatible text metrics.
type MetricsHandler struct {
	db  *gorm.DB
	hub *services.EventHub
}

func NewMetricsHandler(db *gorm.DB, hub *services.EventHub) *MetricsHandler {
	return &MetricsHandler{db: db, hub: hub}
}

// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "teamello_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "teamello_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "teamello_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "teamello_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	if sqlDB, err := h.db.DB(); err == nil {
		stats := sqlDB.Stats()
		writeGauge(&b, "teamello_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
		writeGauge(&b, "teamello_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
	}

	writeGauge(&b, "teamello_sse_active_clients", "Number of active SSE connections", float64(h.hub.ClientCount()))

	queueAsync := 0.0
	if taskQueue := services.GetTaskQueue(); taskQueue != nil && taskQueue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "teamello_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	var teams, users, analyses, conflicts, interventions int64
	h.db.Model(&models.Team{}).Count(&teams)
	h.db.Model(&models.User{}).Count(&users)
	h.db.Model(&models.TeamAnalysis{}).Count(&analyses)
	h.db.Model(&models.ConflictReport{}).Count(&conflicts)
	h.db.Model(&models.ConflictReport{}).Where("intervention_needed = ?", true).Count(&interventions)

	writeGauge(&b, "teamello_teams_total", "Number of teams", float64(teams))
	writeGauge(&b, "teamello_users_total", "Number of registered users", float64(users))
	writeGauge(&b, "teamello_analyses_total", "Number of stored team analyses", float64(analyses))
	writeGauge(&b, "teamello_conflict_reports_total", "Number of archived conflict reports", float64(conflicts))
	writeGauge(&b, "teamello_conflict_interventions_total", "Conflict reports that asked for intervention", float64(interventions))

	var aiCalls24h, aiFailures24h int64
	since24h := time.Now().Add(-24 * time.Hour)
	h.db.Model(&models.AIUsageLog{}).Where("created_at >= ?", since24h).Count(&aiCalls24h)
	h.db.Model(&models.AIUsageLog{}).Where("created_at >= ? AND success = ?", since24h, false).Count(&aiFailures24h)
	writeGauge(&b, "teamello_ai_calls_24h", "AI API calls in the last 24 hours", float64(aiCalls24h))
	writeGauge(&b, "teamello_ai_failures_24h", "Failed AI API calls in the last 24 hours", float64(aiFailures24h))

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}
