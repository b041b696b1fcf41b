package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
	"gorm.io/gorm"
)

const usageRetention = 90 * 24 * time.Hour

// ScanSummary describes one scheduled conflict scan.
type ScanSummary struct {
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
	Teams   int    `json:"teams"`
	Flagged int    `json:"flagged"`
	Failed  int    `json:"failed"`
}

// ConflictScanService runs conflict detection for recently active teams on
// a cron schedule, skipping non-workdays.
type ConflictScanService struct {
	db        *gorm.DB
	conflicts *ConflictService
	holidays  *HolidayCalendar
	configSvc *SystemConfigService
	usage     *AIUsageService
	cfg       config.SchedulerConfig
	scheduler *cron.Cron
	now       func() time.Time
}

func NewConflictScanService(db *gorm.DB, conflicts *ConflictService, cfg config.SchedulerConfig) *ConflictScanService {
	return &ConflictScanService{
		db:        db,
		conflicts: conflicts,
		holidays:  NewHolidayCalendar(),
		configSvc: NewSystemConfigService(db),
		usage:     NewAIUsageService(db),
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *ConflictScanService) StartScheduler() error {
	if !s.cfg.ConflictScanEnabled {
		logger.Infof("[ConflictScan] Disabled by config")
		return nil
	}

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(s.cfg.ConflictScanCron, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			logger.Errorf("[ConflictScan] Scan failed: %v", err)
		}
	}); err != nil {
		return err
	}
	if _, err := s.scheduler.AddFunc("30 3 * * 0", s.cleanupUsage); err != nil {
		return err
	}

	s.scheduler.Start()
	logger.Infof("[ConflictScan] Scheduler started (cron: %s)", s.cfg.ConflictScanCron)
	return nil
}

func (s *ConflictScanService) StopScheduler() {
	if s.scheduler != nil {
		<-s.scheduler.Stop().Done()
	}
}

// RunOnce scans every team with a check-in inside the lookback window.
func (s *ConflictScanService) RunOnce(ctx context.Context) (*ScanSummary, error) {
	if !s.configSvc.GetBool(KeyConflictScanEnabled, true) {
		return &ScanSummary{Skipped: true, Reason: "disabled"}, nil
	}

	now := s.now()
	country := s.configSvc.GetWithDefault(KeyConflictScanCountry, "")
	if country == "" {
		country = s.cfg.HolidayCountry
	}
	if !s.holidays.IsWorkday(now, country) {
		logger.Infof("[ConflictScan] %s is not a workday in %s, skipping", now.Format("2006-01-02"), country)
		return &ScanSummary{Skipped: true, Reason: "holiday"}, nil
	}

	lookback := s.configSvc.GetInt(KeyConflictScanLookbackDays, 7)
	since := now.Add(-time.Duration(lookback) * 24 * time.Hour)

	var teamIDs []string
	if err := s.db.WithContext(ctx).Model(&models.CheckIn{}).
		Where("created_at >= ?", since).
		Distinct().
		Pluck("team_id", &teamIDs).Error; err != nil {
		return nil, persistenceError("find active teams", err)
	}

	summary := &ScanSummary{Teams: len(teamIDs)}
	for _, teamID := range teamIDs {
		result, err := s.conflicts.Detect(ctx, teamID, models.SourceScheduled)
		if err != nil {
			summary.Failed++
			logger.Warn().Err(err).Str("team_id", teamID).Msg("[ConflictScan] detection failed")
			continue
		}
		if result.InterventionNeeded {
			summary.Flagged++
		}
	}

	logger.Info().
		Int("teams", summary.Teams).
		Int("flagged", summary.Flagged).
		Int("failed", summary.Failed).
		Msg("[ConflictScan] scan finished")
	return summary, nil
}

func (s *ConflictScanService) cleanupUsage() {
	removed, err := s.usage.CleanupBefore(s.now().Add(-usageRetention))
	if err != nil {
		logger.Warnf("[ConflictScan] usage cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		logger.Infof("[ConflictScan] removed %d old usage logs", removed)
	}
}
