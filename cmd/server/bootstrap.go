package main

import (
	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/handlers"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/internal/utils"
	"github.com/teamello/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg          *config.Config
	events       *services.EventHub
	taskQueue    services.TaskQueue
	worker       *services.Worker
	conflictScan *services.ConflictScanService

	authHandler         *handlers.AuthHandler
	analysisHandler     *handlers.AnalysisHandler
	teamHandler         *handlers.TeamHandler
	memberHandler       *handlers.MemberHandler
	surveyHandler       *handlers.SurveyHandler
	checkinHandler      *handlers.CheckInHandler
	reportHandler       *handlers.ReportHandler
	eventsHandler       *handlers.EventsHandler
	llmConfigHandler    *handlers.LLMConfigHandler
	aiUsageHandler      *handlers.AIUsageHandler
	systemConfigHandler *handlers.SystemConfigHandler
	conflictScanHandler *handlers.ConflictScanHandler
	healthHandler       *handlers.HealthHandler
	metricsHandler      *handlers.MetricsHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database, cfg.Server.Mode == "debug"); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.SeedDefaultData(models.GetDB()); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}
	db := models.GetDB()

	events := services.GetEventHub()

	var guard services.AnalysisGuard
	if cfg.Analysis.DedupeGuard {
		guard = services.NewAnalysisGuard(db, cfg)
	} else {
		logger.Warn().Msg("[Analysis] Dedupe guard disabled, concurrent runs for one team may store duplicate analyses")
	}

	llm := services.NewLLMService(db, &cfg.OpenAI)
	requester := services.NewAnalysisRequester(llm, cfg.Analysis)
	analysisService := services.NewAnalysisService(db, requester, guard, events, cfg.Analysis.AutoTrigger)
	conflictService := services.NewConflictService(db, requester, events, cfg.Analysis.CheckinFetchLimit)

	// Task queue uses Redis if enabled, otherwise runs tasks in-process
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(analysisService.ProcessTask)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(analysisService.ProcessTask)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("[Worker] Failed to start")
			}
		}
	}

	trigger := func(teamID, reason string) {
		if err := taskQueue.Enqueue(&services.AnalysisTask{TeamID: teamID, Reason: reason}); err != nil {
			logger.Error().Err(err).Str("team_id", teamID).Msg("[TaskQueue] Failed to enqueue auto analysis")
		}
	}

	memberService := services.NewMemberService(db, events, trigger)
	teamService := services.NewTeamService(db, memberService)
	surveyService := services.NewSurveyService(db, events, trigger)
	checkinService := services.NewCheckInService(db, events)
	readinessService := services.NewReadinessService(db)
	reportService := services.NewReportService(db, teamService, memberService, analysisService, checkinService)
	authService := services.NewAuthService(db, &cfg.JWT, events)

	conflictScan := services.NewConflictScanService(db, conflictService, cfg.Scheduler)
	if err := conflictScan.StartScheduler(); err != nil {
		logger.Error().Err(err).Msg("[ConflictScan] Failed to start scheduler")
	}

	return &appServices{
		cfg:          cfg,
		events:       events,
		taskQueue:    taskQueue,
		worker:       worker,
		conflictScan: conflictScan,

		authHandler:         handlers.NewAuthHandler(authService),
		analysisHandler:     handlers.NewAnalysisHandler(analysisService, conflictService, readinessService, memberService),
		teamHandler:         handlers.NewTeamHandler(teamService, memberService),
		memberHandler:       handlers.NewMemberHandler(memberService),
		surveyHandler:       handlers.NewSurveyHandler(surveyService, memberService),
		checkinHandler:      handlers.NewCheckInHandler(checkinService, memberService),
		reportHandler:       handlers.NewReportHandler(reportService),
		eventsHandler:       handlers.NewEventsHandler(events, teamService, memberService),
		llmConfigHandler:    handlers.NewLLMConfigHandler(services.NewLLMConfigService(db)),
		aiUsageHandler:      handlers.NewAIUsageHandler(services.NewAIUsageService(db)),
		systemConfigHandler: handlers.NewSystemConfigHandler(services.NewSystemConfigService(db)),
		conflictScanHandler: handlers.NewConflictScanHandler(conflictScan),
		healthHandler:       handlers.NewHealthHandler(db, events),
		metricsHandler:      handlers.NewMetricsHandler(db, events),
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.conflictScan.StopScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("[TaskQueue] Close failed")
		}
	}
}
