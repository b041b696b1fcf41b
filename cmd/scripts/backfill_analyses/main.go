// Command backfill_analyses runs the automatic analysis for every team that
// is ready but has never been analyzed, e.g. after auto-trigger was off.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/internal/services"
	"github.com/teamello/backend/pkg/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "only list the teams that would be analyzed")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.Server.LogLevel)

	if err := models.InitDB(&cfg.Database, false); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	db := models.GetDB()

	var teamIDs []string
	if err := db.Model(&models.Team{}).Order("created_at ASC").Pluck("id", &teamIDs).Error; err != nil {
		logger.Fatalf("Failed to list teams: %v", err)
	}

	ctx := context.Background()
	readiness := services.NewReadinessService(db)
	requester := services.NewAnalysisRequester(services.NewLLMService(db, &cfg.OpenAI), cfg.Analysis)
	analyses := services.NewAnalysisService(db, requester, services.NewAnalysisGuard(db, cfg), nil, true)

	var ready, done, failed int
	for _, teamID := range teamIDs {
		report, err := readiness.Check(ctx, teamID)
		if err != nil {
			logger.Error().Err(err).Str("team_id", teamID).Msg("readiness check failed")
			failed++
			continue
		}
		if report.State != services.StateReadyUnanalyzed {
			continue
		}
		ready++
		if *dryRun {
			logger.Info().Str("team_id", teamID).Int("surveys", report.SurveyCount).Msg("would analyze")
			continue
		}

		if _, err := analyses.Analyze(ctx, teamID); err != nil {
			logger.Error().Err(err).Str("team_id", teamID).Msg("analysis failed")
			failed++
			continue
		}
		done++
	}

	logger.Info().Int("teams", len(teamIDs)).Int("ready", ready).Int("analyzed", done).Int("failed", failed).Msg("backfill finished")
	if failed > 0 {
		os.Exit(1)
	}
}
