package models

import (
	"fmt"

	"github.com/teamello/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the configured store without touching the package-level handle.
func Open(cfg *config.DatabaseConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

func InitDB(cfg *config.DatabaseConfig, debug bool) error {
	level := logger.Warn
	if debug {
		level = logger.Info
	}

	db, err := Open(cfg, level)
	if err != nil {
		return err
	}

	DB = db
	return nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Team{},
		&TeamMember{},
		&Survey{},
		&CheckIn{},
		&TeamAnalysis{},
		&ConflictReport{},
		&AnalysisLock{},
		&LLMConfig{},
		&AIUsageLog{},
		&SystemConfig{},
	)
}

func AutoMigrate() error {
	return Migrate(DB)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default runtime settings if they do not exist yet.
func SeedDefaultData(db *gorm.DB) error {
	defaults := []SystemConfig{
		{Key: "analysis_auto_trigger", Value: "true", Type: "bool", Group: "analysis", Label: "Run analysis automatically when every member has submitted a survey"},
		{Key: "conflict_scan_enabled", Value: "true", Type: "bool", Group: "conflict", Label: "Enable Daily Conflict Scan"},
		{Key: "conflict_scan_country", Value: "", Type: "string", Group: "conflict", Label: "Holiday Calendar For Conflict Scan (empty uses the config file)"},
		{Key: "conflict_scan_lookback_days", Value: "7", Type: "int", Group: "conflict", Label: "Only Scan Teams With Check-ins In The Last N Days"},
		{Key: "auth_access_token_expire_hours", Value: "", Type: "int", Group: "auth", Label: "Access Token Lifetime In Hours (empty uses the config file)"},
		{Key: "auth_refresh_token_expire_hours", Value: "", Type: "int", Group: "auth", Label: "Refresh Token Lifetime In Hours (empty uses the config file)"},
	}

	for _, cfg := range defaults {
		var count int64
		db.Model(&SystemConfig{}).Where("config_key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
