package services

import (
	"errors"
	"strconv"

	"github.com/teamello/backend/internal/models"
	"gorm.io/gorm"
)

// Runtime setting keys
const (
	KeyAnalysisAutoTrigger      = "analysis_auto_trigger"
	KeyConflictScanEnabled      = "conflict_scan_enabled"
	KeyConflictScanCountry      = "conflict_scan_country"
	KeyConflictScanLookbackDays = "conflict_scan_lookback_days"
	KeyAccessTokenExpireHours   = "auth_access_token_expire_hours"
	KeyRefreshTokenExpireHours  = "auth_refresh_token_expire_hours"
)

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) GetBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(s.GetWithDefault(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) GetInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(s.GetWithDefault(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("config_key = ?", key).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = models.SystemConfig{Key: key, Value: value}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where("config_group = ?", group).Order("id ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *SystemConfigService) List() ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Order("config_group ASC, id ASC").Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// SetMany updates several existing settings in one transaction. Values must
// match the setting type; an empty value restores the config-file default.
func (s *SystemConfigService) SetMany(values map[string]string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for key, value := range values {
			var cfg models.SystemConfig
			if err := tx.Where("config_key = ?", key).First(&cfg).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return NewValidationError("unknown setting %q", key)
				}
				return persistenceError("load setting", err)
			}
			if err := checkSettingValue(cfg.Type, value); err != nil {
				return NewValidationError("invalid value for %s: %v", key, err)
			}
			if err := tx.Model(&cfg).Update("value", value).Error; err != nil {
				return persistenceError("update setting", err)
			}
		}
		return nil
	})
}

func checkSettingValue(typ, value string) error {
	if value == "" {
		return nil
	}
	switch typ {
	case "bool":
		_, err := strconv.ParseBool(value)
		return err
	case "int":
		_, err := strconv.Atoi(value)
		return err
	}
	return nil
}
