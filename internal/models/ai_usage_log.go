package models

import "time"

// Analysis kinds recorded in usage logs
const (
	KindTeamDynamics = "team_dynamics"
	KindConflict     = "conflict"
)

// AIUsageLog records each LLM API call for cost and usage tracking.
type AIUsageLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	TeamID           string    `gorm:"index;size:36" json:"team_id"`
	Kind             string    `gorm:"size:30;index" json:"kind"`
	LLMConfigID      uint      `gorm:"index" json:"llm_config_id"`
	Provider         string    `gorm:"size:50" json:"provider"`
	Model            string    `gorm:"size:100" json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	Success          bool      `json:"success"`
	ErrorMessage     string    `gorm:"size:500" json:"error_message,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (AIUsageLog) TableName() string { return "ai_usage_logs" }
