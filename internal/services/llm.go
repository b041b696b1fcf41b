package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

const jsonSystemPrompt = "You are an assistant that answers with a single valid JSON object and nothing else."

// LLMService calls the configured providers in order, falling back to the
// next one when a call fails. It satisfies LLMClient.
type LLMService struct {
	db       *gorm.DB
	fallback *config.OpenAIConfig
	usage    *AIUsageService
}

func NewLLMService(db *gorm.DB, cfg *config.OpenAIConfig) *LLMService {
	return &LLMService{
		db:       db,
		fallback: cfg,
		usage:    NewAIUsageService(db),
	}
}

func (s *LLMService) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	llmConfigs := s.orderedConfigs()
	if len(llmConfigs) == 0 {
		return nil, fmt.Errorf("no LLM configuration available")
	}

	var lastErr error
	for i := range llmConfigs {
		llmConfig := &llmConfigs[i]
		logger.Infof("[AI] Attempting LLM %d/%d: %s (provider: %s, model: %s)",
			i+1, len(llmConfigs), llmConfig.Name, llmConfig.Provider, llmConfig.Model)

		start := time.Now()
		result, err := s.callProvider(ctx, llmConfig, req)
		s.recordUsage(req, llmConfig, result, time.Since(start), err)
		if err == nil {
			return result, nil
		}

		lastErr = err
		logger.Warnf("[AI] LLM %s failed: %v", llmConfig.Name, err)
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("all LLMs failed, last error: %w", lastErr)
}

// orderedConfigs returns the default config first, then the other active
// configs by priority. The config file entry is used when none is active.
func (s *LLMService) orderedConfigs() []models.LLMConfig {
	var active []models.LLMConfig
	s.db.Where("is_active = ?", true).
		Order("is_default DESC, priority ASC, id ASC").
		Find(&active)

	if len(active) > 0 {
		return active
	}
	if s.fallback == nil || s.fallback.APIKey == "" {
		return nil
	}
	return []models.LLMConfig{{
		Name:     "config-file",
		Provider: models.ProviderOpenAI,
		BaseURL:  s.fallback.BaseURL,
		APIKey:   s.fallback.APIKey,
		Model:    s.fallback.Model,
	}}
}

func (s *LLMService) recordUsage(req *CompletionRequest, llmConfig *models.LLMConfig, result *CompletionResult, latency time.Duration, err error) {
	entry := &models.AIUsageLog{
		TeamID:      req.TeamID,
		Kind:        req.Kind,
		LLMConfigID: llmConfig.ID,
		Provider:    llmConfig.Provider,
		Model:       llmConfig.Model,
		LatencyMs:   latency.Milliseconds(),
		Success:     err == nil,
	}
	if result != nil {
		entry.PromptTokens = result.PromptTokens
		entry.CompletionTokens = result.CompletionTokens
		entry.TotalTokens = result.PromptTokens + result.CompletionTokens
	}
	if err != nil {
		msg := err.Error()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		entry.ErrorMessage = msg
	}
	s.usage.Record(entry)
}

func temperatureFor(llmConfig *models.LLMConfig, req *CompletionRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	if llmConfig.Temperature > 0 {
		return llmConfig.Temperature
	}
	return 0.7
}

func (s *LLMService) callProvider(ctx context.Context, llmConfig *models.LLMConfig, req *CompletionRequest) (*CompletionResult, error) {
	var (
		result *CompletionResult
		err    error
	)
	switch llmConfig.Provider {
	case models.ProviderAnthropic:
		result, err = callAnthropic(ctx, llmConfig, req)
	case models.ProviderOllama:
		result, err = callOllama(ctx, llmConfig, req)
	case models.ProviderGemini:
		result, err = callGemini(ctx, llmConfig, req)
	case models.ProviderAzure:
		cfg := openai.DefaultAzureConfig(llmConfig.APIKey, llmConfig.BaseURL)
		result, err = callOpenAICompatible(ctx, cfg, llmConfig, req)
	default:
		// openai and OpenAI-compatible endpoints
		cfg := openai.DefaultConfig(llmConfig.APIKey)
		if llmConfig.BaseURL != "" {
			cfg.BaseURL = llmConfig.BaseURL
		}
		result, err = callOpenAICompatible(ctx, cfg, llmConfig, req)
	}
	if err != nil {
		return nil, err
	}

	result.Provider = llmConfig.Provider
	if result.Provider == "" {
		result.Provider = models.ProviderOpenAI
	}
	result.Model = llmConfig.Model
	return result, nil
}

// callOpenAICompatible serves OpenAI, Azure OpenAI (Model is the deployment
// name) and compatible endpoints.
func callOpenAICompatible(ctx context.Context, cfg openai.ClientConfig, llmConfig *models.LLMConfig, req *CompletionRequest) (*CompletionResult, error) {
	client := openai.NewClientWithConfig(cfg)

	chatReq := openai.ChatCompletionRequest{
		Model: llmConfig.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(temperatureFor(llmConfig, req)),
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	return &CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func callAnthropic(ctx context.Context, llmConfig *models.LLMConfig, req *CompletionRequest) (*CompletionResult, error) {
	opts := []option.RequestOption{option.WithAPIKey(llmConfig.APIKey)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(llmConfig.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(llmConfig.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	model := llmConfig.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperatureFor(llmConfig, req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.JSONMode {
		params.System = []anthropic.TextBlockParam{{Text: jsonSystemPrompt}}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &CompletionResult{
		Content:          content.String(),
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func callOllama(ctx context.Context, llmConfig *models.LLMConfig, req *CompletionRequest) (*CompletionResult, error) {
	baseURL := llmConfig.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama base URL: %w", err)
	}
	client := api.NewClient(u, http.DefaultClient)

	model := llmConfig.Model
	if model == "" {
		model = "llama3"
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{{Role: "user", Content: req.Prompt}},
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": temperatureFor(llmConfig, req),
		},
	}
	if req.JSONMode {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var (
		content strings.Builder
		result  CompletionResult
	)
	err = client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			result.PromptTokens = resp.PromptEvalCount
			result.CompletionTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Ollama API error: %w", err)
	}

	result.Content = content.String()
	return &result, nil
}

func callGemini(ctx context.Context, llmConfig *models.LLMConfig, req *CompletionRequest) (*CompletionResult, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  llmConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini client error: %w", err)
	}

	model := llmConfig.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperatureFor(llmConfig, req))),
	}
	if req.JSONMode {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	result := &CompletionResult{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}
