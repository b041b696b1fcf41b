package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/teamello/backend/internal/config"
	"github.com/teamello/backend/internal/models"
	"github.com/teamello/backend/pkg/logger"
)

// CompletionRequest is a single prompt sent to a text-generation provider.
type CompletionRequest struct {
	TeamID      string
	Kind        string // team_dynamics, conflict
	Prompt      string
	Temperature float64
	JSONMode    bool
}

type CompletionResult struct {
	Content          string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// LLMClient is the external text-generation boundary.
type LLMClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)
}

// SurveyInput is the reduced survey sent to the model. MemberIndex is the
// position in the submitted list and must be echoed back unchanged.
type SurveyInput struct {
	MemberIndex   int      `json:"member_index"`
	WorkStyle     string   `json:"work_style"`
	Communication string   `json:"communication"`
	Schedule      string   `json:"schedule"`
	Conflict      string   `json:"conflict"`
	Strengths     []string `json:"strengths"`
}

type CheckInInput struct {
	Member     string `json:"member,omitempty"`
	Mood       string `json:"mood"`
	Progress   int    `json:"progress"`
	Challenges string `json:"challenges"`
	NeedsHelp  bool   `json:"needs_help"`
	CreatedAt  string `json:"created_at"`
}

// TeamDynamicsResult is a validated team-dynamics response. Role suggestions
// still carry positional member indices only.
type TeamDynamicsResult struct {
	RiskScore       int                     `json:"risk_score"`
	RiskFactors     []models.RiskFactor     `json:"risk_factors"`
	Recommendations []models.Recommendation `json:"recommendations"`
	RoleSuggestions []models.RoleSuggestion `json:"role_suggestions"`
}

type rawTeamDynamics struct {
	RiskScore       *float64                `json:"risk_score"`
	RiskFactors     []models.RiskFactor     `json:"risk_factors"`
	Recommendations []models.Recommendation `json:"recommendations"`
	RoleSuggestions []rawRoleSuggestion     `json:"role_suggestions"`
}

type rawRoleSuggestion struct {
	MemberIndex   *int     `json:"member_index"`
	SuggestedRole string   `json:"suggested_role"`
	Reasoning     string   `json:"reasoning"`
	Strengths     []string `json:"strengths"`
}

type rawConflict struct {
	RiskLevel          string           `json:"risk_level"`
	Concerns           []models.Concern `json:"concerns"`
	InterventionNeeded *bool            `json:"intervention_needed"`
	SuggestedActions   []string         `json:"suggested_actions"`
}

// AnalysisRequester turns survey and check-in records into prompts and parses
// the model's JSON answer into validated results.
type AnalysisRequester struct {
	client LLMClient
	cfg    config.AnalysisConfig
}

func NewAnalysisRequester(client LLMClient, cfg config.AnalysisConfig) *AnalysisRequester {
	return &AnalysisRequester{client: client, cfg: cfg}
}

// AnalyzeTeamDynamics asks the model for a team risk assessment over surveys,
// in the order given.
func (r *AnalysisRequester) AnalyzeTeamDynamics(ctx context.Context, teamID string, surveys []models.Survey) (*TeamDynamicsResult, error) {
	inputs := make([]SurveyInput, len(surveys))
	for i, s := range surveys {
		strengths := s.Strengths
		if strengths == nil {
			strengths = []string{}
		}
		inputs[i] = SurveyInput{
			MemberIndex:   i,
			WorkStyle:     s.WorkStyle,
			Communication: s.CommunicationPreference,
			Schedule:      s.ScheduleFlexibility,
			Conflict:      s.ConflictStyle,
			Strengths:     strengths,
		}
	}

	data, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode surveys: %v", ErrAnalysisUnavailable, err)
	}

	content, err := r.complete(ctx, teamID, models.KindTeamDynamics, fmt.Sprintf(teamDynamicsPrompt, data))
	if err != nil {
		return nil, err
	}
	return ParseTeamDynamics(content)
}

// DetectConflictRisk asks the model for conflict warning signs. Only the
// CheckinPromptWindow most recent entries of checkins are sent, oldest first.
func (r *AnalysisRequester) DetectConflictRisk(ctx context.Context, teamID string, checkins []models.CheckIn) (*models.ConflictAnalysis, error) {
	recent := RecentCheckIns(checkins, r.window())

	inputs := make([]CheckInInput, len(recent))
	for i, c := range recent {
		input := CheckInInput{
			Mood:       c.Mood,
			Progress:   c.Progress,
			Challenges: c.Challenges,
			NeedsHelp:  c.NeedsHelp,
			CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		}
		if c.User != nil {
			input.Member = c.User.Name
		}
		inputs[i] = input
	}

	data, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode check-ins: %v", ErrAnalysisUnavailable, err)
	}

	content, err := r.complete(ctx, teamID, models.KindConflict, fmt.Sprintf(conflictPrompt, data))
	if err != nil {
		return nil, err
	}
	return ParseConflict(content)
}

func (r *AnalysisRequester) window() int {
	if r.cfg.CheckinPromptWindow <= 0 {
		return 7
	}
	return r.cfg.CheckinPromptWindow
}

func (r *AnalysisRequester) complete(ctx context.Context, teamID, kind, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout())
	defer cancel()

	start := time.Now()
	result, err := r.client.Complete(ctx, &CompletionRequest{
		TeamID:      teamID,
		Kind:        kind,
		Prompt:      prompt,
		Temperature: r.cfg.Temperature,
		JSONMode:    true,
	})
	if err != nil {
		logger.Warn().Err(err).Str("team_id", teamID).Str("kind", kind).Msg("[AI] completion failed")
		return "", fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	logger.Debug().
		Str("team_id", teamID).
		Str("kind", kind).
		Str("provider", result.Provider).
		Dur("latency", time.Since(start)).
		Int("length", len(result.Content)).
		Msg("[AI] completion received")
	return result.Content, nil
}

// RecentCheckIns orders a copy of checkins chronologically and keeps the
// last n, whatever order the caller fetched them in.
func RecentCheckIns(checkins []models.CheckIn, n int) []models.CheckIn {
	sorted := make([]models.CheckIn, len(checkins))
	copy(sorted, checkins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	if n <= 0 || len(sorted) <= n {
		return sorted
	}
	return sorted[len(sorted)-n:]
}

// stripCodeFence removes a surrounding ```json ... ``` block some providers
// add even in JSON mode.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.Index(content, "\n"); nl != -1 {
		content = content[nl+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrAnalysisUnavailable, fmt.Sprintf(format, args...))
}

// ParseTeamDynamics decodes and validates a team-dynamics response.
func ParseTeamDynamics(content string) (*TeamDynamicsResult, error) {
	var raw rawTeamDynamics
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, unavailable("malformed response: %v", err)
	}

	if raw.RiskScore == nil {
		return nil, unavailable("risk_score is missing")
	}
	score := int(math.Round(*raw.RiskScore))
	if score < 1 || score > 100 {
		return nil, unavailable("risk_score %v is outside 1..100", *raw.RiskScore)
	}
	if raw.RiskFactors == nil || raw.Recommendations == nil || raw.RoleSuggestions == nil {
		return nil, unavailable("risk_factors, recommendations and role_suggestions are required")
	}

	for i, f := range raw.RiskFactors {
		if strings.TrimSpace(f.Category) == "" || strings.TrimSpace(f.Description) == "" {
			return nil, unavailable("risk_factors[%d] is incomplete", i)
		}
		if !models.IsValidLevel(f.Severity) {
			return nil, unavailable("risk_factors[%d] has invalid severity %q", i, f.Severity)
		}
		if f.AffectedMembers == nil {
			raw.RiskFactors[i].AffectedMembers = models.MemberRefs{}
		}
	}

	for i, rec := range raw.Recommendations {
		if strings.TrimSpace(rec.Title) == "" {
			return nil, unavailable("recommendations[%d] has no title", i)
		}
		if !models.IsValidLevel(rec.Priority) {
			return nil, unavailable("recommendations[%d] has invalid priority %q", i, rec.Priority)
		}
		if rec.Actions == nil {
			raw.Recommendations[i].Actions = []string{}
		}
	}

	suggestions := make([]models.RoleSuggestion, len(raw.RoleSuggestions))
	for i, rs := range raw.RoleSuggestions {
		if rs.MemberIndex == nil {
			return nil, unavailable("role_suggestions[%d] has no member_index", i)
		}
		if strings.TrimSpace(rs.SuggestedRole) == "" {
			return nil, unavailable("role_suggestions[%d] has no suggested_role", i)
		}
		strengths := rs.Strengths
		if strengths == nil {
			strengths = []string{}
		}
		suggestions[i] = models.RoleSuggestion{
			MemberIndex:   *rs.MemberIndex,
			SuggestedRole: rs.SuggestedRole,
			Reasoning:     rs.Reasoning,
			Strengths:     strengths,
		}
	}

	return &TeamDynamicsResult{
		RiskScore:       score,
		RiskFactors:     raw.RiskFactors,
		Recommendations: raw.Recommendations,
		RoleSuggestions: suggestions,
	}, nil
}

// ParseConflict decodes and validates a conflict-risk response.
func ParseConflict(content string) (*models.ConflictAnalysis, error) {
	var raw rawConflict
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &raw); err != nil {
		return nil, unavailable("malformed response: %v", err)
	}

	if !models.IsValidRiskLevel(raw.RiskLevel) {
		return nil, unavailable("invalid risk_level %q", raw.RiskLevel)
	}
	if raw.InterventionNeeded == nil {
		return nil, unavailable("intervention_needed is missing")
	}
	if raw.Concerns == nil || raw.SuggestedActions == nil {
		return nil, unavailable("concerns and suggested_actions are required")
	}
	for i, c := range raw.Concerns {
		if strings.TrimSpace(c.Type) == "" || strings.TrimSpace(c.Description) == "" {
			return nil, unavailable("concerns[%d] is incomplete", i)
		}
		if c.AffectedMembers == nil {
			raw.Concerns[i].AffectedMembers = models.MemberRefs{}
		}
	}

	return &models.ConflictAnalysis{
		RiskLevel:          raw.RiskLevel,
		Concerns:           raw.Concerns,
		InterventionNeeded: *raw.InterventionNeeded,
		SuggestedActions:   raw.SuggestedActions,
	}, nil
}

const teamDynamicsPrompt = `You are a team collaboration expert. Analyze the survey answers of the team members below, predict the risk of conflict and propose how to prevent it.

Team member surveys (member_index is the position of each member in this list):
%s

Respond with JSON in exactly this shape:
{
  "risk_score": integer from 1 to 100 (higher means riskier),
  "risk_factors": [
    {
      "category": "category name (e.g. work style mismatch, communication gap)",
      "severity": "low" | "medium" | "high",
      "description": "concrete description of the risk",
      "affected_members": [member_index values]
    }
  ],
  "recommendations": [
    {
      "title": "recommendation title",
      "description": "details",
      "priority": "high" | "medium" | "low",
      "actions": ["concrete actions"]
    }
  ],
  "role_suggestions": [
    {
      "member_index": 0,
      "suggested_role": "suggested role",
      "reasoning": "why this role fits",
      "strengths": ["strengths to leverage"]
    }
  ]
}

Use only member_index values that appear in the survey list. Focus on preventing conflict and improving teamwork.`

const conflictPrompt = `Analyze the recent check-ins of the team members below and detect warning signs of conflict.

Check-ins:
%s

Respond with JSON in exactly this shape:
{
  "risk_level": "none" | "low" | "medium" | "high",
  "concerns": [
    {
      "type": "concern type (e.g. progress delay, emotional stress)",
      "description": "details",
      "affected_members": ["affected members"]
    }
  ],
  "intervention_needed": true | false,
  "suggested_actions": ["actions that can be taken right away"]
}`
