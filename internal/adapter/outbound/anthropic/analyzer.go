// Package anthropic implements the risk classifier and the triage client on
// the Anthropic Messages API. Both force a structured tool response so the
// model's output is machine-parseable JSON, never free text.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentguard-ai/agentguard/internal/domain/analyzer"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

const (
	// DefaultModel balances latency and judgment for in-line scoring.
	DefaultModel = "claude-3-5-haiku-latest"

	// DefaultAssessTimeout bounds the in-line classification call. The
	// interception pipeline waits for this, so it stays short.
	DefaultAssessTimeout = 10 * time.Second

	assessToolName  = "assess_risk"
	assessMaxTokens = 1024
)

// IntentAnalyzer scores actions with a forced tool call against the
// Messages API. It implements analyzer.RiskAnalyzer and never returns an
// error: any failure degrades to the conservative fallback assessment.
type IntentAnalyzer struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ analyzer.RiskAnalyzer = (*IntentAnalyzer)(nil)

// NewIntentAnalyzer builds an analyzer. Empty model or zero timeout select
// the defaults.
func NewIntentAnalyzer(apiKey, model string, timeout time.Duration, logger *slog.Logger) *IntentAnalyzer {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultAssessTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IntentAnalyzer{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// assessResult is the JSON shape the model must return via assess_risk.
type assessResult struct {
	RiskScore     float64  `json:"risk_score"`
	Reason        string   `json:"reason"`
	Indicators    []string `json:"indicators"`
	IsGoalAligned bool     `json:"is_goal_aligned"`
}

// Assess scores one action. On any failure it logs and returns the
// fallback assessment with the observed latency attached.
func (a *IntentAnalyzer) Assess(ctx context.Context, req analyzer.Request) event.RiskAssessment {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	result, err := a.callModel(ctx, req)
	latency := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		a.logger.Warn("risk analyzer unavailable",
			"tool", req.Action.ToolName, "session_id", req.SessionID, "error", err)
		assessment := analyzer.Fallback(err.Error())
		assessment.LatencyMS = latency
		return assessment
	}

	assessment, err := event.NewRiskAssessment(result.RiskScore, result.Reason,
		result.Indicators, result.IsGoalAligned, a.model, latency)
	if err != nil {
		a.logger.Warn("risk analyzer returned invalid assessment",
			"tool", req.Action.ToolName, "error", err)
		assessment = analyzer.Fallback(err.Error())
		assessment.LatencyMS = latency
	}
	return assessment
}

func (a *IntentAnalyzer) callModel(ctx context.Context, req analyzer.Request) (assessResult, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: assessMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: assessSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				buildAssessPrompt(req.AgentGoal, req.Action, req.RecentActions))),
		},
		Tools: []anthropic.ToolUnionParam{
			{OfTool: &anthropic.ToolParam{
				Name:        assessToolName,
				Description: anthropic.String("Report the risk assessment for the action under review."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]any{
						"risk_score": map[string]any{
							"type":        "number",
							"minimum":     0,
							"maximum":     1,
							"description": "Risk of the action given the agent's goal.",
						},
						"reason": map[string]any{
							"type":        "string",
							"description": "One or two sentences justifying the score.",
						},
						"indicators": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Short machine-readable risk indicators.",
						},
						"is_goal_aligned": map[string]any{
							"type":        "boolean",
							"description": "Whether the action plausibly serves the stated goal.",
						},
					},
					Required: []string{"risk_score", "reason", "indicators", "is_goal_aligned"},
				},
			}},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: assessToolName},
		},
	})
	if err != nil {
		return assessResult{}, err
	}

	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.ToolUseBlock); ok && variant.Name == assessToolName {
			var result assessResult
			if err := json.Unmarshal([]byte(variant.JSON.Input.Raw()), &result); err != nil {
				return assessResult{}, fmt.Errorf("decode %s output: %w", assessToolName, err)
			}
			return result, nil
		}
	}
	return assessResult{}, fmt.Errorf("response contains no %s tool call", assessToolName)
}
