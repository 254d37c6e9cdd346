package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

const (
	// DefaultTriageModel runs off the hot path and can afford deeper
	// reasoning than the in-line classifier.
	DefaultTriageModel = "claude-sonnet-4-5"

	// DefaultTriageTimeout bounds one triage call. Triage is asynchronous,
	// so this is far looser than the assessment timeout.
	DefaultTriageTimeout = 30 * time.Second

	triageToolName  = "security_triage"
	triageMaxTokens = 2048
)

// EnrichmentClient performs second-pass triage of flagged events. It
// implements enrichment.Client; callers fall back to
// enrichment.FallbackInsight on error.
type EnrichmentClient struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var _ enrichment.Client = (*EnrichmentClient)(nil)

// NewEnrichmentClient builds a triage client. Empty model or zero timeout
// select the defaults.
func NewEnrichmentClient(apiKey, model string, timeout time.Duration, logger *slog.Logger) *EnrichmentClient {
	if model == "" {
		model = DefaultTriageModel
	}
	if timeout <= 0 {
		timeout = DefaultTriageTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichmentClient{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// triageResult is the JSON shape the model must return via security_triage.
type triageResult struct {
	AttackPattern           string  `json:"attack_pattern"`
	Confidence              float64 `json:"confidence"`
	Severity                string  `json:"severity"`
	Summary                 string  `json:"summary"`
	Recommendation          string  `json:"recommendation"`
	FalsePositiveLikelihood float64 `json:"false_positive_likelihood"`
}

// Triage analyzes one flagged event and returns a structured insight.
func (c *EnrichmentClient) Triage(ctx context.Context, ev event.Event) (enrichment.Insight, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.callModel(ctx, ev)
	if err != nil {
		return enrichment.Insight{}, err
	}

	pattern := enrichment.AttackPattern(result.AttackPattern)
	if !pattern.Valid() {
		c.logger.Warn("triage returned unknown attack pattern",
			"event_id", ev.ID, "attack_pattern", result.AttackPattern)
		pattern = enrichment.PatternNone
	}
	severity := event.RiskLevel(result.Severity)
	switch severity {
	case event.RiskLevelLow, event.RiskLevelMedium, event.RiskLevelHigh, event.RiskLevelCritical:
	default:
		severity = event.RiskLevelLow
	}
	return enrichment.Insight{
		EventID:                 ev.ID,
		SessionID:               ev.SessionID,
		AgentID:                 ev.AgentID,
		AttackPattern:           pattern,
		Confidence:              clamp01(result.Confidence),
		Severity:                severity,
		Summary:                 result.Summary,
		FalsePositiveLikelihood: clamp01(result.FalsePositiveLikelihood),
		Recommendation:          result.Recommendation,
		Model:                   c.model,
		CreatedAt:               time.Now().UTC(),
	}, nil
}

// attackPatternEnum renders the closed vocabulary for the tool schema.
func attackPatternEnum() []string {
	values := make([]string, len(enrichment.AttackPatterns))
	for i, p := range enrichment.AttackPatterns {
		values[i] = string(p)
	}
	return values
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (c *EnrichmentClient) callModel(ctx context.Context, ev event.Event) (triageResult, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: triageMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: triageSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildTriagePrompt(ev))),
		},
		Tools: []anthropic.ToolUnionParam{
			{OfTool: &anthropic.ToolParam{
				Name:        triageToolName,
				Description: anthropic.String("Report the triage analysis of the flagged event."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]any{
						"attack_pattern": map[string]any{
							"type":        "string",
							"enum":        attackPatternEnum(),
							"description": "Most likely attack pattern, or none.",
						},
						"confidence": map[string]any{
							"type":    "number",
							"minimum": 0,
							"maximum": 1,
						},
						"severity": map[string]any{
							"type": "string",
							"enum": []string{"low", "medium", "high", "critical"},
						},
						"summary": map[string]any{
							"type":        "string",
							"description": "Two or three sentences on what happened.",
						},
						"recommendation": map[string]any{
							"type":        "string",
							"description": "One actionable next step for the reviewer.",
						},
						"false_positive_likelihood": map[string]any{
							"type":        "number",
							"minimum":     0,
							"maximum":     1,
							"description": "Likelihood the flagged action was actually legitimate.",
						},
					},
					Required: []string{"attack_pattern", "confidence", "severity", "summary",
						"recommendation", "false_positive_likelihood"},
				},
			}},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: triageToolName},
		},
	})
	if err != nil {
		return triageResult{}, err
	}

	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.ToolUseBlock); ok && variant.Name == triageToolName {
			var result triageResult
			if err := json.Unmarshal([]byte(variant.JSON.Input.Raw()), &result); err != nil {
				return triageResult{}, fmt.Errorf("decode %s output: %w", triageToolName, err)
			}
			return result, nil
		}
	}
	return triageResult{}, fmt.Errorf("response contains no %s tool call", triageToolName)
}
