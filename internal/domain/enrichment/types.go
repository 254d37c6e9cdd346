// Package enrichment defines the asynchronous triage layer: deeper
// second-pass analysis of flagged events, producing insights that never
// change the original decision.
package enrichment

import (
	"context"
	"time"

	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

// AttackPattern is the closed classification vocabulary for triage.
type AttackPattern string

const (
	PatternCredentialExfiltration AttackPattern = "credential_exfiltration"
	PatternDataExfiltration       AttackPattern = "data_exfiltration"
	PatternPromptInjection        AttackPattern = "prompt_injection"
	PatternGoalHijacking          AttackPattern = "goal_hijacking"
	PatternMemoryPoisoning        AttackPattern = "memory_poisoning"
	PatternPrivilegeEscalation    AttackPattern = "privilege_escalation"
	PatternLateralMovement        AttackPattern = "lateral_movement"
	PatternReconnaissance         AttackPattern = "reconnaissance"
	PatternNone                   AttackPattern = "none"
)

// AttackPatterns lists the closed vocabulary in its canonical order.
var AttackPatterns = []AttackPattern{
	PatternCredentialExfiltration,
	PatternDataExfiltration,
	PatternPromptInjection,
	PatternGoalHijacking,
	PatternMemoryPoisoning,
	PatternPrivilegeEscalation,
	PatternLateralMovement,
	PatternReconnaissance,
	PatternNone,
}

// Valid reports whether p is in the closed vocabulary.
func (p AttackPattern) Valid() bool {
	for _, known := range AttackPatterns {
		if p == known {
			return true
		}
	}
	return false
}

// Insight is the result of triaging one flagged event.
type Insight struct {
	EventID       string          `json:"event_id"`
	SessionID     string          `json:"session_id"`
	AgentID       string          `json:"agent_id"`
	AttackPattern AttackPattern   `json:"attack_pattern"`
	Confidence    float64         `json:"confidence"`
	Severity      event.RiskLevel `json:"severity"`
	Summary       string          `json:"summary"`
	// FalsePositiveLikelihood is the model's estimate, in [0,1], that the
	// flagged action was actually legitimate.
	FalsePositiveLikelihood float64   `json:"false_positive_likelihood"`
	Recommendation          string    `json:"recommendation"`
	Model                   string    `json:"model"`
	CreatedAt               time.Time `json:"created_at"`
}

// Client performs the second-pass triage of one event.
type Client interface {
	Triage(ctx context.Context, ev event.Event) (Insight, error)
}

// Store keeps recent insights for the read API.
type Store interface {
	Put(insight Insight)
	Get(eventID string) (Insight, bool)
	List(limit int) []Insight
}

// StreamMessage is one pending flagged event from the stream transport,
// paired with the transport's delivery id for acknowledgement.
type StreamMessage struct {
	ID    string
	Event event.Event
}

// EventSource is the worker-side port of the stream transport.
type EventSource interface {
	EnsureGroup(ctx context.Context) error
	Fetch(ctx context.Context) ([]StreamMessage, error)
	Ack(ctx context.Context, ids ...string) error
}

// InsightPublisher is the outbound side of the insights stream.
type InsightPublisher interface {
	Enabled() bool
	PublishInsight(ctx context.Context, insight Insight) error
}

// FallbackInsight is returned when triage itself failed; it marks the event
// for manual review rather than guessing a pattern.
func FallbackInsight(ev event.Event, reason string) Insight {
	return Insight{
		EventID:                 ev.ID,
		SessionID:               ev.SessionID,
		AgentID:                 ev.AgentID,
		AttackPattern:           PatternNone,
		Confidence:              0,
		Severity:                event.RiskLevelLow,
		Summary:                 "triage unavailable: " + reason,
		FalsePositiveLikelihood: 0,
		Recommendation:          "Review manually",
		Model:                   "fallback",
		CreatedAt:               time.Now().UTC(),
	}
}
