// Package event defines the forensic event model: the immutable record of an
// intercepted action, its risk assessment, and the guard's decision, plus the
// per-session and per-agent aggregates derived from those records.
package event

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/policy"
)

// Decision is the guard's verdict for an intercepted action. It is defined
// in the policy package (the engine produces it) and aliased here for
// callers that only work with events.
type Decision = policy.Decision

const (
	DecisionAllow  = policy.DecisionAllow
	DecisionBlock  = policy.DecisionBlock
	DecisionReview = policy.DecisionReview
)

// RiskLevel buckets a risk score for display and alert routing.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskAssessment is a classifier's judgment of one action.
//
// Score is always within [0,1]; NewRiskAssessment rejects anything else, so a
// RiskAssessment obtained through the constructor never carries an invalid
// score. Model is the classifier that produced it: a model tag, "fallback"
// when the classifier was unavailable, or "policy_engine" for synthesized
// assessments on the deterministic fast path.
type RiskAssessment struct {
	Score         float64  `json:"risk_score"`
	Reason        string   `json:"reason"`
	Indicators    []string `json:"indicators"`
	IsGoalAligned bool     `json:"is_goal_aligned"`
	Model         string   `json:"analyzer_model"`
	LatencyMS     float64  `json:"latency_ms"`
}

// NewRiskAssessment validates the score range and builds a RiskAssessment.
func NewRiskAssessment(score float64, reason string, indicators []string, goalAligned bool, model string, latencyMS float64) (RiskAssessment, error) {
	if score < 0.0 || score > 1.0 {
		return RiskAssessment{}, fmt.Errorf("risk score %v outside [0,1]", score)
	}
	if indicators == nil {
		indicators = []string{}
	}
	return RiskAssessment{
		Score:         score,
		Reason:        reason,
		Indicators:    indicators,
		IsGoalAligned: goalAligned,
		Model:         model,
		LatencyMS:     latencyMS,
	}, nil
}

// Level derives the risk level from the score: <0.3 low, <0.6 medium,
// <0.75 high, else critical.
func (a RiskAssessment) Level() RiskLevel {
	switch {
	case a.Score < 0.3:
		return RiskLevelLow
	case a.Score < 0.6:
		return RiskLevelMedium
	case a.Score < 0.75:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

// Event is the forensic record of one intercepted action. Events are
// immutable once appended to a ledger.
type Event struct {
	ID                string            `json:"event_id"`
	SessionID         string            `json:"session_id"`
	AgentID           string            `json:"agent_id"`
	AgentIsRegistered bool              `json:"agent_is_registered"`
	AgentGoal         string            `json:"agent_goal"`
	Action            action.Action     `json:"action"`
	Assessment        RiskAssessment    `json:"assessment"`
	Decision          Decision          `json:"decision"`
	PolicyViolation   *policy.Violation `json:"policy_violation,omitempty"`
	Provenance        map[string]any    `json:"provenance"`
	Framework         string            `json:"framework"`
	CreatedAt         time.Time         `json:"timestamp"`
}

// New builds an Event with a fresh id and UTC timestamp. The agent id is
// derived from the goal and framework unless already present in provenance.
func New(sessionID, agentGoal string, act action.Action, assessment RiskAssessment, decision Decision, violation *policy.Violation, provenance map[string]any, framework string) Event {
	if provenance == nil {
		provenance = map[string]any{}
	}
	agentID, registered := agentIdentity(provenance, agentGoal, framework)
	return Event{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		AgentID:           agentID,
		AgentIsRegistered: registered,
		AgentGoal:         agentGoal,
		Action:            act,
		Assessment:        assessment,
		Decision:          decision,
		PolicyViolation:   violation,
		Provenance:        provenance,
		Framework:         framework,
		CreatedAt:         time.Now().UTC(),
	}
}

// agentIdentity resolves the agent id: an explicit registered id from
// provenance wins, otherwise a stable id is derived from goal+framework.
func agentIdentity(provenance map[string]any, goal, framework string) (string, bool) {
	if id, ok := provenance["agent_id"].(string); ok && id != "" {
		return id, true
	}
	return DeriveAgentID(goal, framework), false
}

// DeriveAgentID computes a stable agent identity for unregistered agents
// from the goal and framework.
func DeriveAgentID(goal, framework string) string {
	h := xxhash.New()
	_, _ = h.WriteString(framework)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(goal)
	var buf [8]byte
	sum := h.Sum64()
	for i := range buf {
		buf[i] = byte(sum >> (56 - 8*i))
	}
	return "agent-" + hex.EncodeToString(buf[:])
}

// TimelineSummary aggregates one session's events.
type TimelineSummary struct {
	SessionID      string     `json:"session_id"`
	TotalEvents    int        `json:"total_events"`
	BlockedEvents  int        `json:"blocked_events"`
	ReviewedEvents int        `json:"reviewed_events"`
	AllowedEvents  int        `json:"allowed_events"`
	MaxRiskScore   float64    `json:"max_risk_score"`
	AvgRiskScore   float64    `json:"avg_risk_score"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	// AttackVectors is the de-duplicated union of indicators across
	// blocked events only.
	AttackVectors []string `json:"attack_vectors"`
}

// AgentProfile is the per-agent roll-up across all sessions.
type AgentProfile struct {
	AgentID        string    `json:"agent_id"`
	AgentGoal      string    `json:"agent_goal"`
	IsRegistered   bool      `json:"is_registered"`
	Framework      string    `json:"framework"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	TotalSessions  int       `json:"total_sessions"`
	TotalEvents    int       `json:"total_events"`
	BlockedEvents  int       `json:"blocked_events"`
	ReviewedEvents int       `json:"reviewed_events"`
	AllowedEvents  int       `json:"allowed_events"`
	AvgRiskScore   float64   `json:"avg_risk_score"`
	MaxRiskScore   float64   `json:"max_risk_score"`
	// AttackPatterns are the top observed indicators from blocked events.
	AttackPatterns []string `json:"attack_patterns"`
	// ToolsUsed are the most recent distinct tools, oldest first.
	ToolsUsed []string `json:"tools_used"`
	// RiskTrend is the trailing window of risk scores, oldest first.
	RiskTrend []float64 `json:"risk_trend"`
}

// GraphNode is one node of the agent activity graph.
type GraphNode struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// GraphEdge is one edge of the agent activity graph.
type GraphEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// AgentGraph is the derived node/edge view of one agent's activity,
// recomputable from events alone. It is never persisted.
type AgentGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Stats are process-wide ledger counters.
type Stats struct {
	TotalEvents    int     `json:"total_events"`
	BlockedEvents  int     `json:"blocked_events"`
	ReviewedEvents int     `json:"reviewed_events"`
	AllowedEvents  int     `json:"allowed_events"`
	ActiveSessions int     `json:"active_sessions"`
	AvgRiskScore   float64 `json:"avg_risk_score"`
}
