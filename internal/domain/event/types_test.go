package event

import (
	"strings"
	"testing"
	"time"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
)

func TestNewRiskAssessmentScoreRange(t *testing.T) {
	for _, score := range []float64{-0.01, 1.01, 2, -5} {
		if _, err := NewRiskAssessment(score, "r", nil, false, "m", 0); err == nil {
			t.Errorf("score %v accepted", score)
		}
	}
	for _, score := range []float64{0, 0.5, 1} {
		a, err := NewRiskAssessment(score, "r", nil, true, "m", 1.5)
		if err != nil {
			t.Errorf("score %v rejected: %v", score, err)
			continue
		}
		if a.Indicators == nil {
			t.Error("Indicators must never be nil")
		}
	}
}

func TestRiskLevelBuckets(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0.0, RiskLevelLow},
		{0.29, RiskLevelLow},
		{0.3, RiskLevelMedium},
		{0.59, RiskLevelMedium},
		{0.6, RiskLevelHigh},
		{0.74, RiskLevelHigh},
		{0.75, RiskLevelCritical},
		{1.0, RiskLevelCritical},
	}
	for _, tt := range tests {
		if got := (RiskAssessment{Score: tt.score}).Level(); got != tt.want {
			t.Errorf("Level(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestDeriveAgentID(t *testing.T) {
	a := DeriveAgentID("summarize documents", "langchain")
	b := DeriveAgentID("summarize documents", "langchain")
	if a != b {
		t.Errorf("identity not stable: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "agent-") {
		t.Errorf("id %q missing prefix", a)
	}
	if c := DeriveAgentID("summarize documents", "openai"); c == a {
		t.Error("different frameworks collided")
	}
	if d := DeriveAgentID("exfiltrate data", "langchain"); d == a {
		t.Error("different goals collided")
	}
}

func TestNewEventAgentIdentity(t *testing.T) {
	act := action.New(action.TypeToolCall, "search", map[string]any{}, nil)
	assessment := RiskAssessment{Score: 0.1, Indicators: []string{}}

	derived := New("s1", "goal", act, assessment, DecisionAllow, nil, nil, "langchain")
	if derived.AgentIsRegistered {
		t.Error("derived identity marked registered")
	}
	if derived.AgentID != DeriveAgentID("goal", "langchain") {
		t.Errorf("AgentID = %q", derived.AgentID)
	}

	registered := New("s1", "goal", act, assessment, DecisionAllow, nil,
		map[string]any{"agent_id": "agent-registered-1"}, "langchain")
	if !registered.AgentIsRegistered || registered.AgentID != "agent-registered-1" {
		t.Errorf("registered identity: %+v", registered)
	}
	if registered.CreatedAt.Location() != time.UTC {
		t.Error("timestamps must be UTC")
	}
}
