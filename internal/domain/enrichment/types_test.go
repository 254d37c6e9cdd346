package enrichment

import (
	"testing"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

func TestAttackPatternClosedVocabulary(t *testing.T) {
	accepted := []string{
		"credential_exfiltration",
		"data_exfiltration",
		"prompt_injection",
		"goal_hijacking",
		"memory_poisoning",
		"privilege_escalation",
		"lateral_movement",
		"reconnaissance",
		"none",
	}
	for _, p := range accepted {
		if !AttackPattern(p).Valid() {
			t.Errorf("Valid(%q) = false, want true", p)
		}
	}
	if len(AttackPatterns) != len(accepted) {
		t.Errorf("vocabulary has %d entries, want %d", len(AttackPatterns), len(accepted))
	}

	rejected := []string{"", "credential_theft", "goal_hijack", "resource_abuse", "benign", "unknown"}
	for _, p := range rejected {
		if AttackPattern(p).Valid() {
			t.Errorf("Valid(%q) = true, want false", p)
		}
	}
}

func TestFallbackInsight(t *testing.T) {
	act := action.New(action.TypeShellCommand, "bash", map[string]any{"command": "id"}, nil)
	ev := event.New("s1", "goal", act,
		event.RiskAssessment{Score: 0.9, Indicators: []string{}, Model: "policy_engine"},
		event.DecisionBlock, nil, nil, "test")

	insight := FallbackInsight(ev, "model unavailable")
	if insight.EventID != ev.ID || insight.SessionID != "s1" {
		t.Errorf("identity fields: %+v", insight)
	}
	if insight.AttackPattern != PatternNone || insight.Confidence != 0 {
		t.Errorf("fallback classification: %+v", insight)
	}
	if insight.Severity != event.RiskLevelLow || insight.Recommendation != "Review manually" {
		t.Errorf("fallback guidance: %+v", insight)
	}
	if insight.FalsePositiveLikelihood != 0 {
		t.Errorf("FalsePositiveLikelihood = %v", insight.FalsePositiveLikelihood)
	}
}
