package anthropic

import (
	"reflect"
	"strings"
	"testing"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

// The tool schema must offer exactly the closed attack-pattern vocabulary,
// so the model cannot invent labels.
func TestAttackPatternEnumMatchesVocabulary(t *testing.T) {
	got := attackPatternEnum()
	want := []string{
		"credential_exfiltration", "data_exfiltration", "prompt_injection",
		"goal_hijacking", "memory_poisoning", "privilege_escalation",
		"lateral_movement", "reconnaissance", "none",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("enum = %v, want %v", got, want)
	}
	for _, v := range got {
		if !enrichment.AttackPattern(v).Valid() {
			t.Errorf("enum value %q not in vocabulary", v)
		}
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.7, 1},
	}
	for _, c := range cases {
		if got := clamp01(c.in); got != c.want {
			t.Errorf("clamp01(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestBuildTriagePrompt(t *testing.T) {
	act := action.New(action.TypeShellCommand, "bash", map[string]any{"command": "cat ~/.ssh/id_rsa"}, nil)
	ev := event.New("s1", "summarize docs", act,
		event.RiskAssessment{Score: 0.95, Reason: "credential path", Indicators: []string{"credential_access"}, Model: "policy_engine"},
		event.DecisionBlock, nil, nil, "test")

	prompt := buildTriagePrompt(ev)
	for _, want := range []string{"decision already taken: block", ev.ID, "bash", "credential_access", "summarize docs"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
