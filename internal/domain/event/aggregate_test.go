package event

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
)

func makeEvent(session string, score float64, decision Decision, tool string, indicators []string, at time.Time) Event {
	act := action.New(action.TypeToolCall, tool, map[string]any{}, nil)
	ev := New(session, "test goal", act, RiskAssessment{Score: score, Indicators: indicators}, decision, nil, nil, "test")
	ev.CreatedAt = at
	return ev
}

func TestSummarizeTimeline(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		makeEvent("s", 0.1, DecisionAllow, "search", nil, base),
		makeEvent("s", 0.9, DecisionBlock, "bash", []string{"deny_tools"}, base.Add(time.Minute)),
		makeEvent("s", 0.95, DecisionBlock, "file.read", []string{"credential_access", "deny_tools"}, base.Add(2*time.Minute)),
		makeEvent("s", 0.65, DecisionReview, "http.request", []string{"suspicious_domain"}, base.Add(3*time.Minute)),
	}

	summary := SummarizeTimeline("s", events)
	if summary.TotalEvents != 4 || summary.BlockedEvents != 2 || summary.ReviewedEvents != 1 || summary.AllowedEvents != 1 {
		t.Errorf("counts: %+v", summary)
	}
	if summary.MaxRiskScore != 0.95 {
		t.Errorf("MaxRiskScore = %v", summary.MaxRiskScore)
	}
	// Attack vectors come from blocked events only, deduplicated.
	want := []string{"deny_tools", "credential_access"}
	if !reflect.DeepEqual(summary.AttackVectors, want) {
		t.Errorf("AttackVectors = %v, want %v", summary.AttackVectors, want)
	}
	if summary.StartTime == nil || !summary.StartTime.Equal(base) {
		t.Errorf("StartTime = %v", summary.StartTime)
	}
	if summary.EndTime == nil || !summary.EndTime.Equal(base.Add(3*time.Minute)) {
		t.Errorf("EndTime = %v", summary.EndTime)
	}
}

func TestSummarizeTimelineEmpty(t *testing.T) {
	summary := SummarizeTimeline("none", nil)
	if summary.TotalEvents != 0 || summary.StartTime != nil || summary.EndTime != nil {
		t.Errorf("empty summary: %+v", summary)
	}
	if summary.AttackVectors == nil {
		t.Error("AttackVectors must never be nil")
	}
}

func TestBuildAgentProfile(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var events []Event
	for i := 0; i < 30; i++ {
		decision := DecisionAllow
		var indicators []string
		if i%10 == 0 {
			decision = DecisionBlock
			indicators = []string{"deny_tools"}
		}
		events = append(events, makeEvent(fmt.Sprintf("s%d", i%3), float64(i)/30.0, decision,
			fmt.Sprintf("tool-%d", i%4), indicators, base.Add(time.Duration(i)*time.Minute)))
	}

	profile, err := BuildAgentProfile("agent-x", events)
	if err != nil {
		t.Fatalf("BuildAgentProfile: %v", err)
	}
	if profile.TotalEvents != 30 || profile.TotalSessions != 3 || profile.BlockedEvents != 3 {
		t.Errorf("profile counts: %+v", profile)
	}
	if !profile.FirstSeen.Equal(base) || !profile.LastSeen.Equal(base.Add(29*time.Minute)) {
		t.Errorf("seen range: %v .. %v", profile.FirstSeen, profile.LastSeen)
	}
	if len(profile.RiskTrend) != 20 {
		t.Errorf("RiskTrend length = %d, want trailing window of 20", len(profile.RiskTrend))
	}
	// Trend is oldest first and must end with the latest score.
	if last := profile.RiskTrend[len(profile.RiskTrend)-1]; last != float64(29)/30.0 {
		t.Errorf("trend tail = %v", last)
	}
	if len(profile.ToolsUsed) != 4 {
		t.Errorf("ToolsUsed = %v", profile.ToolsUsed)
	}
	if profile.AttackPatterns[0] != "deny_tools" {
		t.Errorf("AttackPatterns = %v", profile.AttackPatterns)
	}
}

func TestBuildAgentProfileEmpty(t *testing.T) {
	if _, err := BuildAgentProfile("missing", nil); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBuildAgentGraph(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		makeEvent("s1", 0.1, DecisionAllow, "search", nil, base),
		makeEvent("s1", 0.9, DecisionBlock, "bash", []string{"deny_tools"}, base.Add(time.Minute)),
		makeEvent("s2", 0.2, DecisionAllow, "search", nil, base.Add(2*time.Minute)),
		makeEvent("s1", 0.9, DecisionBlock, "bash", []string{"deny_tools"}, base.Add(3*time.Minute)),
	}

	graph := BuildAgentGraph("agent-x", events)

	// 1 agent + 2 sessions + 2 tools + 1 indicator.
	if len(graph.Nodes) != 6 {
		t.Errorf("nodes = %d: %+v", len(graph.Nodes), graph.Nodes)
	}
	// 2 had_session + 4 used_tool (one per event) + 2 exhibited_pattern.
	if len(graph.Edges) != 8 {
		t.Errorf("edges = %d: %+v", len(graph.Edges), graph.Edges)
	}

	counts := map[string]int{}
	for _, e := range graph.Edges {
		counts[e.Type]++
	}
	if counts["had_session"] != 2 || counts["used_tool"] != 4 || counts["exhibited_pattern"] != 2 {
		t.Errorf("edge types: %v", counts)
	}

	var bashEdge *GraphEdge
	for i := range graph.Edges {
		e := &graph.Edges[i]
		if e.Type == "used_tool" && e.Source == "session:s1" && e.Target == "tool:bash" {
			bashEdge = e
			break
		}
	}
	if bashEdge == nil {
		t.Fatal("missing session:s1 -> tool:bash edge")
	}
	if bashEdge.Attributes["decision"] != "block" || bashEdge.Attributes["risk_score"] != 0.9 {
		t.Errorf("bash edge attributes: %v", bashEdge.Attributes)
	}

	var patternNode *GraphNode
	for i := range graph.Nodes {
		n := &graph.Nodes[i]
		if n.ID == "pattern:deny_tools" {
			patternNode = n
		}
	}
	if patternNode == nil {
		t.Fatal("missing pattern:deny_tools node")
	}
	if patternNode.Type != "pattern" || patternNode.Label != "Deny Tools" {
		t.Errorf("pattern node: %+v", patternNode)
	}

	hasPatternEdge := false
	for _, e := range graph.Edges {
		if e.Type == "exhibited_pattern" && e.Source == "tool:bash" && e.Target == "pattern:deny_tools" {
			hasPatternEdge = true
		}
	}
	if !hasPatternEdge {
		t.Error("missing tool:bash -> pattern:deny_tools edge")
	}
}
