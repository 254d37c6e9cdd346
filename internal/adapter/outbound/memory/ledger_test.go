package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
	"github.com/agentguard-ai/agentguard/internal/domain/ledger"
)

func testEvent(session, tool string, decision event.Decision, score float64, at time.Time) event.Event {
	act := action.New(action.TypeToolCall, tool, map[string]any{"q": "x"}, nil)
	ev := event.New(session, "goal", act, event.RiskAssessment{Score: score, Indicators: []string{}}, decision, nil, nil, "test")
	ev.CreatedAt = at
	return ev
}

func TestAppendAndGetEvent(t *testing.T) {
	l := NewEventLedger()
	ctx := context.Background()

	ev := testEvent("s1", "search", event.DecisionAllow, 0.2, time.Now().UTC())
	if err := l.Append(ctx, ev); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := l.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if !reflect.DeepEqual(got, ev) {
		t.Errorf("re-read event diverged:\nwant %+v\ngot  %+v", ev, got)
	}

	if _, err := l.GetEvent(ctx, "missing"); !errors.Is(err, event.ErrNotFound) {
		t.Errorf("GetEvent(missing) = %v, want ErrNotFound", err)
	}
}

func TestListEventsFilterAndOrder(t *testing.T) {
	l := NewEventLedger()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		session := "s1"
		decision := event.DecisionAllow
		if i%2 == 1 {
			session = "s2"
			decision = event.DecisionBlock
		}
		ev := testEvent(session, fmt.Sprintf("tool-%d", i), decision, float64(i)/10, base.Add(time.Duration(i)*time.Second))
		if err := l.Append(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	all, err := l.ListEvents(ctx, ledger.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 || all[0].Action.ToolName != "tool-5" {
		t.Errorf("ListEvents order: %d events, first %q", len(all), all[0].Action.ToolName)
	}

	blocked, err := l.ListEvents(ctx, ledger.Filter{Decision: event.DecisionBlock})
	if err != nil {
		t.Fatal(err)
	}
	if len(blocked) != 3 {
		t.Errorf("blocked filter: %d", len(blocked))
	}

	s1, err := l.ListEvents(ctx, ledger.Filter{SessionID: "s1", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(s1) != 2 || s1[0].Action.ToolName != "tool-4" {
		t.Errorf("s1 limit: %+v", s1)
	}

	since, err := l.ListEvents(ctx, ledger.Filter{Since: base.Add(4 * time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if len(since) != 2 {
		t.Errorf("since filter: %d", len(since))
	}

	// Risk bounds are inclusive on both ends.
	minRisk, maxRisk := 0.2, 0.4
	band, err := l.ListEvents(ctx, ledger.Filter{MinRisk: &minRisk, MaxRisk: &maxRisk})
	if err != nil {
		t.Fatal(err)
	}
	if len(band) != 3 {
		t.Errorf("risk band: %d events", len(band))
	}
	highOnly, err := l.ListEvents(ctx, ledger.Filter{MinRisk: &maxRisk})
	if err != nil {
		t.Fatal(err)
	}
	if len(highOnly) != 2 {
		t.Errorf("min_risk only: %d events", len(highOnly))
	}
}

func TestTimelineAndSummary(t *testing.T) {
	l := NewEventLedger()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Append out of order; the timeline must come back chronological.
	if err := l.Append(ctx, testEvent("s1", "b", event.DecisionBlock, 0.9, base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, testEvent("s1", "a", event.DecisionAllow, 0.1, base)); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, testEvent("s2", "other", event.DecisionAllow, 0.1, base)); err != nil {
		t.Fatal(err)
	}

	timeline, err := l.GetTimeline(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(timeline) != 2 || timeline[0].Action.ToolName != "a" {
		t.Errorf("timeline: %+v", timeline)
	}

	summary, err := l.GetTimelineSummary(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalEvents != 2 || summary.BlockedEvents != 1 || summary.MaxRiskScore != 0.9 {
		t.Errorf("summary: %+v", summary)
	}
}

func TestListSessionsAndStats(t *testing.T) {
	l := NewEventLedger()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := l.Append(ctx, testEvent("s1", "a", event.DecisionAllow, 0.2, base)); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, testEvent("s2", "b", event.DecisionBlock, 0.8, base.Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, testEvent("s1", "c", event.DecisionReview, 0.65, base.Add(2*time.Minute))); err != nil {
		t.Fatal(err)
	}

	sessions, err := l.ListSessions(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[0].SessionID != "s1" {
		t.Errorf("sessions: %+v", sessions)
	}
	if sessions[0].EventCount != 2 {
		t.Errorf("s1 event count: %d", sessions[0].EventCount)
	}

	stats, err := l.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEvents != 3 || stats.BlockedEvents != 1 || stats.ReviewedEvents != 1 ||
		stats.AllowedEvents != 1 || stats.ActiveSessions != 2 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestAgentProfileAndGraph(t *testing.T) {
	l := NewEventLedger()
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	ev1 := testEvent("s1", "bash", event.DecisionBlock, 0.9, base)
	ev2 := testEvent("s1", "search", event.DecisionAllow, 0.1, base.Add(time.Minute))
	for _, ev := range []event.Event{ev1, ev2} {
		if err := l.Append(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	agentID := ev1.AgentID

	agents, err := l.ListAgents(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 1 || agents[0] != agentID {
		t.Errorf("agents: %v", agents)
	}

	profile, err := l.GetAgentProfile(ctx, agentID)
	if err != nil {
		t.Fatal(err)
	}
	if profile.TotalEvents != 2 || profile.BlockedEvents != 1 || profile.MaxRiskScore != 0.9 {
		t.Errorf("profile: %+v", profile)
	}

	if _, err := l.GetAgentProfile(ctx, "agent-missing"); !errors.Is(err, event.ErrNotFound) {
		t.Errorf("missing profile: %v", err)
	}

	graph, err := l.GetAgentGraph(ctx, agentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(graph.Nodes) == 0 || len(graph.Edges) == 0 {
		t.Errorf("graph: %+v", graph)
	}
}
