package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentguard-ai/agentguard/internal/adapter/outbound/memory"
	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

func seededServer(t *testing.T) (*Server, event.Event) {
	t.Helper()
	eventLedger := memory.NewEventLedger()
	insights := memory.NewInsightStore(10)

	act := action.New(action.TypeShellCommand, "bash", map[string]any{"command": "id"}, nil)
	ev := event.New("s1", "goal", act,
		event.RiskAssessment{Score: 0.9, Indicators: []string{"deny_tools"}, Model: "policy_engine"},
		event.DecisionBlock, nil, nil, "test")
	ev.CreatedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := eventLedger.Append(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	insights.Put(enrichment.Insight{EventID: ev.ID, AttackPattern: enrichment.PatternReconnaissance})

	return New(eventLedger, insights, nil, nil, nil, nil), ev
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := seededServer(t)
	rec := get(t, srv.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}
}

func TestGetEvent(t *testing.T) {
	srv, ev := seededServer(t)
	handler := srv.Handler()

	rec := get(t, handler, "/api/v1/events/"+ev.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var got event.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != ev.ID || got.Decision != event.DecisionBlock {
		t.Errorf("event: %+v", got)
	}

	if rec := get(t, handler, "/api/v1/events/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing event status %d", rec.Code)
	}
}

func TestListEventsAndSessions(t *testing.T) {
	srv, ev := seededServer(t)
	handler := srv.Handler()

	rec := get(t, handler, "/api/v1/events?session_id=s1")
	var listed struct {
		Events []event.Event `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Events) != 1 || listed.Events[0].ID != ev.ID {
		t.Errorf("events: %+v", listed.Events)
	}

	// Risk-score bounds pass through to the ledger filter.
	rec = get(t, handler, "/api/v1/events?min_risk=0.8&max_risk=1.0")
	listed.Events = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Events) != 1 {
		t.Errorf("min_risk filter: %+v", listed.Events)
	}
	rec = get(t, handler, "/api/v1/events?max_risk=0.5")
	listed.Events = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Events) != 0 {
		t.Errorf("max_risk filter: %+v", listed.Events)
	}

	rec = get(t, handler, "/api/v1/sessions")
	if !strings.Contains(rec.Body.String(), "s1") {
		t.Errorf("sessions body: %s", rec.Body)
	}

	rec = get(t, handler, "/api/v1/sessions/s1/summary")
	var summary event.TimelineSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.TotalEvents != 1 || summary.BlockedEvents != 1 {
		t.Errorf("summary: %+v", summary)
	}
}

func TestAgentEndpoints(t *testing.T) {
	srv, ev := seededServer(t)
	handler := srv.Handler()

	rec := get(t, handler, "/api/v1/agents/"+ev.AgentID)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status %d", rec.Code)
	}
	var profile event.AgentProfile
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatal(err)
	}
	if profile.TotalEvents != 1 {
		t.Errorf("profile: %+v", profile)
	}

	if rec := get(t, handler, "/api/v1/agents/agent-none"); rec.Code != http.StatusNotFound {
		t.Errorf("missing profile status %d", rec.Code)
	}

	if rec := get(t, handler, "/api/v1/agents/"+ev.AgentID+"/graph"); rec.Code != http.StatusOK {
		t.Errorf("graph status %d", rec.Code)
	}
}

func TestInsightEndpoints(t *testing.T) {
	srv, ev := seededServer(t)
	handler := srv.Handler()

	rec := get(t, handler, "/api/v1/insights/"+ev.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("insight status %d", rec.Code)
	}
	var insight enrichment.Insight
	if err := json.Unmarshal(rec.Body.Bytes(), &insight); err != nil {
		t.Fatal(err)
	}
	if insight.AttackPattern != enrichment.PatternReconnaissance {
		t.Errorf("insight: %+v", insight)
	}

	if rec := get(t, handler, "/api/v1/insights/none"); rec.Code != http.StatusNotFound {
		t.Errorf("missing insight status %d", rec.Code)
	}
}

type fakeReloader struct{ err error }

func (f *fakeReloader) ReloadPolicy() error { return f.err }

func TestPolicyReload(t *testing.T) {
	eventLedger := memory.NewEventLedger()
	srv := New(eventLedger, nil, &fakeReloader{}, nil, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/policy/reload", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("reload status %d", rec.Code)
	}

	unconfigured := New(eventLedger, nil, nil, nil, nil, nil)
	rec = httptest.NewRecorder()
	unconfigured.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/policy/reload", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured reload status %d", rec.Code)
	}
}

type fakeIntercept struct{}

func (fakeIntercept) InterceptMap(_ context.Context, sessionID string, payload map[string]any, provenance map[string]any) (event.Event, error) {
	act := action.FromMap(payload)
	return event.New(sessionID, "goal", act,
		event.RiskAssessment{Score: 0.1, Indicators: []string{}, Model: "mock"},
		event.DecisionAllow, nil, provenance, "api"), nil
}

func TestInterceptEndpoint(t *testing.T) {
	srv := New(memory.NewEventLedger(), nil, nil, fakeIntercept{}, nil, nil)
	handler := srv.Handler()

	body := `{"session_id": "s9", "action": {"tool_name": "search", "parameters": {"q": "go"}}}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/intercept", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var ev event.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.SessionID != "s9" || ev.Action.ToolName != "search" {
		t.Errorf("event: %+v", ev)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/intercept", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status %d", rec.Code)
	}
}
