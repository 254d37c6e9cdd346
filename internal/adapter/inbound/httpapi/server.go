// Package httpapi serves the forensic read API: events, timelines,
// sessions, agent profiles, insights, stats, policy reload, and Prometheus
// metrics. It is read-mostly; the only mutating endpoint is the policy
// reload.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
	"github.com/agentguard-ai/agentguard/internal/domain/ledger"
)

// PolicyReloader re-reads the active policy from its source.
type PolicyReloader interface {
	ReloadPolicy() error
}

// Interceptor is the pipeline slice behind the demo intercept endpoint.
type Interceptor interface {
	InterceptMap(ctx context.Context, sessionID string, payload map[string]any, provenance map[string]any) (event.Event, error)
}

// Server is the HTTP read API.
type Server struct {
	ledger      ledger.EventLedger
	insights    enrichment.Store
	reloader    PolicyReloader
	interceptor Interceptor
	registry    *prometheus.Registry
	logger      *slog.Logger
}

// New builds a Server. Insights, reloader, interceptor, and registry may be
// nil; their endpoints then return 404 or 503.
func New(eventLedger ledger.EventLedger, insights enrichment.Store, reloader PolicyReloader, interceptor Interceptor, registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:      eventLedger,
		insights:    insights,
		reloader:    reloader,
		interceptor: interceptor,
		registry:    registry,
		logger:      logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/events", s.handleListEvents)
	mux.HandleFunc("GET /api/v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("GET /api/v1/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}/timeline", s.handleTimeline)
	mux.HandleFunc("GET /api/v1/sessions/{id}/summary", s.handleTimelineSummary)
	mux.HandleFunc("GET /api/v1/agents", s.handleListAgents)
	mux.HandleFunc("GET /api/v1/agents/{id}", s.handleAgentProfile)
	mux.HandleFunc("GET /api/v1/agents/{id}/graph", s.handleAgentGraph)
	mux.HandleFunc("GET /api/v1/insights", s.handleListInsights)
	mux.HandleFunc("GET /api/v1/insights/{event_id}", s.handleGetInsight)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("POST /api/v1/policy/reload", s.handlePolicyReload)
	mux.HandleFunc("POST /api/v1/intercept", s.handleIntercept)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe runs the API until ctx is cancelled, then drains with a
// short grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("read api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{
		SessionID: q.Get("session_id"),
		AgentID:   q.Get("agent_id"),
		Decision:  event.Decision(q.Get("decision")),
		MinRisk:   queryFloat(q.Get("min_risk")),
		MaxRisk:   queryFloat(q.Get("max_risk")),
		Limit:     queryInt(q.Get("limit"), 0),
		Offset:    queryInt(q.Get("offset"), 0),
	}
	events, err := s.ledger.ListEvents(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.ledger.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.ledger.ListSessions(r.Context(), queryInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := s.ledger.GetTimeline(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": timeline})
}

func (s *Server) handleTimelineSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.GetTimelineSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.ledger.ListAgents(r.Context(), queryInt(r.URL.Query().Get("limit"), 0))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleAgentProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.ledger.GetAgentProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleAgentGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := s.ledger.GetAgentGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"insights": []enrichment.Insight{}})
		return
	}
	insights := s.insights.List(queryInt(r.URL.Query().Get("limit"), 0))
	s.writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil {
		s.writeError(w, event.ErrNotFound)
		return
	}
	insight, ok := s.insights.Get(r.PathValue("event_id"))
	if !ok {
		s.writeError(w, event.ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, insight)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.GetStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePolicyReload(w http.ResponseWriter, _ *http.Request) {
	if s.reloader == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "policy reload not configured"})
		return
	}
	if err := s.reloader.ReloadPolicy(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// interceptRequest is the body of POST /api/v1/intercept.
type interceptRequest struct {
	SessionID  string         `json:"session_id"`
	Action     map[string]any `json:"action"`
	Provenance map[string]any `json:"provenance"`
}

func (s *Server) handleIntercept(w http.ResponseWriter, r *http.Request) {
	if s.interceptor == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "interception not configured"})
		return
	}
	var req interceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.SessionID == "" || len(req.Action) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id and action are required"})
		return
	}
	ev, err := s.interceptor.InterceptMap(r.Context(), req.SessionID, req.Action, req.Provenance)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ev)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, event.ErrNotFound) {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	s.logger.Error("request failed", "error", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func queryFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
