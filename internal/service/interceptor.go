// Package service wires the domain pieces into the running pipeline: the
// interceptor that guards tool calls, the enrichment worker that triages
// flagged events, and the embeddable guard facade.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/analyzer"
	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
	"github.com/agentguard-ai/agentguard/internal/domain/ledger"
	"github.com/agentguard-ai/agentguard/internal/domain/policy"
	"github.com/agentguard-ai/agentguard/internal/telemetry"
)

const (
	// policyEngineModel tags assessments synthesized on the deterministic
	// fast path, where no classifier ran.
	policyEngineModel = "policy_engine"

	// Fast-path scores for deterministic blocks.
	credentialBlockScore = 0.95
	policyBlockScore     = 0.80
	sessionLimitScore    = 1.0

	// recentActionsWindow is how much session context the classifier sees.
	recentActionsWindow = 5

	// enrichQueueSize bounds the in-process enrichment backlog. A full
	// queue drops the event rather than stalling interception.
	enrichQueueSize = 64
	enrichWorkers   = 4
)

// EventPublisher is the stream transport the interceptor hands flagged
// events to. A disabled publisher reports Enabled() == false.
type EventPublisher interface {
	Enabled() bool
	PublishEvent(ctx context.Context, ev event.Event) error
}

// Interceptor runs the interception pipeline: session limits, deterministic
// policy, risk classification, decision, forensic append, enrichment
// dispatch. Safe for concurrent use across sessions.
type Interceptor struct {
	engine    *policy.Engine
	analyzer  analyzer.RiskAnalyzer
	ledger    ledger.EventLedger
	publisher EventPublisher
	enricher  enrichment.Client
	insights  enrichment.Store
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	agentGoal string
	framework string

	mu       sync.Mutex
	sessions map[string]*sessionState

	enrichCh chan event.Event
	wg       sync.WaitGroup
	closed   chan struct{}
}

// sessionState tracks the running counters and recent context per session.
type sessionState struct {
	actions int
	blocked int
	recent  []action.Action
}

// InterceptorConfig carries the interceptor's collaborators. Engine,
// Analyzer, and Ledger are required; the rest degrade gracefully when nil.
type InterceptorConfig struct {
	Engine    *policy.Engine
	Analyzer  analyzer.RiskAnalyzer
	Ledger    ledger.EventLedger
	Publisher EventPublisher
	Enricher  enrichment.Client
	Insights  enrichment.Store
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
	AgentGoal string
	Framework string
}

// NewInterceptor builds the pipeline and starts its enrichment dispatchers.
func NewInterceptor(cfg InterceptorConfig) *Interceptor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	it := &Interceptor{
		engine:    cfg.Engine,
		analyzer:  cfg.Analyzer,
		ledger:    cfg.Ledger,
		publisher: cfg.Publisher,
		enricher:  cfg.Enricher,
		insights:  cfg.Insights,
		metrics:   cfg.Metrics,
		logger:    logger,
		agentGoal: cfg.AgentGoal,
		framework: cfg.Framework,
		sessions:  map[string]*sessionState{},
		enrichCh:  make(chan event.Event, enrichQueueSize),
		closed:    make(chan struct{}),
	}
	for i := 0; i < enrichWorkers; i++ {
		it.wg.Add(1)
		go it.enrichLoop()
	}
	return it
}

// Close stops the enrichment dispatchers and waits for in-flight work.
// Queued but unprocessed events are dropped; their forensic records were
// already appended.
func (it *Interceptor) Close() {
	close(it.closed)
	it.wg.Wait()
}

// Intercept runs one action through the pipeline and returns the forensic
// event carrying the decision. A BLOCK decision is a normal return value,
// not an error; only infrastructure failures surface as errors, and the
// pipeline is built so they do not occur on the hot path.
func (it *Interceptor) Intercept(ctx context.Context, sessionID string, act action.Action, provenance map[string]any) (event.Event, error) {
	start := time.Now()

	state := it.sessionSnapshot(sessionID)
	assessment, decision, violation := it.decide(ctx, sessionID, act, state)

	ev := event.New(sessionID, it.agentGoal, act, assessment, decision, violation, provenance, it.framework)

	// The append must survive a caller that cancels right after the
	// decision; forensics are not optional.
	if err := it.ledger.Append(context.WithoutCancel(ctx), ev); err != nil {
		it.logger.Error("ledger append failed", "event_id", ev.ID, "error", err)
		if it.metrics != nil {
			it.metrics.LedgerAppendErrors.Inc()
		}
	}

	it.recordAction(sessionID, act, decision)

	if decision != event.DecisionAllow {
		it.dispatchEnrichment(ev)
	}

	if it.metrics != nil {
		it.metrics.Decisions.WithLabelValues(decision.String(), act.Type.String()).Inc()
		it.metrics.InterceptDuration.WithLabelValues(decision.String()).Observe(time.Since(start).Seconds())
	}
	it.logger.Info("action intercepted",
		"session_id", sessionID,
		"tool", act.ToolName,
		"action_type", act.Type.String(),
		"decision", decision.String(),
		"risk_score", assessment.Score)
	return ev, nil
}

// decide runs the decision stages and returns the assessment, the final
// decision, and the violation that drove it (nil on a clean allow).
func (it *Interceptor) decide(ctx context.Context, sessionID string, act action.Action, state sessionState) (event.RiskAssessment, event.Decision, *policy.Violation) {
	// Session limits come first; a cut-off session runs no classifier.
	if v := it.engine.EvaluateSessionLimits(state.actions, state.blocked); v != nil {
		assessment := event.RiskAssessment{
			Score:      sessionLimitScore,
			Reason:     v.Detail,
			Indicators: []string{"session_limit"},
			Model:      policyEngineModel,
		}
		return assessment, event.DecisionBlock, v
	}

	policyViolation := it.engine.Evaluate(act)
	if policyViolation != nil && policyViolation.Decision == policy.DecisionBlock {
		// Deterministic block: synthesize the assessment, skip the
		// classifier. Credential access scores highest no matter which
		// rule caught it.
		score := policyBlockScore
		if act.Type == action.TypeCredentialAccess {
			score = credentialBlockScore
		}
		assessment := event.RiskAssessment{
			Score:      score,
			Reason:     policyViolation.Detail,
			Indicators: []string{policyViolation.RuleName},
			Model:      policyEngineModel,
		}
		return assessment, event.DecisionBlock, policyViolation
	}

	assessment := it.analyzer.Assess(ctx, analyzer.Request{
		Action:        act,
		AgentGoal:     it.agentGoal,
		SessionID:     sessionID,
		RecentActions: state.recent,
	})
	if assessment.Model == analyzer.FallbackModel && it.metrics != nil {
		it.metrics.AnalyzerFallbacks.Inc()
	}

	decision, riskViolation := it.engine.EvaluateRisk(assessment.Score)

	// A review_tools hit upgrades an allow; a risk block outranks it.
	violation := riskViolation
	if policyViolation != nil {
		if decision == event.DecisionAllow {
			decision = event.DecisionReview
		}
		if violation == nil || decision == event.DecisionReview {
			violation = policyViolation
		}
	}
	return assessment, decision, violation
}

// sessionSnapshot returns a copy of the session counters as of before the
// current action.
func (it *Interceptor) sessionSnapshot(sessionID string) sessionState {
	it.mu.Lock()
	defer it.mu.Unlock()
	state := it.sessions[sessionID]
	if state == nil {
		return sessionState{}
	}
	snapshot := sessionState{actions: state.actions, blocked: state.blocked}
	snapshot.recent = append([]action.Action{}, state.recent...)
	return snapshot
}

// recordAction advances the session counters after a decision.
func (it *Interceptor) recordAction(sessionID string, act action.Action, decision event.Decision) {
	it.mu.Lock()
	defer it.mu.Unlock()
	state := it.sessions[sessionID]
	if state == nil {
		state = &sessionState{}
		it.sessions[sessionID] = state
	}
	state.actions++
	if decision == event.DecisionBlock {
		state.blocked++
	}
	state.recent = append(state.recent, act)
	if len(state.recent) > recentActionsWindow {
		state.recent = state.recent[len(state.recent)-recentActionsWindow:]
	}
}

// ResetSession clears one session's counters and context.
func (it *Interceptor) ResetSession(sessionID string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	delete(it.sessions, sessionID)
}

// dispatchEnrichment hands a flagged event to the enrichment queue without
// blocking. When the queue is full the event is dropped and counted; the
// forensic record already exists.
func (it *Interceptor) dispatchEnrichment(ev event.Event) {
	select {
	case it.enrichCh <- ev:
	case <-it.closed:
	default:
		if it.metrics != nil {
			it.metrics.EnrichmentDropped.Inc()
		}
		it.logger.Warn("enrichment queue full, dropping event", "event_id", ev.ID)
	}
}

// enrichLoop drains the enrichment queue. Events go to the stream when a
// publisher is configured; a missing publisher or a failed publish routes
// the event to the in-process triage client instead.
func (it *Interceptor) enrichLoop() {
	defer it.wg.Done()
	for {
		select {
		case <-it.closed:
			return
		case ev := <-it.enrichCh:
			it.enrich(ev)
		}
	}
}

func (it *Interceptor) enrich(ev event.Event) {
	ctx := context.Background()
	if it.publisher != nil && it.publisher.Enabled() {
		err := it.publisher.PublishEvent(ctx, ev)
		if err == nil {
			return
		}
		// A transport failure degrades to in-process enrichment for this
		// event rather than losing it.
		it.logger.Warn("stream publish failed, enriching in-process", "event_id", ev.ID, "error", err)
	}
	if it.enricher == nil || it.insights == nil {
		return
	}
	insight, err := it.enricher.Triage(ctx, ev)
	if err != nil {
		it.logger.Warn("triage failed", "event_id", ev.ID, "error", err)
		insight = enrichment.FallbackInsight(ev, err.Error())
	}
	it.insights.Put(insight)
}
