package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentguard-ai/agentguard/internal/adapter/inbound/hook"
	anthropicadapter "github.com/agentguard-ai/agentguard/internal/adapter/outbound/anthropic"
	"github.com/agentguard-ai/agentguard/internal/adapter/outbound/memory"
	"github.com/agentguard-ai/agentguard/internal/adapter/outbound/redisstream"
	"github.com/agentguard-ai/agentguard/internal/adapter/outbound/sqlite"
	"github.com/agentguard-ai/agentguard/internal/config"
	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/analyzer"
	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
	"github.com/agentguard-ai/agentguard/internal/domain/ledger"
	"github.com/agentguard-ai/agentguard/internal/domain/policy"
	"github.com/agentguard-ai/agentguard/internal/telemetry"
)

// Guard is the embeddable facade: one call wires the policy engine,
// classifier, ledger, stream transport, and metrics into a running
// interceptor.
type Guard struct {
	cfg         config.Config
	logger      *slog.Logger
	engine      *policy.Engine
	ledger      ledger.EventLedger
	insights    enrichment.Store
	publisher   *redisstream.Publisher
	interceptor *Interceptor
	metrics     *telemetry.Metrics
	registry    *prometheus.Registry
}

// GuardOptions describe the guarded agent.
type GuardOptions struct {
	// AgentGoal is the agent's stated objective, given to the classifier
	// as alignment context.
	AgentGoal string
	// Framework names the integration (e.g. "langchain", "openai").
	Framework string
	// Logger overrides the logger built from the config.
	Logger *slog.Logger
}

// NewGuard assembles a Guard from configuration. The caller owns the
// returned Guard and must Close it.
func NewGuard(cfg config.Config, opts GuardOptions) (*Guard, error) {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewLogger(cfg.LogLevel, cfg.JSONLogs)
	}

	policyCfg := policy.DefaultConfig()
	if cfg.PolicyPath != "" {
		loaded, err := policy.LoadConfig(cfg.PolicyPath)
		switch {
		case err == nil:
			policyCfg = loaded
		case errors.Is(err, fs.ErrNotExist):
			// The default path is optional; an explicit bad path still
			// surfaces below through the reload endpoint.
			logger.Warn("policy file not found, using built-in defaults", "path", cfg.PolicyPath)
		default:
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}
	engine, err := policy.NewEngine(policyCfg, logger)
	if err != nil {
		return nil, err
	}

	var eventLedger ledger.EventLedger
	if cfg.LedgerPath != "" {
		eventLedger, err = sqlite.Open(cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
	} else {
		eventLedger = memory.NewEventLedger()
	}

	var riskAnalyzer analyzer.RiskAnalyzer
	var enricher enrichment.Client
	if cfg.AnthropicAPIKey != "" {
		riskAnalyzer = anthropicadapter.NewIntentAnalyzer(
			cfg.AnthropicAPIKey, cfg.AnalyzerModel, cfg.AnalyzerTimeout, logger)
		enricher = anthropicadapter.NewEnrichmentClient(
			cfg.AnthropicAPIKey, cfg.TriageModel, cfg.TriageTimeout, logger)
	} else {
		logger.Warn("no anthropic api key configured, risk analysis degraded to fallback")
		riskAnalyzer = analyzer.Disabled("no api key configured")
	}

	publisher := redisstream.NewPublisher(cfg.RedisURL, logger)
	insights := memory.NewInsightStore(cfg.InsightCapacity)
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	interceptor := NewInterceptor(InterceptorConfig{
		Engine:    engine,
		Analyzer:  riskAnalyzer,
		Ledger:    eventLedger,
		Publisher: publisher,
		Enricher:  enricher,
		Insights:  insights,
		Metrics:   metrics,
		Logger:    logger,
		AgentGoal: opts.AgentGoal,
		Framework: opts.Framework,
	})

	return &Guard{
		cfg:         cfg,
		logger:      logger,
		engine:      engine,
		ledger:      eventLedger,
		insights:    insights,
		publisher:   publisher,
		interceptor: interceptor,
		metrics:     metrics,
		registry:    registry,
	}, nil
}

// Intercept runs one normalized action through the pipeline.
func (g *Guard) Intercept(ctx context.Context, sessionID string, act action.Action, provenance map[string]any) (event.Event, error) {
	return g.interceptor.Intercept(ctx, sessionID, act, provenance)
}

// InterceptMap normalizes a generic payload and runs it through the
// pipeline.
func (g *Guard) InterceptMap(ctx context.Context, sessionID string, payload map[string]any, provenance map[string]any) (event.Event, error) {
	return g.Intercept(ctx, sessionID, action.FromMap(payload), provenance)
}

// Hook builds a per-session framework hook over this guard. An empty
// sessionID gets a generated one.
func (g *Guard) Hook(sessionID string, provenance map[string]any) *hook.Hook {
	return hook.New(g.interceptor, sessionID, provenance)
}

// WrapTool guards a tool function under a fresh session.
func (g *Guard) WrapTool(name string, tool hook.ToolFunc) hook.ToolFunc {
	return g.Hook("", nil).WrapTool(name, tool)
}

// Interceptor exposes the underlying pipeline for adapters.
func (g *Guard) Interceptor() *Interceptor { return g.interceptor }

// Ledger exposes the forensic ledger for the read API.
func (g *Guard) Ledger() ledger.EventLedger { return g.ledger }

// Insights exposes the insight store for the read API.
func (g *Guard) Insights() enrichment.Store { return g.insights }

// Engine exposes the policy engine for reloads and the read API.
func (g *Guard) Engine() *policy.Engine { return g.engine }

// Registry exposes the metrics registry for the /metrics endpoint.
func (g *Guard) Registry() *prometheus.Registry { return g.registry }

// Logger exposes the process logger.
func (g *Guard) Logger() *slog.Logger { return g.logger }

// ReloadPolicy re-reads the configured policy file and swaps it in.
func (g *Guard) ReloadPolicy() error {
	if g.cfg.PolicyPath == "" {
		return fmt.Errorf("no policy path configured")
	}
	return g.engine.Reload(g.cfg.PolicyPath)
}

// Close stops the pipeline and releases resources.
func (g *Guard) Close() error {
	g.interceptor.Close()
	_ = g.publisher.Close()
	return g.ledger.Close()
}
