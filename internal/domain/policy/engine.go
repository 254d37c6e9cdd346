package policy

import (
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
)

// toolPattern pairs a raw glob with its compiled form for violation details.
type toolPattern struct {
	raw string
	re  *regexp.Regexp
}

// compiled is an immutable snapshot of a validated Config with its tool
// globs precompiled. Snapshots are swapped whole on reload; evaluations in
// flight keep the snapshot they started with.
type compiled struct {
	cfg         Config
	denyTools   []toolPattern
	allowTools  []toolPattern
	reviewTools []toolPattern
}

// Engine evaluates actions against the active policy snapshot. All methods
// are safe for concurrent use.
type Engine struct {
	snapshot atomic.Value // *compiled
	logger   *slog.Logger
}

// NewEngine builds an Engine from a validated Config.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	snap, err := compileConfig(cfg)
	if err != nil {
		return nil, err
	}
	e := &Engine{logger: logger}
	e.snapshot.Store(snap)
	return e, nil
}

// compileConfig validates the config and precompiles its tool globs.
func compileConfig(cfg Config) (*compiled, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	snap := &compiled{cfg: cfg}
	for _, spec := range []struct {
		field    string
		patterns []string
		out      *[]toolPattern
	}{
		{"deny_tools", cfg.DenyTools, &snap.denyTools},
		{"allow_tools", cfg.AllowTools, &snap.allowTools},
		{"review_tools", cfg.ReviewTools, &snap.reviewTools},
	} {
		for _, raw := range spec.patterns {
			re, err := compileToolPattern(raw)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", spec.field, raw, err)
			}
			*spec.out = append(*spec.out, toolPattern{raw: raw, re: re})
		}
	}
	return snap, nil
}

// Config returns the currently active policy config.
func (e *Engine) Config() Config {
	return e.current().cfg
}

// Reload loads a new policy file and atomically swaps it in. On any error
// the previous policy stays active.
func (e *Engine) Reload(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	return e.Apply(cfg)
}

// Apply validates and atomically activates a new config.
func (e *Engine) Apply(cfg Config) error {
	snap, err := compileConfig(cfg)
	if err != nil {
		return err
	}
	e.snapshot.Store(snap)
	e.logger.Info("policy applied",
		"policy", cfg.Name,
		"risk_threshold", cfg.RiskThreshold,
		"review_threshold", cfg.ReviewThreshold)
	return nil
}

func (e *Engine) current() *compiled {
	return e.snapshot.Load().(*compiled)
}

// Evaluate runs the deterministic rules against one action and returns the
// first violation, or nil when no rule fires.
//
// Rule order is fixed: deny_tools, allow_tools, deny_path_patterns,
// credential access, deny_domains, review_tools. The first match wins.
func (e *Engine) Evaluate(act action.Action) *Violation {
	snap := e.current()

	if p, ok := matchTool(snap.denyTools, act.ToolName); ok {
		return &Violation{
			RuleName: "deny_tools",
			RuleType: "tool_blacklist",
			Detail:   fmt.Sprintf("tool %q matches denied pattern %q", act.ToolName, p),
			Decision: DecisionBlock,
		}
	}

	if len(snap.allowTools) > 0 {
		if _, ok := matchTool(snap.allowTools, act.ToolName); !ok {
			return &Violation{
				RuleName: "allow_tools",
				RuleType: "tool_allowlist",
				Detail:   fmt.Sprintf("tool %q is not on the allowlist", act.ToolName),
				Decision: DecisionBlock,
			}
		}
	}

	if act.Type == action.TypeFileRead || act.Type == action.TypeFileWrite || act.Type == action.TypeCredentialAccess {
		if filePath := action.ExtractFilePath(act.Parameters); filePath != "" {
			for _, pattern := range snap.cfg.DenyPathPatterns {
				if pathMatches(filePath, pattern) {
					return &Violation{
						RuleName: "deny_path_patterns",
						RuleType: "path_blacklist",
						Detail:   fmt.Sprintf("path %q matches denied pattern %q", filePath, pattern),
						Decision: DecisionBlock,
					}
				}
			}
		}
	}

	// Credential access is blocked regardless of configured rules.
	if act.Type == action.TypeCredentialAccess {
		detail := "credential access attempt"
		if filePath := action.ExtractFilePath(act.Parameters); filePath != "" {
			detail = fmt.Sprintf("credential access attempt on %q", filePath)
		}
		return &Violation{
			RuleName: "credential_access",
			RuleType: "credential_pattern",
			Detail:   detail,
			Decision: DecisionBlock,
		}
	}

	if act.Type == action.TypeHTTPRequest {
		if domain := action.ExtractURLDomain(act.Parameters); domain != "" {
			for _, pattern := range snap.cfg.DenyDomains {
				if domainMatches(domain, pattern) {
					return &Violation{
						RuleName: "deny_domains",
						RuleType: "domain_blacklist",
						Detail:   fmt.Sprintf("domain %q matches denied pattern %q", domain, pattern),
						Decision: DecisionBlock,
					}
				}
			}
		}
	}

	if p, ok := matchTool(snap.reviewTools, act.ToolName); ok {
		return &Violation{
			RuleName: "review_tools",
			RuleType: "tool_review",
			Detail:   fmt.Sprintf("tool %q matches review pattern %q", act.ToolName, p),
			Decision: DecisionReview,
		}
	}

	return nil
}

// EvaluateRisk maps a classifier score to a decision using the active
// thresholds. Both thresholds are inclusive.
func (e *Engine) EvaluateRisk(score float64) (Decision, *Violation) {
	cfg := e.current().cfg
	switch {
	case score >= cfg.RiskThreshold:
		return DecisionBlock, &Violation{
			RuleName: "risk_threshold",
			RuleType: "risk_score",
			Detail:   fmt.Sprintf("risk score %.2f >= block threshold %.2f", score, cfg.RiskThreshold),
			Decision: DecisionBlock,
		}
	case score >= cfg.ReviewThreshold:
		return DecisionReview, &Violation{
			RuleName: "review_threshold",
			RuleType: "risk_score",
			Detail:   fmt.Sprintf("risk score %.2f >= review threshold %.2f", score, cfg.ReviewThreshold),
			Decision: DecisionReview,
		}
	default:
		return DecisionAllow, nil
	}
}

// EvaluateSessionLimits checks the running per-session counters against the
// configured caps. Counts are as of before the current action. A limit of
// zero disables its check.
func (e *Engine) EvaluateSessionLimits(actionCount, blockedCount int) *Violation {
	limits := e.current().cfg.SessionLimits
	if limits.MaxActions > 0 && actionCount >= limits.MaxActions {
		return &Violation{
			RuleName: "session_limits",
			RuleType: "session_max_actions",
			Detail:   fmt.Sprintf("session reached %d actions (limit %d)", actionCount, limits.MaxActions),
			Decision: DecisionBlock,
		}
	}
	if limits.MaxBlocked > 0 && blockedCount >= limits.MaxBlocked {
		return &Violation{
			RuleName: "session_limits",
			RuleType: "session_max_blocked",
			Detail:   fmt.Sprintf("session reached %d blocked actions (limit %d)", blockedCount, limits.MaxBlocked),
			Decision: DecisionBlock,
		}
	}
	return nil
}

func matchTool(patterns []toolPattern, toolName string) (string, bool) {
	for _, p := range patterns {
		if p.re.MatchString(toolName) {
			return p.raw, true
		}
	}
	return "", false
}
