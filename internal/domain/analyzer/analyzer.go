// Package analyzer defines the risk classification port. Implementations
// judge one action in the context of the agent's stated goal and return a
// scored assessment; they never return an error to the pipeline.
package analyzer

import (
	"context"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

// Request carries everything a classifier may consider for one action.
type Request struct {
	Action        action.Action
	AgentGoal     string
	SessionID     string
	RecentActions []action.Action
}

// RiskAnalyzer scores one action. Implementations must degrade rather than
// fail: when the underlying model is unreachable or returns garbage they
// return Fallback(err) instead of an error.
type RiskAnalyzer interface {
	Assess(ctx context.Context, req Request) event.RiskAssessment
}

// Func adapts a plain function to the RiskAnalyzer interface.
type Func func(ctx context.Context, req Request) event.RiskAssessment

// Assess implements RiskAnalyzer.
func (f Func) Assess(ctx context.Context, req Request) event.RiskAssessment {
	return f(ctx, req)
}

// Disabled returns an analyzer that always falls back with the given
// reason, for deployments without a classifier configured.
func Disabled(reason string) RiskAnalyzer {
	return Func(func(context.Context, Request) event.RiskAssessment {
		return Fallback(reason)
	})
}

// FallbackModel tags assessments synthesized when no classifier answered.
const FallbackModel = "fallback"

// Fallback builds the conservative assessment used when classification is
// unavailable: mid-range score so thresholds can still flag it for review,
// never goal-aligned.
func Fallback(reason string) event.RiskAssessment {
	return event.RiskAssessment{
		Score:         0.5,
		Reason:        "analyzer_unavailable: " + reason,
		Indicators:    []string{"analyzer_error"},
		IsGoalAligned: false,
		Model:         FallbackModel,
	}
}
