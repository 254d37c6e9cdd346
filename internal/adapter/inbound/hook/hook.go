// Package hook adapts the interception pipeline to agent frameworks: a
// pre-call hook that raises a typed error on BLOCK, and a tool wrapper that
// substitutes the tool's output with a refusal message the agent can read.
package hook

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

// Interceptor is the slice of the pipeline the hook needs.
type Interceptor interface {
	Intercept(ctx context.Context, sessionID string, act action.Action, provenance map[string]any) (event.Event, error)
}

// Hook guards one session's tool calls.
type Hook struct {
	interceptor Interceptor
	sessionID   string
	provenance  map[string]any
}

// New builds a Hook. An empty sessionID gets a generated one.
func New(interceptor Interceptor, sessionID string, provenance map[string]any) *Hook {
	if sessionID == "" {
		sessionID = "session-" + uuid.NewString()
	}
	return &Hook{interceptor: interceptor, sessionID: sessionID, provenance: provenance}
}

// SessionID returns the session this hook guards.
func (h *Hook) SessionID() string { return h.sessionID }

// BeforeToolCall intercepts a generic tool-call payload. On BLOCK it
// returns the event wrapped in *event.BlockedError so framework callers can
// abort the call; REVIEW and ALLOW return the event with a nil error.
func (h *Hook) BeforeToolCall(ctx context.Context, payload map[string]any) (event.Event, error) {
	return h.run(ctx, action.FromMap(payload))
}

// BeforeOpenAIToolCall intercepts an OpenAI-style tool call envelope.
func (h *Hook) BeforeOpenAIToolCall(ctx context.Context, toolCall map[string]any) (event.Event, error) {
	return h.run(ctx, action.FromOpenAIToolCall(toolCall))
}

// BeforeFrameworkMessage intercepts a framework message carrying tool calls.
func (h *Hook) BeforeFrameworkMessage(ctx context.Context, msg action.FrameworkMessage) (event.Event, error) {
	return h.run(ctx, action.FromFrameworkMessage(msg))
}

func (h *Hook) run(ctx context.Context, act action.Action) (event.Event, error) {
	ev, err := h.interceptor.Intercept(ctx, h.sessionID, act, h.provenance)
	if err != nil {
		return event.Event{}, err
	}
	if ev.Decision == event.DecisionBlock {
		return ev, &event.BlockedError{Event: ev}
	}
	return ev, nil
}

// ToolFunc is the shape of a guarded tool implementation.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// WrapTool guards a tool function. A blocked call never reaches the tool;
// the agent instead receives a refusal string as the tool's output, which
// keeps agent loops running instead of crashing them.
func (h *Hook) WrapTool(name string, tool ToolFunc) ToolFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		payload := map[string]any{"tool_name": name, "parameters": args}
		if _, err := h.BeforeToolCall(ctx, payload); err != nil {
			if blocked, ok := event.AsBlocked(err); ok {
				return fmt.Sprintf("Action blocked by security policy: %s", blocked.Event.Assessment.Reason), nil
			}
			return "", err
		}
		return tool(ctx, args)
	}
}
