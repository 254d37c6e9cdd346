// Package ledger defines the forensic persistence port. An EventLedger is
// append-only for events; every read path is a projection over them.
package ledger

import (
	"context"
	"time"

	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

// Filter narrows ListEvents. Zero values mean "no constraint"; Limit 0
// means the implementation default. MinRisk and MaxRisk are inclusive
// risk-score bounds; nil leaves the bound open.
type Filter struct {
	SessionID string
	AgentID   string
	Decision  event.Decision
	MinRisk   *float64
	MaxRisk   *float64
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// SessionInfo is one row of the session listing.
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	AgentID    string    `json:"agent_id"`
	AgentGoal  string    `json:"agent_goal"`
	Framework  string    `json:"framework"`
	EventCount int       `json:"event_count"`
	StartedAt  time.Time `json:"started_at"`
	LastSeen   time.Time `json:"last_seen"`
}

// EventLedger persists and serves forensic events. Append must never mutate
// the stored copy after return; callers treat appended events as immutable.
type EventLedger interface {
	// Append stores one event.
	Append(ctx context.Context, ev event.Event) error

	// GetEvent returns one event by id, or event.ErrNotFound.
	GetEvent(ctx context.Context, eventID string) (event.Event, error)

	// ListEvents returns matching events, most recent first.
	ListEvents(ctx context.Context, f Filter) ([]event.Event, error)

	// GetTimeline returns one session's events in chronological order.
	GetTimeline(ctx context.Context, sessionID string) ([]event.Event, error)

	// GetTimelineSummary aggregates one session.
	GetTimelineSummary(ctx context.Context, sessionID string) (event.TimelineSummary, error)

	// ListSessions returns known sessions, most recently active first.
	ListSessions(ctx context.Context, limit int) ([]SessionInfo, error)

	// GetStats returns ledger-wide counters.
	GetStats(ctx context.Context) (event.Stats, error)

	// ListAgents returns the distinct agent ids seen, most recently
	// active first.
	ListAgents(ctx context.Context, limit int) ([]string, error)

	// GetAgentProfile rolls up one agent across sessions, or
	// event.ErrNotFound when the agent has no events.
	GetAgentProfile(ctx context.Context, agentID string) (event.AgentProfile, error)

	// GetAgentGraph derives the activity graph for one agent.
	GetAgentGraph(ctx context.Context, agentID string) (event.AgentGraph, error)

	// Close releases any underlying resources.
	Close() error
}
