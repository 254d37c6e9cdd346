// Package memory provides in-process implementations of the ledger and
// insight store ports, suitable for tests, demos, and single-process
// embedding where durability is not required.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/agentguard-ai/agentguard/internal/domain/event"
	"github.com/agentguard-ai/agentguard/internal/domain/ledger"
)

const defaultListLimit = 100

// EventLedger is an in-memory ledger.EventLedger backed by a slice in
// append order. Safe for concurrent use.
type EventLedger struct {
	mu     sync.RWMutex
	events []event.Event
	byID   map[string]int
}

var _ ledger.EventLedger = (*EventLedger)(nil)

// NewEventLedger builds an empty in-memory ledger.
func NewEventLedger() *EventLedger {
	return &EventLedger{byID: map[string]int{}}
}

// Append stores one event.
func (l *EventLedger) Append(_ context.Context, ev event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[ev.ID] = len(l.events)
	l.events = append(l.events, ev)
	return nil
}

// GetEvent returns one event by id.
func (l *EventLedger) GetEvent(_ context.Context, eventID string) (event.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byID[eventID]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return l.events[idx], nil
}

// ListEvents returns matching events, most recent first.
func (l *EventLedger) ListEvents(_ context.Context, f ledger.Filter) ([]event.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := []event.Event{}
	skipped := 0
	for i := len(l.events) - 1; i >= 0 && len(matched) < limit; i-- {
		ev := l.events[i]
		if !matchesFilter(ev, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		matched = append(matched, ev)
	}
	return matched, nil
}

func matchesFilter(ev event.Event, f ledger.Filter) bool {
	if f.SessionID != "" && ev.SessionID != f.SessionID {
		return false
	}
	if f.AgentID != "" && ev.AgentID != f.AgentID {
		return false
	}
	if f.Decision != "" && ev.Decision != f.Decision {
		return false
	}
	if f.MinRisk != nil && ev.Assessment.Score < *f.MinRisk {
		return false
	}
	if f.MaxRisk != nil && ev.Assessment.Score > *f.MaxRisk {
		return false
	}
	if !f.Since.IsZero() && ev.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && ev.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// GetTimeline returns one session's events in chronological order.
func (l *EventLedger) GetTimeline(_ context.Context, sessionID string) ([]event.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionEventsLocked(sessionID), nil
}

func (l *EventLedger) sessionEventsLocked(sessionID string) []event.Event {
	timeline := []event.Event{}
	for _, ev := range l.events {
		if ev.SessionID == sessionID {
			timeline = append(timeline, ev)
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].CreatedAt.Before(timeline[j].CreatedAt)
	})
	return timeline
}

// GetTimelineSummary aggregates one session.
func (l *EventLedger) GetTimelineSummary(_ context.Context, sessionID string) (event.TimelineSummary, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return event.SummarizeTimeline(sessionID, l.sessionEventsLocked(sessionID)), nil
}

// ListSessions returns known sessions, most recently active first.
func (l *EventLedger) ListSessions(_ context.Context, limit int) ([]ledger.SessionInfo, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	bySession := map[string]*ledger.SessionInfo{}
	for _, ev := range l.events {
		info, ok := bySession[ev.SessionID]
		if !ok {
			info = &ledger.SessionInfo{
				SessionID: ev.SessionID,
				StartedAt: ev.CreatedAt,
				LastSeen:  ev.CreatedAt,
			}
			bySession[ev.SessionID] = info
		}
		info.AgentID = ev.AgentID
		info.AgentGoal = ev.AgentGoal
		info.Framework = ev.Framework
		info.EventCount++
		if ev.CreatedAt.Before(info.StartedAt) {
			info.StartedAt = ev.CreatedAt
		}
		if ev.CreatedAt.After(info.LastSeen) {
			info.LastSeen = ev.CreatedAt
		}
	}

	sessions := make([]ledger.SessionInfo, 0, len(bySession))
	for _, info := range bySession {
		sessions = append(sessions, *info)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastSeen.After(sessions[j].LastSeen)
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// GetStats returns ledger-wide counters.
func (l *EventLedger) GetStats(_ context.Context) (event.Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := event.Stats{}
	sessions := map[string]bool{}
	var total float64
	for _, ev := range l.events {
		stats.TotalEvents++
		sessions[ev.SessionID] = true
		total += ev.Assessment.Score
		switch ev.Decision {
		case event.DecisionBlock:
			stats.BlockedEvents++
		case event.DecisionReview:
			stats.ReviewedEvents++
		default:
			stats.AllowedEvents++
		}
	}
	stats.ActiveSessions = len(sessions)
	if stats.TotalEvents > 0 {
		stats.AvgRiskScore = total / float64(stats.TotalEvents)
	}
	return stats, nil
}

// ListAgents returns distinct agent ids, most recently active first.
func (l *EventLedger) ListAgents(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := map[string]bool{}
	agents := []string{}
	for i := len(l.events) - 1; i >= 0 && len(agents) < limit; i-- {
		id := l.events[i].AgentID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		agents = append(agents, id)
	}
	return agents, nil
}

// GetAgentProfile rolls up one agent across sessions.
func (l *EventLedger) GetAgentProfile(_ context.Context, agentID string) (event.AgentProfile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return event.BuildAgentProfile(agentID, l.agentEventsLocked(agentID))
}

// GetAgentGraph derives the activity graph for one agent.
func (l *EventLedger) GetAgentGraph(_ context.Context, agentID string) (event.AgentGraph, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return event.BuildAgentGraph(agentID, l.agentEventsLocked(agentID)), nil
}

func (l *EventLedger) agentEventsLocked(agentID string) []event.Event {
	matched := []event.Event{}
	for _, ev := range l.events {
		if ev.AgentID == agentID {
			matched = append(matched, ev)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched
}

// Close is a no-op for the in-memory ledger.
func (l *EventLedger) Close() error { return nil }
