// Package sqlite implements the event ledger on an embedded SQLite
// database. The full event is stored as JSON alongside a handful of
// denormalized columns used for filtering; aggregates are computed from the
// decoded events so the in-memory and SQLite backends always agree.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentguard-ai/agentguard/internal/domain/event"
	"github.com/agentguard-ai/agentguard/internal/domain/ledger"
)

const defaultListLimit = 100

// EventLedger is a SQLite-backed ledger.EventLedger.
type EventLedger struct {
	db *sql.DB
}

var _ ledger.EventLedger = (*EventLedger)(nil)

// Open opens (creating if needed) a SQLite ledger at path. ":memory:" opens
// an ephemeral database.
func Open(path string) (*EventLedger, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}
	// The sqlite driver serializes writes; a single connection avoids
	// table-lock errors under concurrent appends.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &EventLedger{db: db}, nil
}

// Close closes the underlying database.
func (l *EventLedger) Close() error {
	return l.db.Close()
}

// Append stores one event and upserts its session row.
func (l *EventLedger) Append(ctx context.Context, ev event.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	createdAt := ev.CreatedAt.UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (event_id, session_id, agent_id, tool_name, action_type, decision, risk_score, created_at, event_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.AgentID, ev.Action.ToolName, ev.Action.Type.String(),
		string(ev.Decision), ev.Assessment.Score, createdAt, string(raw),
	); err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, agent_id, agent_goal, framework, event_count, started_at, last_seen)
		 VALUES (?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			agent_id    = excluded.agent_id,
			agent_goal  = excluded.agent_goal,
			framework   = excluded.framework,
			event_count = sessions.event_count + 1,
			last_seen   = excluded.last_seen`,
		ev.SessionID, ev.AgentID, ev.AgentGoal, ev.Framework, createdAt, createdAt,
	); err != nil {
		return fmt.Errorf("upsert session %s: %w", ev.SessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

// GetEvent returns one event by id.
func (l *EventLedger) GetEvent(ctx context.Context, eventID string) (event.Event, error) {
	var raw string
	err := l.db.QueryRowContext(ctx,
		`SELECT event_json FROM events WHERE event_id = ?`, eventID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, event.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return decodeEvent(raw)
}

// ListEvents returns matching events, most recent first.
func (l *EventLedger) ListEvents(ctx context.Context, f ledger.Filter) ([]event.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	var conds []string
	var args []any
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.AgentID != "" {
		conds = append(conds, "agent_id = ?")
		args = append(args, f.AgentID)
	}
	if f.Decision != "" {
		conds = append(conds, "decision = ?")
		args = append(args, string(f.Decision))
	}
	if f.MinRisk != nil {
		conds = append(conds, "risk_score >= ?")
		args = append(args, *f.MinRisk)
	}
	if f.MaxRisk != nil {
		conds = append(conds, "risk_score <= ?")
		args = append(args, *f.MaxRisk)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if !f.Until.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, f.Until.UTC().Format(time.RFC3339Nano))
	}

	query := `SELECT event_json FROM events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	return l.queryEvents(ctx, query, args...)
}

// GetTimeline returns one session's events in chronological order.
func (l *EventLedger) GetTimeline(ctx context.Context, sessionID string) ([]event.Event, error) {
	return l.queryEvents(ctx,
		`SELECT event_json FROM events WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`,
		sessionID)
}

// GetTimelineSummary aggregates one session.
func (l *EventLedger) GetTimelineSummary(ctx context.Context, sessionID string) (event.TimelineSummary, error) {
	timeline, err := l.GetTimeline(ctx, sessionID)
	if err != nil {
		return event.TimelineSummary{}, err
	}
	return event.SummarizeTimeline(sessionID, timeline), nil
}

// ListSessions returns known sessions, most recently active first.
func (l *EventLedger) ListSessions(ctx context.Context, limit int) ([]ledger.SessionInfo, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT session_id, agent_id, agent_goal, framework, event_count, started_at, last_seen
		 FROM sessions ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ledger.SessionInfo{}
	for rows.Next() {
		var info ledger.SessionInfo
		var startedAt, lastSeen string
		if err := rows.Scan(&info.SessionID, &info.AgentID, &info.AgentGoal,
			&info.Framework, &info.EventCount, &startedAt, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if info.StartedAt, err = parseTimestamp(startedAt); err != nil {
			return nil, err
		}
		if info.LastSeen, err = parseTimestamp(lastSeen); err != nil {
			return nil, err
		}
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

// GetStats returns ledger-wide counters.
func (l *EventLedger) GetStats(ctx context.Context) (event.Stats, error) {
	var stats event.Stats
	var avg sql.NullFloat64
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN decision = 'block' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decision = 'review' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decision = 'allow' THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT session_id),
			AVG(risk_score)
		 FROM events`).Scan(
		&stats.TotalEvents, &stats.BlockedEvents, &stats.ReviewedEvents,
		&stats.AllowedEvents, &stats.ActiveSessions, &avg)
	if err != nil {
		return event.Stats{}, fmt.Errorf("get stats: %w", err)
	}
	if avg.Valid {
		stats.AvgRiskScore = avg.Float64
	}
	return stats, nil
}

// ListAgents returns distinct agent ids, most recently active first.
func (l *EventLedger) ListAgents(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT agent_id FROM events WHERE agent_id != ''
		 GROUP BY agent_id ORDER BY MAX(created_at) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	agents := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		agents = append(agents, id)
	}
	return agents, rows.Err()
}

// GetAgentProfile rolls up one agent across sessions.
func (l *EventLedger) GetAgentProfile(ctx context.Context, agentID string) (event.AgentProfile, error) {
	events, err := l.agentEvents(ctx, agentID)
	if err != nil {
		return event.AgentProfile{}, err
	}
	return event.BuildAgentProfile(agentID, events)
}

// GetAgentGraph derives the activity graph for one agent.
func (l *EventLedger) GetAgentGraph(ctx context.Context, agentID string) (event.AgentGraph, error) {
	events, err := l.agentEvents(ctx, agentID)
	if err != nil {
		return event.AgentGraph{}, err
	}
	return event.BuildAgentGraph(agentID, events), nil
}

func (l *EventLedger) agentEvents(ctx context.Context, agentID string) ([]event.Event, error) {
	return l.queryEvents(ctx,
		`SELECT event_json FROM events WHERE agent_id = ? ORDER BY created_at ASC, rowid ASC`,
		agentID)
}

func (l *EventLedger) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev, err := decodeEvent(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func decodeEvent(raw string) (event.Event, error) {
	var ev event.Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return event.Event{}, fmt.Errorf("decode stored event: %w", err)
	}
	return ev, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}
