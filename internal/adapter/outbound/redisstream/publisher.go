// Package redisstream moves flagged events and triage insights over Redis
// streams. Publishing is best-effort: the interception pipeline never
// blocks on Redis, and a missing REDIS_URL disables the transport entirely.
package redisstream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

const (
	// EventsStream carries flagged events awaiting triage.
	EventsStream = "agentguard:events"
	// InsightsStream carries completed triage insights.
	InsightsStream = "agentguard:insights"

	// maxStreamLen caps stream growth; trimming is approximate.
	maxStreamLen = 10000
)

// Publisher writes events and insights to Redis streams. The connection is
// established lazily on first publish so process startup never depends on
// Redis availability.
type Publisher struct {
	url    string
	logger *slog.Logger

	mu     sync.Mutex
	client *redis.Client
}

var _ enrichment.InsightPublisher = (*Publisher)(nil)

// NewPublisher builds a Publisher for the given redis URL. An empty URL
// yields a disabled publisher whose methods are no-ops.
func NewPublisher(url string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{url: url, logger: logger}
}

// Enabled reports whether a Redis URL was configured.
func (p *Publisher) Enabled() bool {
	return p.url != ""
}

func (p *Publisher) connect(ctx context.Context) (*redis.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	opts, err := redis.ParseURL(p.url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	p.client = client
	return client, nil
}

// PublishEvent appends a flagged event to the events stream. Entries are
// flat string-keyed mappings of the event's identifying fields, not a
// nested document, so any stream client can read them.
func (p *Publisher) PublishEvent(ctx context.Context, ev event.Event) error {
	if !p.Enabled() {
		return nil
	}
	return p.publish(ctx, EventsStream, map[string]any{
		"event_id":    ev.ID,
		"session_id":  ev.SessionID,
		"agent_id":    ev.AgentID,
		"agent_goal":  ev.AgentGoal,
		"tool_name":   ev.Action.ToolName,
		"action_type": string(ev.Action.Type),
		"decision":    ev.Decision.String(),
		"risk_score":  strconv.FormatFloat(ev.Assessment.Score, 'f', -1, 64),
		"reason":      ev.Assessment.Reason,
		"timestamp":   ev.CreatedAt.Format(time.RFC3339Nano),
	})
}

// PublishInsight appends a triage insight to the insights stream, flattened
// the same way as events.
func (p *Publisher) PublishInsight(ctx context.Context, insight enrichment.Insight) error {
	if !p.Enabled() {
		return nil
	}
	return p.publish(ctx, InsightsStream, map[string]any{
		"event_id":                  insight.EventID,
		"session_id":                insight.SessionID,
		"agent_id":                  insight.AgentID,
		"attack_pattern":            string(insight.AttackPattern),
		"confidence":                strconv.FormatFloat(insight.Confidence, 'f', -1, 64),
		"severity":                  string(insight.Severity),
		"summary":                   insight.Summary,
		"recommendation":            insight.Recommendation,
		"false_positive_likelihood": strconv.FormatFloat(insight.FalsePositiveLikelihood, 'f', -1, 64),
		"model":                     insight.Model,
		"created_at":                insight.CreatedAt.Format(time.RFC3339Nano),
	})
}

func (p *Publisher) publish(ctx context.Context, stream string, fields map[string]any) error {
	client, err := p.connect(ctx)
	if err != nil {
		return err
	}
	if err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// Close closes the underlying connection if one was established.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
