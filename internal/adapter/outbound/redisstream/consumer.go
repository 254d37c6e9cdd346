package redisstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentguard-ai/agentguard/internal/domain/action"
	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
	"github.com/agentguard-ai/agentguard/internal/domain/event"
)

var _ enrichment.EventSource = (*Consumer)(nil)

const (
	// DefaultGroup is the consumer group shared by enrichment workers.
	DefaultGroup = "enrichment-workers"

	fetchCount = 10
	fetchBlock = 500 * time.Millisecond
)

// Consumer reads flagged events from the events stream through a consumer
// group. Entries are acknowledged only after the worker finishes processing
// them, so a crashed worker's entries are redelivered.
type Consumer struct {
	client   *redis.Client
	group    string
	consumer string
	logger   *slog.Logger
}

// NewConsumer connects to Redis and builds a Consumer identified by its
// group and consumer name.
func NewConsumer(url, group, consumer string, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if group == "" {
		group = DefaultGroup
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Consumer{
		client:   redis.NewClient(opts),
		group:    group,
		consumer: consumer,
		logger:   logger,
	}, nil
}

// EnsureGroup creates the consumer group and the stream if either is
// missing. An already-existing group is not an error.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, EventsStream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Fetch reads up to a batch of pending entries, blocking briefly when the
// stream is empty. An empty slice means no entries arrived in time.
func (c *Consumer) Fetch(ctx context.Context) ([]enrichment.StreamMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{EventsStream, ">"},
		Count:    fetchCount,
		Block:    fetchBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", EventsStream, err)
	}

	var messages []enrichment.StreamMessage
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			ev, decodeErr := decodeEntry(entry)
			if decodeErr != nil {
				// Malformed entries are acknowledged and dropped so
				// they cannot wedge the group.
				c.logger.Warn("dropping malformed stream entry",
					"stream", EventsStream, "entry_id", entry.ID, "error", decodeErr)
				_ = c.client.XAck(ctx, EventsStream, c.group, entry.ID).Err()
				continue
			}
			messages = append(messages, enrichment.StreamMessage{ID: entry.ID, Event: ev})
		}
	}
	return messages, nil
}

// decodeEntry rebuilds an event from the flat entry fields the publisher
// wrote. Only the identifying fields travel over the stream; anything
// richer comes from the ledger by event id.
func decodeEntry(entry redis.XMessage) (event.Event, error) {
	id := entryString(entry, "event_id")
	if id == "" {
		return event.Event{}, fmt.Errorf("entry %s missing event_id", entry.ID)
	}
	score, err := strconv.ParseFloat(entryString(entry, "risk_score"), 64)
	if err != nil {
		return event.Event{}, fmt.Errorf("entry %s risk_score: %w", entry.ID, err)
	}
	ev := event.Event{
		ID:        id,
		SessionID: entryString(entry, "session_id"),
		AgentID:   entryString(entry, "agent_id"),
		AgentGoal: entryString(entry, "agent_goal"),
		Action: action.Action{
			Type:     action.Type(entryString(entry, "action_type")),
			ToolName: entryString(entry, "tool_name"),
		},
		Assessment: event.RiskAssessment{
			Score:  score,
			Reason: entryString(entry, "reason"),
		},
		Decision: event.Decision(entryString(entry, "decision")),
	}
	if at, err := time.Parse(time.RFC3339Nano, entryString(entry, "timestamp")); err == nil {
		ev.CreatedAt = at
	}
	return ev, nil
}

func entryString(entry redis.XMessage, field string) string {
	s, _ := entry.Values[field].(string)
	return s
}

// Ack acknowledges processed entries.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, EventsStream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", EventsStream, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}
