package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentguard-ai/agentguard/internal/domain/enrichment"
)

// fetchBackoff paces retries after a transport error so a Redis outage
// does not spin the loop.
const fetchBackoff = 2 * time.Second

// EnrichmentWorker consumes flagged events from the stream, triages each
// one, stores the insight, and republishes it on the insights stream.
type EnrichmentWorker struct {
	source    enrichment.EventSource
	enricher  enrichment.Client
	insights  enrichment.Store
	publisher enrichment.InsightPublisher
	logger    *slog.Logger
}

// NewEnrichmentWorker builds a worker. Insights and publisher may be nil;
// triage results are then only logged.
func NewEnrichmentWorker(source enrichment.EventSource, enricher enrichment.Client, insights enrichment.Store, publisher enrichment.InsightPublisher, logger *slog.Logger) *EnrichmentWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichmentWorker{
		source:    source,
		enricher:  enricher,
		insights:  insights,
		publisher: publisher,
		logger:    logger,
	}
}

// Run consumes until ctx is cancelled. It returns the cause of a fatal
// startup failure, otherwise ctx.Err().
func (w *EnrichmentWorker) Run(ctx context.Context) error {
	if err := w.source.EnsureGroup(ctx); err != nil {
		return err
	}
	w.logger.Info("enrichment worker started")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		messages, err := w.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn("stream fetch failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchBackoff):
			}
			continue
		}
		for _, msg := range messages {
			w.process(ctx, msg)
		}
	}
}

// process triages one event. A failed triage leaves the entry
// unacknowledged so another consumer, or this one after redelivery,
// can retry it.
func (w *EnrichmentWorker) process(ctx context.Context, msg enrichment.StreamMessage) {
	insight, err := w.enricher.Triage(ctx, msg.Event)
	if err != nil {
		w.logger.Warn("triage failed, leaving entry pending", "event_id", msg.Event.ID, "entry_id", msg.ID, "error", err)
		return
	}

	if w.insights != nil {
		w.insights.Put(insight)
	}
	if w.publisher != nil && w.publisher.Enabled() {
		if err := w.publisher.PublishInsight(ctx, insight); err != nil {
			w.logger.Warn("insight publish failed", "event_id", insight.EventID, "error", err)
		}
	}
	if err := w.source.Ack(ctx, msg.ID); err != nil {
		w.logger.Warn("stream ack failed", "entry_id", msg.ID, "error", err)
	}

	w.logger.Info("event triaged",
		"event_id", insight.EventID,
		"attack_pattern", string(insight.AttackPattern),
		"severity", string(insight.Severity),
		"confidence", insight.Confidence)
}
