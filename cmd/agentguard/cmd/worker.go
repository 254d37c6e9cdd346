package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentguard-ai/agentguard/internal/adapter/outbound/anthropic"
	"github.com/agentguard-ai/agentguard/internal/adapter/outbound/memory"
	"github.com/agentguard-ai/agentguard/internal/adapter/outbound/redisstream"
	"github.com/agentguard-ai/agentguard/internal/config"
	"github.com/agentguard-ai/agentguard/internal/service"
	"github.com/agentguard-ai/agentguard/internal/telemetry"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the enrichment worker sidecar",
	Long: `The worker consumes flagged events from the Redis stream, runs deep
triage on each one, and republishes the resulting insights. Requires
REDIS_URL; without ANTHROPIC_API_KEY every insight is a manual-review
fallback.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the enrichment worker")
		}
		logger := telemetry.NewLogger(cfg.LogLevel, cfg.JSONLogs)
		if cfg.AnthropicAPIKey == "" {
			logger.Warn("no anthropic api key configured, insights degrade to manual-review fallbacks")
		}

		consumer, err := redisstream.NewConsumer(cfg.RedisURL, redisstream.DefaultGroup, cfg.WorkerName, logger)
		if err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()

		publisher := redisstream.NewPublisher(cfg.RedisURL, logger)
		defer func() { _ = publisher.Close() }()

		enricher := anthropic.NewEnrichmentClient(cfg.AnthropicAPIKey, cfg.TriageModel, cfg.TriageTimeout, logger)
		insights := memory.NewInsightStore(cfg.InsightCapacity)

		worker := service.NewEnrichmentWorker(consumer, enricher, insights, publisher, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
