package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentguard-ai/agentguard/internal/adapter/inbound/httpapi"
	"github.com/agentguard-ai/agentguard/internal/config"
	"github.com/agentguard-ai/agentguard/internal/service"
)

var (
	serveGoal      string
	serveFramework string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the guard with its forensic read API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		guard, err := service.NewGuard(cfg, service.GuardOptions{
			AgentGoal: serveGoal,
			Framework: serveFramework,
		})
		if err != nil {
			return err
		}
		defer func() { _ = guard.Close() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server := httpapi.New(guard.Ledger(), guard.Insights(), guard, guard, guard.Registry(), guard.Logger())
		if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil && !isShutdown(err) {
			return err
		}
		guard.Logger().Info("shutting down")
		return nil
	},
}

func isShutdown(err error) bool {
	return err == nil || err == context.Canceled
}

func init() {
	serveCmd.Flags().StringVar(&serveGoal, "goal", "", "stated goal of the guarded agent")
	serveCmd.Flags().StringVar(&serveFramework, "framework", "api", "framework label recorded on events")
	rootCmd.AddCommand(serveCmd)
}
