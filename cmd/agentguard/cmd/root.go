// Package cmd implements the agentguard CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentguard",
	Short: "Runtime security guardrail for autonomous AI agents",
	Long: `agentguard intercepts agent tool calls, classifies their risk, enforces
deterministic policy, and records every decision to a forensic ledger.

Configuration is environment-driven: AGENTGUARD_POLICY_PATH,
AGENTGUARD_LEDGER_PATH, ANTHROPIC_API_KEY, REDIS_URL, and friends.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
