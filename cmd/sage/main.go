package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sage",
	Short: "Herbal research task orchestrator",
	Long: `Sage coordinates specialized research workers over herbal compound
queries. A submitted task is planned into a workflow of worker steps
(literature search, compound analysis, cross-referencing), executed with
bounded concurrency, and synthesized into a single ranked result with
conflict detection.

Core capabilities:
- Priority task queue with category-driven workflow planning
- Parallel step execution with dependency ordering
- Per-worker timeouts, retries and concurrency limits
- Evidence synthesis with conflict detection and reliability scoring`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
