package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phytolab/sage/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Display the effective configuration after merging defaults, the user
config and any project override.

Configuration is stored at ~/.config/sage/config.yaml
Project-specific overrides can be placed in .sage.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		displayConfig(cfg)
	},
}

// displayConfig prints all configuration values.
func displayConfig(cfg *config.Config) {
	fmt.Printf("coordinator.max_concurrent_tasks: %d\n", cfg.Coordinator.MaxConcurrentTasks)
	fmt.Printf("coordinator.shutdown_grace_period: %s\n", cfg.Coordinator.ShutdownGracePeriod)
	fmt.Printf("coordinator.snapshot_cache_size: %d\n", cfg.Coordinator.SnapshotCacheSize)
	fmt.Printf("coordinator.event_buffer_size: %d\n", cfg.Coordinator.EventBufferSize)
	fmt.Printf("coordinator.health_sweep_schedule: %s\n", cfg.Coordinator.HealthSweepSchedule)
	for workerType, wc := range cfg.Workers {
		fmt.Printf("workers.%s.max_concurrent: %d\n", workerType, wc.MaxConcurrent)
		fmt.Printf("workers.%s.timeout: %s\n", workerType, wc.Timeout)
		fmt.Printf("workers.%s.retry_attempts: %d\n", workerType, wc.RetryAttempts)
		fmt.Printf("workers.%s.retry_initial_delay: %s\n", workerType, wc.RetryInitialDelay)
	}
	fmt.Printf("http.listen_addr: %s\n", cfg.HTTP.ListenAddr)
	storePath := cfg.Store.Path
	if storePath == "" {
		storePath = "(persistence disabled)"
	}
	fmt.Printf("store.path: %s\n", storePath)
	templatesFile := cfg.Planner.TemplatesFile
	if templatesFile == "" {
		templatesFile = "(built-in templates)"
	}
	fmt.Printf("planner.templates_file: %s\n", templatesFile)
	fmt.Printf("planner.watch: %t\n", cfg.Planner.Watch)
	fmt.Printf("logging.level: %s\n", cfg.Logging.Level)
}
