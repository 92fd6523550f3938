package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/phytolab/sage/internal/api"
	"github.com/phytolab/sage/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the research coordinator as an HTTP service",
	Long: `Start the coordinator, register the research workers and expose the
task API over HTTP.

Endpoints:
  POST /api/v1/tasks      submit a research task
  GET  /api/v1/tasks      list active tasks
  GET  /api/v1/tasks/:id  task status and results
  GET  /api/v1/workers    worker health and metrics
  GET  /healthz           liveness probe
  GET  /metrics           Prometheus metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to a config file (overrides the default search)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), "sage")

	coord, pl, cleanup, err := buildCoordinator(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Planner.TemplatesFile != "" && cfg.Planner.Watch {
		// Watch failures are not fatal; the last good templates keep
		// working.
		if err := pl.Watch(ctx, cfg.Planner.TemplatesFile); err != nil {
			logger.Warn("template watch unavailable: %v", err)
		}
	}

	if err := coord.Start(); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}

	// Render lifecycle events into the log. The channel is closed by
	// coordinator shutdown.
	eventLogger := logger.WithComponent("events")
	go func() {
		for event := range coord.Events() {
			if event.StepID != "" {
				eventLogger.Debug("%s task=%s step=%s worker=%s %s",
					event.Type, event.TaskID, event.StepID, event.WorkerType, event.Message)
				continue
			}
			eventLogger.Info("%s task=%s %s", event.Type, event.TaskID, event.Message)
		}
	}()

	server := api.NewServer(coord, api.ServerConfig{ListenAddr: cfg.HTTP.ListenAddr}, logger.WithComponent("api"))
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "api server error: %v\n", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api shutdown: %v", err)
	}
	return coord.Shutdown()
}
