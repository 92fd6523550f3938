package main

import (
	"fmt"

	"github.com/phytolab/sage/internal/config"
	"github.com/phytolab/sage/internal/coordinator"
	"github.com/phytolab/sage/internal/logging"
	"github.com/phytolab/sage/internal/planner"
	"github.com/phytolab/sage/internal/store"
	"github.com/phytolab/sage/internal/worker"
	"github.com/phytolab/sage/pkg/models"
)

var configPath string

// loadConfig loads from --config when set, otherwise the usual search
// paths.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

// buildCoordinator wires the full engine from configuration: planner,
// worker registry, optional persistence and the coordinator itself. The
// returned cleanup closes the store.
func buildCoordinator(cfg *config.Config, logger logging.Logger) (*coordinator.Coordinator, *planner.Planner, func() error, error) {
	pl := planner.New(logger)
	if cfg.Planner.TemplatesFile != "" {
		if err := pl.LoadFile(cfg.Planner.TemplatesFile); err != nil {
			return nil, nil, nil, fmt.Errorf("loading workflow templates: %w", err)
		}
	}

	registry := worker.NewRegistry(logger)
	processors := []worker.Processor{
		worker.NewLiteratureProcessor(),
		worker.NewCompoundProcessor(),
		worker.NewCrossRefProcessor(),
	}
	for _, proc := range processors {
		wc := cfg.Worker(string(proc.Type()))
		rt := worker.NewRuntime(proc, worker.RuntimeConfig{
			MaxConcurrent:     wc.MaxConcurrent,
			Timeout:           wc.Timeout,
			RetryAttempts:     wc.RetryAttempts,
			RetryInitialDelay: wc.RetryInitialDelay,
		}, logger)
		if err := registry.Register(rt); err != nil {
			return nil, nil, nil, fmt.Errorf("registering %s worker: %w", proc.Type(), err)
		}
	}

	opts := []coordinator.Option{coordinator.WithLogger(logger)}
	cleanup := func() error { return nil }
	if cfg.Store.Path != "" {
		taskStore, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening task store: %w", err)
		}
		opts = append(opts, coordinator.WithStore(taskStore))
		cleanup = taskStore.Close
	}

	c, err := coordinator.New(coordinator.Config{
		MaxConcurrentTasks:  cfg.Coordinator.MaxConcurrentTasks,
		ShutdownGracePeriod: cfg.Coordinator.ShutdownGracePeriod,
		SnapshotCacheSize:   cfg.Coordinator.SnapshotCacheSize,
		EventBufferSize:     cfg.Coordinator.EventBufferSize,
		HealthSweepSchedule: cfg.Coordinator.HealthSweepSchedule,
	}, pl, registry, opts...)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return c, pl, cleanup, nil
}

// parsePriority maps the flag value onto a task priority, defaulting to
// medium.
func parsePriority(s string) (models.TaskPriority, error) {
	if s == "" {
		return models.PriorityMedium, nil
	}
	p := models.TaskPriority(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q (use low, medium, high or urgent)", s)
	}
	return p, nil
}
