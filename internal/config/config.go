// Package config handles configuration loading and management for sage.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration for sage.
type Config struct {
	Coordinator CoordinatorConfig       `mapstructure:"coordinator"`
	Workers     map[string]WorkerConfig `mapstructure:"workers"`
	HTTP        HTTPConfig              `mapstructure:"http"`
	Store       StoreConfig             `mapstructure:"store"`
	Planner     PlannerConfig           `mapstructure:"planner"`
	Logging     LoggingConfig           `mapstructure:"logging"`
}

// CoordinatorConfig bounds the scheduling engine.
type CoordinatorConfig struct {
	// MaxConcurrentTasks is the global ceiling on in-progress tasks.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks"`
	// ShutdownGracePeriod bounds the wait for in-flight tasks at shutdown.
	ShutdownGracePeriod time.Duration `mapstructure:"shutdown_grace_period"`
	// SnapshotCacheSize bounds in-memory retention of finished tasks.
	SnapshotCacheSize int `mapstructure:"snapshot_cache_size"`
	// EventBufferSize sizes the lifecycle event channel.
	EventBufferSize int `mapstructure:"event_buffer_size"`
	// HealthSweepSchedule is a cron spec for the periodic worker health
	// sweep. Empty disables the sweep.
	HealthSweepSchedule string `mapstructure:"health_sweep_schedule"`
}

// WorkerConfig holds the execution policy for one worker type.
type WorkerConfig struct {
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	// ListenAddr is the host:port the API binds to.
	ListenAddr string `mapstructure:"listen_addr"`
}

// StoreConfig holds durable task storage settings.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `mapstructure:"path"`
}

// PlannerConfig holds workflow template settings.
type PlannerConfig struct {
	// TemplatesFile overrides the built-in workflow templates.
	TemplatesFile string `mapstructure:"templates_file"`
	// Watch reloads the templates file on change.
	Watch bool `mapstructure:"watch"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			MaxConcurrentTasks:  4,
			ShutdownGracePeriod: 30 * time.Second,
			SnapshotCacheSize:   512,
			EventBufferSize:     100,
			HealthSweepSchedule: "@every 1m",
		},
		Workers: map[string]WorkerConfig{},
		HTTP: HTTPConfig{
			ListenAddr: "127.0.0.1:8080",
		},
		Store: StoreConfig{
			Path: "",
		},
		Planner: PlannerConfig{
			TemplatesFile: "",
			Watch:         false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Worker returns the execution policy for the given worker type, falling
// back to zero values (the runtime fills its own defaults).
func (c *Config) Worker(workerType string) WorkerConfig {
	return c.Workers[workerType]
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// getUserConfigDir returns the XDG config directory for sage.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "sage")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "sage")
	}
	return filepath.Join(home, ".config", "sage")
}

// findProjectConfig searches for .sage.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".sage.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Coordinator.MaxConcurrentTasks < 0 {
		return fmt.Errorf("coordinator.max_concurrent_tasks must not be negative")
	}
	for workerType, wc := range c.Workers {
		if wc.MaxConcurrent < 0 {
			return fmt.Errorf("workers.%s.max_concurrent must not be negative", workerType)
		}
		if wc.RetryAttempts < 0 {
			return fmt.Errorf("workers.%s.retry_attempts must not be negative", workerType)
		}
	}
	return nil
}
