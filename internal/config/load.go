package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (SAGE_* prefix)
// 2. Project config (.sage.yaml in current directory or parent)
// 3. User config (~/.config/sage/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SAGE")
	v.AutomaticEnv()
	v.BindEnv("http.listen_addr", "SAGE_LISTEN_ADDR")
	v.BindEnv("store.path", "SAGE_STORE_PATH")
	v.BindEnv("logging.level", "SAGE_LOG_LEVEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("coordinator.max_concurrent_tasks", 4)
	v.SetDefault("coordinator.shutdown_grace_period", "30s")
	v.SetDefault("coordinator.snapshot_cache_size", 512)
	v.SetDefault("coordinator.event_buffer_size", 100)
	v.SetDefault("coordinator.health_sweep_schedule", "@every 1m")

	v.SetDefault("http.listen_addr", "127.0.0.1:8080")

	v.SetDefault("store.path", "")

	v.SetDefault("planner.templates_file", "")
	v.SetDefault("planner.watch", false)

	v.SetDefault("logging.level", "info")
}
