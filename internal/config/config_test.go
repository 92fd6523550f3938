package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Coordinator.MaxConcurrentTasks != 4 {
		t.Errorf("expected default max_concurrent_tasks 4, got %d", cfg.Coordinator.MaxConcurrentTasks)
	}

	if cfg.Coordinator.ShutdownGracePeriod != 30*time.Second {
		t.Errorf("expected shutdown grace period 30s, got %v", cfg.Coordinator.ShutdownGracePeriod)
	}

	if cfg.Coordinator.SnapshotCacheSize != 512 {
		t.Errorf("expected snapshot cache size 512, got %d", cfg.Coordinator.SnapshotCacheSize)
	}

	if cfg.HTTP.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("expected listen addr 127.0.0.1:8080, got %q", cfg.HTTP.ListenAddr)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
coordinator:
  max_concurrent_tasks: 8
  health_sweep_schedule: "@every 30s"
workers:
  literature:
    max_concurrent: 3
    timeout: 45s
    retry_attempts: 2
    retry_initial_delay: 200ms
http:
  listen_addr: "0.0.0.0:9090"
store:
  path: /tmp/sage.db
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Coordinator.MaxConcurrentTasks != 8 {
		t.Errorf("expected max_concurrent_tasks 8, got %d", cfg.Coordinator.MaxConcurrentTasks)
	}

	if cfg.Coordinator.HealthSweepSchedule != "@every 30s" {
		t.Errorf("expected health sweep schedule '@every 30s', got %q", cfg.Coordinator.HealthSweepSchedule)
	}

	lit := cfg.Worker("literature")
	if lit.MaxConcurrent != 3 {
		t.Errorf("expected literature max_concurrent 3, got %d", lit.MaxConcurrent)
	}
	if lit.Timeout != 45*time.Second {
		t.Errorf("expected literature timeout 45s, got %v", lit.Timeout)
	}
	if lit.RetryAttempts != 2 {
		t.Errorf("expected literature retry_attempts 2, got %d", lit.RetryAttempts)
	}
	if lit.RetryInitialDelay != 200*time.Millisecond {
		t.Errorf("expected literature retry_initial_delay 200ms, got %v", lit.RetryInitialDelay)
	}

	if cfg.HTTP.ListenAddr != "0.0.0.0:9090" {
		t.Errorf("expected listen addr 0.0.0.0:9090, got %q", cfg.HTTP.ListenAddr)
	}

	if cfg.Store.Path != "/tmp/sage.db" {
		t.Errorf("expected store path /tmp/sage.db, got %q", cfg.Store.Path)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromPathDefaultsFillGaps(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("logging:\n  level: warn\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %q", cfg.Logging.Level)
	}
	if cfg.Coordinator.MaxConcurrentTasks != 4 {
		t.Errorf("expected default max_concurrent_tasks 4, got %d", cfg.Coordinator.MaxConcurrentTasks)
	}
	if cfg.HTTP.ListenAddr != "127.0.0.1:8080" {
		t.Errorf("expected default listen addr, got %q", cfg.HTTP.ListenAddr)
	}
}

func TestValidateRejectsNegativeValues(t *testing.T) {
	cfg := Default()
	cfg.Workers["literature"] = WorkerConfig{RetryAttempts: -1}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for negative retry_attempts")
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
