package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Runner.Backend != "process" {
		t.Errorf("expected default runner backend 'process', got %q", cfg.Runner.Backend)
	}

	if cfg.Runner.Binary != "claude" {
		t.Errorf("expected default runner binary 'claude', got %q", cfg.Runner.Binary)
	}

	if cfg.Runner.IterationTimeout != 15*time.Minute {
		t.Errorf("expected iteration timeout 15m, got %v", cfg.Runner.IterationTimeout)
	}

	if cfg.Runner.MaxConcurrent != 4 {
		t.Errorf("expected max_concurrent 4, got %d", cfg.Runner.MaxConcurrent)
	}

	if cfg.Tasks.DefaultMaxAttempts != 3 {
		t.Errorf("expected default_max_attempts 3, got %d", cfg.Tasks.DefaultMaxAttempts)
	}

	if cfg.Escalation.AutoResolveThreshold != 0.8 {
		t.Errorf("expected auto_resolve_threshold 0.8, got %v", cfg.Escalation.AutoResolveThreshold)
	}

	if cfg.Review.ConvergenceWindow != 2 {
		t.Errorf("expected convergence_window 2, got %d", cfg.Review.ConvergenceWindow)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
runner:
  backend: process
  binary: claude
  model: test-model
  iteration_timeout: 5m
  max_concurrent: 2
tasks:
  default_max_attempts: 5
escalation:
  auto_resolve_threshold: 0.9
review:
  convergence_window: 3
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.Runner.Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", cfg.Runner.Model)
	}

	if cfg.Runner.IterationTimeout != 5*time.Minute {
		t.Errorf("expected iteration timeout 5m, got %v", cfg.Runner.IterationTimeout)
	}

	if cfg.Tasks.DefaultMaxAttempts != 5 {
		t.Errorf("expected default_max_attempts 5, got %d", cfg.Tasks.DefaultMaxAttempts)
	}

	if cfg.Escalation.AutoResolveThreshold != 0.9 {
		t.Errorf("expected auto_resolve_threshold 0.9, got %v", cfg.Escalation.AutoResolveThreshold)
	}

	if cfg.Review.ConvergenceWindow != 3 {
		t.Errorf("expected convergence_window 3, got %d", cfg.Review.ConvergenceWindow)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/ralph"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestFindProjectConfigNone(t *testing.T) {
	tmpDir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(tmpDir)

	if got := findProjectConfig(); got != "" {
		t.Errorf("expected no project config, got %q", got)
	}
}
