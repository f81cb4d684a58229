// Package config handles configuration loading and management for the
// outcome orchestration engine. It supports XDG config paths, project-level
// overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Store      StoreConfig      `mapstructure:"store"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Tasks      TasksConfig      `mapstructure:"tasks"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Review     ReviewConfig     `mapstructure:"review"`
	Worktree   WorktreeConfig   `mapstructure:"worktree"`
}

// AnthropicConfig holds Anthropic API settings, used only when the LLM
// runner is configured to call the API directly instead of shelling out to
// a CLI sidecar.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
}

// StoreConfig controls where durable state is persisted.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RunnerConfig controls how the LLM sidecar is invoked.
type RunnerConfig struct {
	// Backend selects "process" (exec a CLI binary) or "api" (direct SDK call).
	Backend string `mapstructure:"backend"`
	// Binary is the CLI executable name when Backend == "process".
	Binary string `mapstructure:"binary"`
	// Model is the model identifier passed to the runner.
	Model string `mapstructure:"model"`
	// IterationTimeout bounds a single LLM invocation.
	IterationTimeout time.Duration `mapstructure:"iteration_timeout"`
	// MaxConcurrent bounds how many LLM invocations may run at once
	// process-wide (spec §5: "fixed per-process concurrency cap").
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// TasksConfig controls task engine defaults.
type TasksConfig struct {
	DefaultMaxAttempts int `mapstructure:"default_max_attempts"`
}

// EscalationConfig controls the escalation resolver.
type EscalationConfig struct {
	// AutoResolveThreshold is the minimum confidence for auto_resolve to
	// answer a pending escalation (spec §9 Open Question, default 0.8).
	AutoResolveThreshold float64 `mapstructure:"auto_resolve_threshold"`
}

// ReviewConfig controls the reviewer + convergence loop.
type ReviewConfig struct {
	// ConvergenceWindow is the number of consecutive zero-issue cycles
	// required before an outcome is marked achieved (spec default: 2).
	ConvergenceWindow int `mapstructure:"convergence_window"`
}

// WorktreeConfig controls the worktree/merge coordinator.
type WorktreeConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
//  1. Environment variables (prefix RALPH_, plus ANTHROPIC_API_KEY)
//  2. Project config (.ralph.yaml in current directory or a parent)
//  3. User config (~/.config/ralph/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	// Best-effort: populate process env from a local .env file, mirroring
	// the pack's convention of loading secrets via godotenv before viper
	// reads the environment.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

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

	v.SetEnvPrefix("RALPH")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (used in tests).
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

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file, if any.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Save writes cfg to the user config file, creating its directory if
// needed.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("store.path", cfg.Store.Path)
	v.Set("runner.backend", cfg.Runner.Backend)
	v.Set("runner.binary", cfg.Runner.Binary)
	v.Set("runner.model", cfg.Runner.Model)
	v.Set("runner.iteration_timeout", cfg.Runner.IterationTimeout.String())
	v.Set("runner.max_concurrent", cfg.Runner.MaxConcurrent)
	v.Set("tasks.default_max_attempts", cfg.Tasks.DefaultMaxAttempts)
	v.Set("escalation.auto_resolve_threshold", cfg.Escalation.AutoResolveThreshold)
	v.Set("review.convergence_window", cfg.Review.ConvergenceWindow)
	v.Set("worktree.base_dir", cfg.Worktree.BaseDir)

	return v.WriteConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("store.path", defaultStorePath())

	v.SetDefault("runner.backend", "process")
	v.SetDefault("runner.binary", "claude")
	v.SetDefault("runner.model", "")
	v.SetDefault("runner.iteration_timeout", "15m")
	v.SetDefault("runner.max_concurrent", 4)

	v.SetDefault("tasks.default_max_attempts", 3)

	v.SetDefault("escalation.auto_resolve_threshold", 0.8)

	v.SetDefault("review.convergence_window", 2)

	v.SetDefault("worktree.base_dir", defaultWorktreeBaseDir())
}

func defaultStorePath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "ralph", "ralph.db")
}

func defaultWorktreeBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".cache", "ralph", "worktrees")
	}
	return filepath.Join(home, ".cache", "ralph", "worktrees")
}

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ralph")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "ralph")
	}
	return filepath.Join(home, ".config", "ralph")
}

// findProjectConfig searches for .ralph.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".ralph.yaml")
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
