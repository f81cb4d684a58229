package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marcusdietz/ralph/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify ralph configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/ralph/config.yaml
Project-specific overrides can be placed in .ralph.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fail(fmt.Errorf("loading config: %w", err))
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("store.path: %s\n", cfg.Store.Path)
	fmt.Printf("runner.backend: %s\n", cfg.Runner.Backend)
	fmt.Printf("runner.binary: %s\n", cfg.Runner.Binary)
	fmt.Printf("runner.model: %s\n", cfg.Runner.Model)
	fmt.Printf("runner.iteration_timeout: %s\n", cfg.Runner.IterationTimeout)
	fmt.Printf("runner.max_concurrent: %d\n", cfg.Runner.MaxConcurrent)
	fmt.Printf("tasks.default_max_attempts: %d\n", cfg.Tasks.DefaultMaxAttempts)
	fmt.Printf("escalation.auto_resolve_threshold: %v\n", cfg.Escalation.AutoResolveThreshold)
	fmt.Printf("review.convergence_window: %d\n", cfg.Review.ConvergenceWindow)
	fmt.Printf("worktree.base_dir: %s\n", cfg.Worktree.BaseDir)
}

func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fail(err)
	}
	fmt.Println(value)
}

func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fail(err)
	}
	if err := config.Save(cfg); err != nil {
		fail(fmt.Errorf("saving config: %w", err))
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "store.path":
		return cfg.Store.Path, nil
	case "runner.backend":
		return cfg.Runner.Backend, nil
	case "runner.binary":
		return cfg.Runner.Binary, nil
	case "runner.model":
		return cfg.Runner.Model, nil
	case "runner.iteration_timeout":
		return cfg.Runner.IterationTimeout.String(), nil
	case "runner.max_concurrent":
		return strconv.Itoa(cfg.Runner.MaxConcurrent), nil
	case "tasks.default_max_attempts":
		return strconv.Itoa(cfg.Tasks.DefaultMaxAttempts), nil
	case "escalation.auto_resolve_threshold":
		return strconv.FormatFloat(cfg.Escalation.AutoResolveThreshold, 'f', -1, 64), nil
	case "review.convergence_window":
		return strconv.Itoa(cfg.Review.ConvergenceWindow), nil
	case "worktree.base_dir":
		return cfg.Worktree.BaseDir, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "store.path":
		cfg.Store.Path = value
	case "runner.backend":
		cfg.Runner.Backend = value
	case "runner.binary":
		cfg.Runner.Binary = value
	case "runner.model":
		cfg.Runner.Model = value
	case "runner.iteration_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for iteration_timeout: %w", err)
		}
		cfg.Runner.IterationTimeout = d
	case "runner.max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrent: %w", err)
		}
		cfg.Runner.MaxConcurrent = n
	case "tasks.default_max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for default_max_attempts: %w", err)
		}
		cfg.Tasks.DefaultMaxAttempts = n
	case "escalation.auto_resolve_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for auto_resolve_threshold: %w", err)
		}
		cfg.Escalation.AutoResolveThreshold = f
	case "review.convergence_window":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for convergence_window: %w", err)
		}
		cfg.Review.ConvergenceWindow = n
	case "worktree.base_dir":
		cfg.Worktree.BaseDir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
