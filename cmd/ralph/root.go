package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcusdietz/ralph/internal/config"
	"github.com/marcusdietz/ralph/internal/engine"
	"github.com/marcusdietz/ralph/internal/llmrunner"
	"github.com/marcusdietz/ralph/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Outcome orchestration engine",
	Long: `ralph drives outcomes to completion by decomposing intent into tasks
and running LLM-backed workers against them until the reviewer's
convergence window closes clean.

Available commands:
  outcome     Create, list, and archive outcomes
  task        Create and list tasks
  capability  Plan, scan, list, and create an outcome's capabilities
  worker      Start, pause, resume, and stop workers
  escalation  List, answer, and dismiss escalations
  review      Run a review cycle against an outcome
  retro       Run a retrospective and accept its proposals
  config      View or modify configuration

Use "ralph [command] --help" for more information about a command.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version()
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(capabilityCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(escalationCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(retroCmd)
}

// openEngine loads configuration, opens the durable store, and wires an
// engine.Engine with a pooled runner factory built from that configuration.
// Callers must call the returned close func before exiting.
func openEngine() (*engine.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrating store: %w", err)
	}

	apiKey, err := config.GetAPIKey(cfg)
	if err != nil && cfg.Runner.Backend == string(llmrunner.BackendAPI) && !cfg.Anthropic.UseAWSBedrock {
		db.Close()
		return nil, nil, fmt.Errorf("resolving API key: %w", err)
	}

	factory := llmrunner.NewConfiguredFactory(llmrunner.Config{
		Backend:       llmrunner.Backend(cfg.Runner.Backend),
		ProcessBinary: cfg.Runner.Binary,
		APIModel:      cfg.Runner.Model,
		APIKey:        apiKey,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
	})
	pool := llmrunner.NewPool(factory, int64(cfg.Runner.MaxConcurrent))

	eng := engine.New(db, pool, engine.Config{
		IterationTimeout:    cfg.Runner.IterationTimeout,
		WorktreeBaseDir:     cfg.Worktree.BaseDir,
		EscalationThreshold: cfg.Escalation.AutoResolveThreshold,
	})

	closeFn := func() {
		eng.Close()
		db.Close()
	}
	return eng, closeFn, nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
