package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marcusdietz/ralph/internal/engine"
)

var outcomeCmd = &cobra.Command{
	Use:   "outcome",
	Short: "Create, list, and archive outcomes",
}

var outcomeParentID string

var outcomeCreateCmd = &cobra.Command{
	Use:   "create <name> <brief>",
	Short: "Create a new outcome",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		o, err := eng.CreateOutcome(args[0], args[1], outcomeParentID)
		if err != nil {
			fail(err)
		}
		color.Green("created outcome %s (%s)\n", o.Name, o.ID)
	},
}

var outcomeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every outcome",
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		outcomes, err := eng.ListOutcomes()
		if err != nil {
			fail(err)
		}
		for _, o := range outcomes {
			fmt.Printf("%s  %-10s  %-16s  %s\n", o.ID, o.Status, o.CapabilityReady, o.Name)
		}
	},
}

var outcomeArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive an outcome",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		if err := eng.Archive(args[0]); err != nil {
			fail(err)
		}
		color.Green("archived %s\n", args[0])
	},
}

var outcomeTreeCmd = &cobra.Command{
	Use:   "tree [id]",
	Short: "Print the outcome forest, or the subtree rooted at id",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		rootID := ""
		if len(args) == 1 {
			rootID = args[0]
		}
		roots, err := eng.Tree(rootID)
		if err != nil {
			fail(err)
		}
		for _, n := range roots {
			printOutcomeNode(n, 0)
		}
	},
}

func printOutcomeNode(n *engine.OutcomeNode, depth int) {
	fmt.Printf("%s%s  %-10s  %s\n", strings.Repeat("  ", depth), n.Outcome.ID, n.Outcome.Status, n.Outcome.Name)
	for _, c := range n.Children {
		printOutcomeNode(c, depth+1)
	}
}

var outcomeIntentOptimizeCmd = &cobra.Command{
	Use:   "intent-optimize <id> <free-text>",
	Short: "Replace an outcome's structured intent from free text",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		o, err := eng.IntentOptimize(args[0], args[1])
		if err != nil {
			fail(err)
		}
		color.Green("intent updated: %s\n", o.Intent.Summary)
	},
}

var outcomeApproachOptimizeCmd = &cobra.Command{
	Use:   "approach-optimize <id> <free-text>",
	Short: "Append a new design-doc version from free text",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		o, err := eng.ApproachOptimize(args[0], args[1])
		if err != nil {
			fail(err)
		}
		color.Green("design doc now at version %d\n", o.Design.Version)
	},
}

func init() {
	outcomeCreateCmd.Flags().StringVar(&outcomeParentID, "parent", "", "parent outcome id")
	outcomeCmd.AddCommand(outcomeCreateCmd, outcomeListCmd, outcomeArchiveCmd,
		outcomeTreeCmd, outcomeIntentOptimizeCmd, outcomeApproachOptimizeCmd)
}
