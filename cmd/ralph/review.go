package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var reviewCriteriaOnly bool

var reviewCmd = &cobra.Command{
	Use:   "review <outcome-id>",
	Short: "Run a review cycle against an outcome",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		cycle, err := eng.RunReview(context.Background(), args[0], reviewCriteriaOnly)
		if err != nil {
			fail(err)
		}

		fmt.Printf("cycle %d: %d issue(s)\n", cycle.CycleIndex, cycle.IssuesFound)
		for _, f := range cycle.Findings {
			fmt.Printf("  criterion: %s -> %s\n", f.Criterion, f.Verdict)
		}
		for _, issue := range cycle.Issues {
			fmt.Printf("  issue(%s): %s\n", issue.Severity, issue.Text)
		}
		if cycle.IssuesFound == 0 {
			color.Green("clean cycle\n")
		}
	},
}

func init() {
	reviewCmd.Flags().BoolVar(&reviewCriteriaOnly, "criteria-only", false, "check acceptance criteria without generating remediation tasks")
}
