package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var escalationCmd = &cobra.Command{
	Use:   "escalation",
	Short: "List, answer, and dismiss escalations",
}

var escalationListCmd = &cobra.Command{
	Use:   "list <outcome-id>",
	Short: "List an outcome's pending escalations",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		pending, err := eng.ListPendingEscalations(args[0])
		if err != nil {
			fail(err)
		}
		for _, esc := range pending {
			fmt.Printf("%s  [%s]  %s\n", esc.ID, esc.TriggerType, esc.Question.Text)
			for _, opt := range esc.Question.Options {
				fmt.Printf("    %s: %s\n", opt.ID, opt.Text)
			}
		}
	},
}

var escalationAnswerCmd = &cobra.Command{
	Use:   "answer <escalation-id> <option-id> [context]",
	Short: "Answer a pending escalation",
	Args:  cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		additional := ""
		if len(args) == 3 {
			additional = args[2]
		}
		if err := eng.AnswerEscalation(args[0], args[1], additional); err != nil {
			fail(err)
		}
		color.Green("answered %s\n", args[0])
	},
}

var escalationDismissCmd = &cobra.Command{
	Use:   "dismiss <escalation-id> <reason>",
	Short: "Dismiss a pending escalation without answering it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		if err := eng.DismissEscalation(args[0], args[1]); err != nil {
			fail(err)
		}
		color.Green("dismissed %s\n", args[0])
	},
}

var escalationAutoResolveCmd = &cobra.Command{
	Use:   "auto-resolve <outcome-id>",
	Short: "Answer every pending escalation whose best match against history clears the confidence threshold",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		result, err := eng.AutoResolveEscalations(args[0])
		if err != nil {
			fail(err)
		}
		fmt.Printf("resolved %d, deferred %d\n", result.Resolved, result.Deferred)
	},
}

func init() {
	escalationCmd.AddCommand(escalationListCmd, escalationAnswerCmd, escalationDismissCmd, escalationAutoResolveCmd)
}
