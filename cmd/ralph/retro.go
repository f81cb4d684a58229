package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var retroCmd = &cobra.Command{
	Use:   "retro",
	Short: "Run a retrospective and accept its proposals",
}

var retroRunCmd = &cobra.Command{
	Use:   "run <outcome-id>",
	Short: "Cluster resolved escalations and propose improvements",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		job, err := eng.RunRetro(context.Background(), args[0])
		if err != nil {
			fail(err)
		}

		fmt.Printf("job %s: %s\n", job.ID, job.Status)
		for _, p := range job.Result.Proposals {
			fmt.Printf("  %s: %s (%d task(s))\n", p.ID, p.Title, len(p.ProposedTasks))
		}
		if len(job.Result.Proposals) == 0 {
			color.Yellow("no proposals this run\n")
		}
	},
}

var retroAcceptCmd = &cobra.Command{
	Use:   "accept <job-id> <proposal-id>",
	Short: "Materialize an accepted proposal as a child outcome",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		child, err := eng.AcceptProposal(args[0], args[1])
		if err != nil {
			fail(err)
		}
		color.Green("created child outcome %s (%s)\n", child.Name, child.ID)
	},
}

func init() {
	retroCmd.AddCommand(retroRunCmd, retroAcceptCmd)
}
