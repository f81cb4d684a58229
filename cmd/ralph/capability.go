package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marcusdietz/ralph/pkg/models"
)

var capabilityParallel bool

var capabilityCmd = &cobra.Command{
	Use:   "capability",
	Short: "Plan, scan, list, and create an outcome's capabilities",
}

var capabilityPlanCmd = &cobra.Command{
	Use:   "plan <outcome-id>",
	Short: "Detect new capability needs from an outcome's design and queue capability tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		outcome, err := eng.GetOutcome(args[0])
		if err != nil {
			fail(err)
		}
		needs, err := eng.PlanCapabilities(outcome, capabilityParallel)
		if err != nil {
			fail(err)
		}
		if len(needs) == 0 {
			color.Green("no new capability needs; capability_ready is %s\n", outcome.CapabilityReady)
			return
		}
		for _, n := range needs {
			fmt.Printf("  %s\n", n.Ref())
		}
	},
}

var capabilityScanCmd = &cobra.Command{
	Use:   "scan <outcome-id>",
	Short: "Refresh an outcome's skill and tool capabilities from its workspace",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		outcome, err := eng.GetOutcome(args[0])
		if err != nil {
			fail(err)
		}
		skills, err := eng.ScanSkills(outcome)
		if err != nil {
			fail(err)
		}
		tools, err := eng.ScanTools(outcome)
		if err != nil {
			fail(err)
		}
		color.Green("scanned %d skill(s), %d tool(s)\n", len(skills), len(tools))
	},
}

var capabilityCreateFileCmd = &cobra.Command{
	Use:   "create-file <outcome-id> <skill|tool> <name> <content-path>",
	Short: "Write a skill or tool file directly into an outcome's workspace and register it",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		capType := models.CapabilityType(args[1])
		content, err := os.ReadFile(args[3])
		if err != nil {
			fail(err)
		}

		outcome, err := eng.GetOutcome(args[0])
		if err != nil {
			fail(err)
		}
		c, err := eng.CreateCapabilityFile(outcome, capType, args[2], content)
		if err != nil {
			fail(err)
		}
		color.Green("wrote %s capability %s at %s\n", c.Type, c.Name, c.Path)
	},
}

var capabilityListCmd = &cobra.Command{
	Use:   "list <outcome-id>",
	Short: "List an outcome's capabilities",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		caps, err := eng.ListCapabilities(args[0])
		if err != nil {
			fail(err)
		}
		for _, c := range caps {
			fmt.Printf("%s  %-10s  %-10s  %s\n", c.ID, c.Type, c.Status, c.Name)
		}
	},
}

func init() {
	capabilityPlanCmd.Flags().BoolVar(&capabilityParallel, "parallel", false, "queue capability tasks to run in parallel rather than as a linear chain")
	capabilityCmd.AddCommand(capabilityPlanCmd, capabilityScanCmd, capabilityListCmd, capabilityCreateFileCmd)
}
