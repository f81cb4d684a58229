package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and list tasks",
}

var taskStatusFilter string

var taskCreateCmd = &cobra.Command{
	Use:   "create <outcome-id> <title>",
	Short: "Create a pending execution task under an outcome",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		t := &models.Task{
			ID:        uuid.NewString(),
			OutcomeID: args[0],
			Title:     args[1],
			Phase:     models.TaskPhaseExecution,
			CreatedAt: time.Now(),
		}
		if err := eng.CreateTask(t); err != nil {
			fail(err)
		}
		color.Green("created task %s\n", t.ID)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list <outcome-id>",
	Short: "List an outcome's tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		filter := taskengine.Filter{Status: models.TaskStatus(taskStatusFilter)}
		tasks, err := eng.EnumerateTasks(args[0], filter)
		if err != nil {
			fail(err)
		}
		for _, t := range tasks {
			fmt.Printf("%s  %-22s  %-10s  %s\n", t.ID, t.Status, t.Phase, t.Title)
		}
	},
}

func init() {
	taskListCmd.Flags().StringVar(&taskStatusFilter, "status", "", "filter by task status")
	taskCmd.AddCommand(taskCreateCmd, taskListCmd)
}
