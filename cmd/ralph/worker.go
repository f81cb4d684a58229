package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/statusview"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start, pause, resume, and stop workers",
}

var workerStartCmd = &cobra.Command{
	Use:   "start <outcome-id> <name>",
	Short: "Start a worker against an outcome and wait for it to finalize",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		id, err := eng.StartWorker(args[0], args[1])
		if err != nil {
			fail(err)
		}
		fmt.Printf("started worker %s\n", id)

		if err := eng.Wait(id); err != nil {
			fail(err)
		}
		w, err := eng.GetWorker(id)
		if err != nil {
			fail(err)
		}
		color.Green("worker %s finished: %s\n", id, w.Status)
	},
}

var workerListCmd = &cobra.Command{
	Use:   "list <outcome-id>",
	Short: "List an outcome's workers",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		workers, err := eng.ListWorkers(args[0])
		if err != nil {
			fail(err)
		}
		for _, w := range workers {
			fmt.Printf("%s  %-10s  iter=%-4d  %s\n", w.ID, w.Status, w.Iteration, w.Name)
		}
	},
}

var workerStopCmd = &cobra.Command{
	Use:   "stop <worker-id> [reason]",
	Short: "Stop a running worker",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		reason := "stopped by operator"
		if len(args) == 2 {
			reason = args[1]
		}
		if err := eng.StopWorker(args[0], reason); err != nil {
			fail(err)
		}
		color.Green("stop requested for %s\n", args[0])
	},
}

var workerPauseCmd = &cobra.Command{
	Use:   "pause <worker-id>",
	Short: "Pause a running worker",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		if err := eng.PauseWorker(args[0]); err != nil {
			fail(err)
		}
		color.Green("pause requested for %s\n", args[0])
	},
}

var workerStopAllCmd = &cobra.Command{
	Use:   "stop-all <outcome-id> [reason]",
	Short: "Stop every live worker running against an outcome",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		reason := "stopped by operator"
		if len(args) == 2 {
			reason = args[1]
		}
		n, err := eng.StopAllForOutcome(args[0], reason)
		if err != nil {
			fail(err)
		}
		color.Green("stop requested for %d worker(s)\n", n)
	},
}

var workerLiveStatusCmd = &cobra.Command{
	Use:   "live-status <worker-id>",
	Short: "Print a worker's current iteration, task, and last observation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		w, err := eng.GetWorker(args[0])
		if err != nil {
			fail(err)
		}

		status := statusview.WorkerStatus{Worker: w}
		if w.CurrentTaskID != "" {
			if task, err := eng.Store().GetTask(w.CurrentTaskID); err == nil {
				status.TaskTitle = task.Title
			} else if !corerr.Is(err, corerr.NotFound) {
				fail(err)
			}
		}
		if w.LastObservationID != "" {
			if obs, err := eng.Store().GetObservation(w.LastObservationID); err == nil {
				status.LastObservation = obs
			} else if !corerr.Is(err, corerr.NotFound) {
				fail(err)
			}
		}

		fmt.Println(statusview.Render(status))
	},
}

var workerResumeCmd = &cobra.Command{
	Use:   "resume <worker-id>",
	Short: "Resume a paused worker",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, closeFn, err := openEngine()
		if err != nil {
			fail(err)
		}
		defer closeFn()

		if err := eng.ResumeWorkerLoop(args[0]); err != nil {
			fail(err)
		}
		color.Green("resumed %s\n", args[0])
	},
}

func init() {
	workerCmd.AddCommand(workerStartCmd, workerListCmd, workerStopCmd, workerStopAllCmd,
		workerPauseCmd, workerResumeCmd, workerLiveStatusCmd)
}
