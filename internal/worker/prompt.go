package worker

import (
	"fmt"
	"strings"

	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/pkg/models"
)

const recentObservationWindow = 5

// buildPrompt assembles a deterministic prompt from an outcome's intent and
// approach, the claimed task's intent and approach, a compacted summary of
// recent observations, and the capability set the task requires (spec
// §4.2 step 3). The exact wording is this package's own concern; the only
// contract spec.md imposes is determinism given the same inputs.
func buildPrompt(outcome *models.Outcome, task *models.Task, recentObs []*models.Observation, caps []*models.Capability) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Outcome\n%s\n", outcome.Intent.Summary)
	if outcome.Design.Text != "" {
		fmt.Fprintf(&b, "\n## Approach\n%s\n", outcome.Design.Text)
	}

	fmt.Fprintf(&b, "\n## Task\n%s\n", task.TaskIntent.Summary)
	if task.TaskApproach.Summary != "" {
		fmt.Fprintf(&b, "\n## Task approach\n%s\n", task.TaskApproach.Summary)
	}
	for _, note := range task.TaskApproach.Notes {
		fmt.Fprintf(&b, "- %s\n", note)
	}

	if len(caps) > 0 {
		b.WriteString("\n## Available capabilities\n")
		for _, c := range caps {
			fmt.Fprintf(&b, "- %s (%s): %s\n", models.CapabilityRef(c.Type, c.Name), c.Kind, c.Description)
		}
	}

	if summary := compactObservations(recentObs); summary != "" {
		fmt.Fprintf(&b, "\n## Recent progress\n%s\n", summary)
	}

	return b.String()
}

// compactObservations reduces the most recent observations for this task to
// a short summary line per iteration, never the raw LLM output (spec §4.2
// step 3: "compacted summary, not raw").
func compactObservations(obs []*models.Observation) string {
	if len(obs) == 0 {
		return ""
	}
	start := 0
	if len(obs) > recentObservationWindow {
		start = len(obs) - recentObservationWindow
	}
	var b strings.Builder
	for _, o := range obs[start:] {
		fmt.Fprintf(&b, "- iteration %d: alignment=%d quality=%s on_track=%t", o.Iteration, o.AlignmentScore, o.Quality, o.OnTrack)
		if len(o.Drift) > 0 {
			fmt.Fprintf(&b, " drift=%q", o.Drift[len(o.Drift)-1].Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// taskObservations filters a worker's observation history down to the ones
// for a specific task, in iteration order.
func taskObservations(db *store.DB, workerID, taskID string) ([]*models.Observation, error) {
	all, err := db.ListObservationsByWorker(workerID)
	if err != nil {
		return nil, err
	}
	var out []*models.Observation
	for _, o := range all {
		if o.TaskID == taskID {
			out = append(out, o)
		}
	}
	return out, nil
}

// requiredCapabilities resolves a task's required_capabilities refs into
// their Capability rows, skipping any that can't be found (claim already
// guarantees they exist and are ready by the time a task is claimable).
func requiredCapabilities(db *store.DB, task *models.Task) []*models.Capability {
	var out []*models.Capability
	for _, ref := range task.RequiredCapabilities {
		kind, name, ok := models.ParseCapabilityRef(ref)
		if !ok {
			continue
		}
		cap, err := db.GetCapabilityByRef(task.OutcomeID, kind, name)
		if err != nil {
			continue
		}
		out = append(out, cap)
	}
	return out
}
