package capability

import (
	"time"

	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/pkg/models"
)

// Planner ties need-extraction, task creation, and gating recomputation
// together for a single store (spec §4.5).
type Planner struct {
	store  *store.DB
	engine *taskengine.Engine
}

// NewPlanner returns a Planner backed by db, using engine to create
// capability tasks.
func NewPlanner(db *store.DB, engine *taskengine.Engine) *Planner {
	return &Planner{store: db, engine: engine}
}

// Plan runs detect_new against outcome's current approach text and existing
// capabilities, materializes capability tasks for anything new, and flips
// capability_ready to building if it produced any tasks. Returns the needs
// it acted on. An empty result means nothing new was detected; in that case
// a not_started outcome is flipped to ready and any other readiness is left
// unchanged.
func (p *Planner) Plan(outcome *models.Outcome, parallel bool) ([]Need, error) {
	existing, err := p.store.ListCapabilitiesByOutcome(outcome.ID)
	if err != nil {
		return nil, err
	}

	needs := DetectNew(outcome.Design.Text, existing)
	if len(needs) == 0 {
		// Nothing to build: a freshly-planned outcome with no detected
		// needs is trivially capability-ready (spec §8 scenario 1).
		if outcome.CapabilityReady == models.CapabilityNotStarted {
			outcome.CapabilityReady = models.CapabilityReady
			outcome.ModifiedAt = time.Now()
			if err := p.store.UpdateOutcome(outcome); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if _, err := CreateTasks(p.engine, outcome.ID, needs, parallel); err != nil {
		return nil, err
	}

	outcome.CapabilityReady = models.CapabilityBuilding
	outcome.ModifiedAt = time.Now()
	if err := p.store.UpdateOutcome(outcome); err != nil {
		return nil, err
	}
	return needs, nil
}

// Recompute checks whether every capability task for outcomeID has
// completed and, if so, atomically flips outcome.CapabilityReady to ready
// (spec §4.5 Gating). Idempotent: calling it again once ready is a no-op.
// Returns whether the flip happened.
func Recompute(db *store.DB, outcome *models.Outcome) (bool, error) {
	if outcome.CapabilityReady == models.CapabilityReady {
		return false, nil
	}

	tasks, err := db.ListTasksByOutcome(outcome.ID)
	if err != nil {
		return false, err
	}

	sawCapabilityTask := false
	for _, t := range tasks {
		if t.Phase != models.TaskPhaseCapability {
			continue
		}
		sawCapabilityTask = true
		if t.Status != models.TaskStatusCompleted {
			return false, nil
		}
	}
	if !sawCapabilityTask {
		return false, nil
	}

	outcome.CapabilityReady = models.CapabilityReady
	outcome.ModifiedAt = time.Now()
	if err := db.UpdateOutcome(outcome); err != nil {
		return false, err
	}
	return true, nil
}
