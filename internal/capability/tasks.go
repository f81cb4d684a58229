package capability

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/pkg/models"
)

// basePriority places capability tasks ahead of execution-phase work; lower
// values are more urgent (spec §3 Task field).
const basePriority = 0

// CreateTasks materializes one capability task per need, phase=capability,
// priority pre-execution. When parallel is false the tasks form a linear
// chain (each depends on the previous); otherwise they have no dependencies
// among themselves.
func CreateTasks(engine *taskengine.Engine, outcomeID string, needs []Need, parallel bool) ([]*models.Task, error) {
	if len(needs) == 0 {
		return nil, nil
	}

	tasks := make([]*models.Task, 0, len(needs))
	var previousID string
	for i, need := range needs {
		capType := need.Type
		id := uuid.NewString()
		t := &models.Task{
			ID:          id,
			OutcomeID:   outcomeID,
			Title:       fmt.Sprintf("Build %s", need.Ref()),
			Description: fmt.Sprintf("Create the %s capability %q so dependent execution tasks can claim it.", need.Type, need.Name),
			TaskIntent: models.TaskIntent{
				Summary: fmt.Sprintf("Produce a working %s capability named %q.", need.Type, need.Name),
			},
			Priority:       basePriority + i,
			MaxAttempts:    3,
			Phase:          models.TaskPhaseCapability,
			CapabilityType: &capType,
			Status:         models.TaskStatusPending,
		}
		if !parallel && previousID != "" {
			t.DependsOn = []string{previousID}
		}
		tasks = append(tasks, t)
		previousID = id
	}

	if err := engine.BatchCreate(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
