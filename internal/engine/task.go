package engine

import (
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateTask validates and persists a single task.
func (e *Engine) CreateTask(t *models.Task) error {
	return e.tasks.Create(t)
}

// CreateTasks validates and persists a batch of tasks together, so
// subtasks or remediation tasks can reference each other's dependencies
// without tripping a false cycle error.
func (e *Engine) CreateTasks(tasks []*models.Task) error {
	return e.tasks.BatchCreate(tasks)
}

// UpdateTask persists changes to an existing task.
func (e *Engine) UpdateTask(t *models.Task) error {
	return e.tasks.Update(t)
}

// DeleteTask retires a task that has no dependents by marking it blocked;
// the task row is kept.
func (e *Engine) DeleteTask(taskID string) error {
	return e.tasks.Delete(taskID)
}

// ClaimTask atomically claims the next eligible task for outcomeID on
// behalf of workerID.
func (e *Engine) ClaimTask(outcomeID, workerID string) (*models.Task, error) {
	return e.tasks.Claim(outcomeID, workerID)
}

// CompleteTask marks a claimed task completed.
func (e *Engine) CompleteTask(taskID string) error {
	return e.tasks.Complete(taskID)
}

// FailTask marks a claimed task failed with reason.
func (e *Engine) FailTask(taskID, reason string) error {
	return e.tasks.Fail(taskID, reason)
}

// EnumerateTasks lists an outcome's tasks matching filter.
func (e *Engine) EnumerateTasks(outcomeID string, filter taskengine.Filter) ([]*models.Task, error) {
	return e.tasks.Enumerate(outcomeID, filter)
}
