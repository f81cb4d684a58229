// Package taskengine implements task CRUD, dependency validation, and the
// claim algorithm (spec §4.1) atop the durable store.
package taskengine

import (
	"time"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/pkg/models"
)

// Engine exposes task lifecycle operations for one store.
type Engine struct {
	store *store.DB
}

// New returns an Engine backed by db.
func New(db *store.DB) *Engine {
	return &Engine{store: db}
}

// Create validates and inserts a new task.
func (e *Engine) Create(t *models.Task) error {
	if err := e.validateDependencies(t); err != nil {
		return err
	}
	now := time.Now()
	t.CreatedAt = now
	t.ModifiedAt = now
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	return e.store.CreateTask(t)
}

// BatchCreate validates the whole batch together (so later tasks may
// depend on earlier ones in the same call) before persisting any of them.
func (e *Engine) BatchCreate(tasks []*models.Task) error {
	existing, err := e.outcomeTasks(tasksOutcomeID(tasks))
	if err != nil {
		return err
	}
	all := append(append([]*models.Task{}, existing...), tasks...)

	graph := NewDependencyGraph()
	if err := graph.Build(all); err != nil {
		return err
	}

	now := time.Now()
	for _, t := range tasks {
		t.CreatedAt = now
		t.ModifiedAt = now
		if t.Status == "" {
			t.Status = models.TaskStatusPending
		}
		if err := e.store.CreateTask(t); err != nil {
			return err
		}
	}
	return nil
}

func tasksOutcomeID(tasks []*models.Task) string {
	if len(tasks) == 0 {
		return ""
	}
	return tasks[0].OutcomeID
}

// Update validates and persists changes to an existing task.
func (e *Engine) Update(t *models.Task) error {
	if err := e.validateDependencies(t); err != nil {
		return err
	}
	t.ModifiedAt = time.Now()
	return e.store.UpdateTask(t)
}

// Delete retires a task by marking it blocked, so it is never claimed
// again; the row itself is kept. It refuses with a conflict error while
// other tasks depend on the task.
func (e *Engine) Delete(taskID string) error {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}
	siblings, err := e.outcomeTasks(task.OutcomeID)
	if err != nil {
		return err
	}
	graph := NewDependencyGraph()
	if err := graph.Build(siblings); err != nil {
		return err
	}
	if dependents := graph.Dependents(taskID); len(dependents) > 0 {
		return corerr.Conflictf("task %s is depended on by %d other task(s)", taskID, len(dependents))
	}
	task.Status = models.TaskStatusBlocked
	task.ModifiedAt = time.Now()
	return e.store.UpdateTask(task)
}

func (e *Engine) validateDependencies(t *models.Task) error {
	siblings, err := e.outcomeTasks(t.OutcomeID)
	if err != nil {
		return err
	}
	merged := make([]*models.Task, 0, len(siblings)+1)
	replaced := false
	for _, s := range siblings {
		if s.ID == t.ID {
			merged = append(merged, t)
			replaced = true
			continue
		}
		merged = append(merged, s)
	}
	if !replaced {
		merged = append(merged, t)
	}

	graph := NewDependencyGraph()
	return graph.Build(merged)
}

func (e *Engine) outcomeTasks(outcomeID string) ([]*models.Task, error) {
	if outcomeID == "" {
		return nil, nil
	}
	return e.store.ListTasksByOutcome(outcomeID)
}

// Claim runs the claim algorithm (spec §4.1) for outcomeID on behalf of
// workerID. Returns a corerr.NotFound error ("no_eligible_task") if
// nothing is currently claimable.
func (e *Engine) Claim(outcomeID, workerID string) (*models.Task, error) {
	outcome, err := e.store.GetOutcome(outcomeID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.ListClaimableTasks(outcomeID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, corerr.NotFoundf("no_eligible_task")
	}

	allTasks, err := e.store.ListTasksByOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	statusByID := make(map[string]models.TaskStatus, len(allTasks))
	for _, t := range allTasks {
		statusByID[t.ID] = t.Status
	}

	blocked, err := e.blockedByEscalation(outcomeID)
	if err != nil {
		return nil, err
	}

	for _, task := range candidates {
		if blocked[task.ID] {
			continue
		}
		if outcome.CapabilityReady != models.CapabilityReady && task.Phase != models.TaskPhaseCapability {
			continue
		}
		if !DependenciesComplete(task, statusByID) {
			continue
		}
		ready, err := e.capabilitiesSatisfied(task)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}

		if err := e.store.ClaimTask(task.ID, workerID, time.Now()); err != nil {
			if corerr.Is(err, corerr.Conflict) {
				continue
			}
			return nil, err
		}
		task.Status = models.TaskStatusClaimed
		task.Claimant = workerID
		return task, nil
	}

	return nil, corerr.NotFoundf("no_eligible_task")
}

func (e *Engine) blockedByEscalation(outcomeID string) (map[string]bool, error) {
	pending, err := e.store.ListPendingEscalationsByOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	blocked := make(map[string]bool)
	for _, esc := range pending {
		for _, taskID := range esc.AffectedTasks {
			blocked[taskID] = true
		}
	}
	return blocked, nil
}

func (e *Engine) capabilitiesSatisfied(task *models.Task) (bool, error) {
	for _, ref := range task.RequiredCapabilities {
		kind, name, ok := models.ParseCapabilityRef(ref)
		if !ok {
			return false, corerr.Validationf("task %s has malformed required capability %q", task.ID, ref)
		}
		cap, err := e.store.GetCapabilityByRef(task.OutcomeID, kind, name)
		if corerr.Is(err, corerr.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if cap.Status != models.CapabilityStatusReady {
			return false, nil
		}
	}
	return true, nil
}

// Complete marks a task as completed.
func (e *Engine) Complete(taskID string) error {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}
	task.Status = models.TaskStatusCompleted
	task.ModifiedAt = time.Now()
	return e.store.UpdateTask(task)
}

// Fail records a failed attempt. If attempts remain, the task returns to
// pending; otherwise it is permanently failed. Progress and observation
// history is never discarded on retry.
func (e *Engine) Fail(taskID, reason string) error {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}
	task.Attempts++
	task.Error = reason
	if task.Attempts < task.MaxAttempts {
		task.Status = models.TaskStatusPending
		task.Claimant = ""
	} else {
		task.Status = models.TaskStatusFailed
	}
	task.ModifiedAt = time.Now()
	return e.store.UpdateTask(task)
}

// Enumerate lists an outcome's tasks, optionally filtered by status and
// phase. An empty filter field matches every value.
type Filter struct {
	Status models.TaskStatus
	Phase  models.TaskPhase
}

// Enumerate returns outcomeID's tasks matching filter.
func (e *Engine) Enumerate(outcomeID string, filter Filter) ([]*models.Task, error) {
	tasks, err := e.store.ListTasksByOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	if filter.Status == "" && filter.Phase == "" {
		return tasks, nil
	}

	var out []*models.Task
	for _, t := range tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Phase != "" && t.Phase != filter.Phase {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
