package taskengine

import (
	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// DependencyGraph is a directed graph of a single outcome's tasks, edges
// pointing from a task to the tasks it depends on.
type DependencyGraph struct {
	nodes map[string]*models.Task
	edges map[string][]string
}

// NewDependencyGraph returns an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*models.Task),
		edges: make(map[string][]string),
	}
}

// Build populates the graph from tasks, validating that every depends_on
// reference is same-outcome, not self-referential, and does not complete a
// cycle. Returns a corerr.Validation error on the first problem found.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	for _, t := range tasks {
		g.nodes[t.ID] = t
		g.edges[t.ID] = nil
	}

	for _, t := range tasks {
		for _, depID := range t.DependsOn {
			if depID == t.ID {
				return corerr.Validationf("task %s cannot depend on itself", t.ID)
			}
			dep, exists := g.nodes[depID]
			if !exists {
				return corerr.Validationf("task %s depends on unknown task %s", t.ID, depID)
			}
			if dep.OutcomeID != t.OutcomeID {
				return corerr.Validationf("task %s depends on task %s from a different outcome", t.ID, depID)
			}
			g.edges[t.ID] = append(g.edges[t.ID], depID)
		}
	}

	if cycleID, ok := g.findCycle(); ok {
		return corerr.Validationf("dependency cycle detected at task %s", cycleID)
	}
	return nil
}

// findCycle runs a three-color depth-first search, returning the task id
// where a back edge was found.
func (g *DependencyGraph) findCycle() (string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		color[id] = gray
		for _, dep := range g.edges[id] {
			switch color[dep] {
			case gray:
				return dep, true
			case white:
				if cycleID, found := visit(dep); found {
					return cycleID, true
				}
			}
		}
		color[id] = black
		return "", false
	}

	for id := range g.nodes {
		if color[id] == white {
			if cycleID, found := visit(id); found {
				return cycleID, true
			}
		}
	}
	return "", false
}

// WouldCycle reports whether adding a dependency from taskID on each of
// newDeps would introduce a cycle, without mutating the graph. Used to
// validate an update before it is persisted.
func (g *DependencyGraph) WouldCycle(taskID string, newDeps []string) bool {
	original := g.edges[taskID]
	g.edges[taskID] = newDeps
	_, found := g.findCycle()
	g.edges[taskID] = original
	return found
}

// Dependencies returns the ids taskID depends on.
func (g *DependencyGraph) Dependencies(taskID string) []string {
	return g.edges[taskID]
}

// Dependents returns the ids of tasks that depend on taskID.
func (g *DependencyGraph) Dependents(taskID string) []string {
	var out []string
	for id, deps := range g.edges {
		for _, dep := range deps {
			if dep == taskID {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// DependenciesComplete reports whether every dependency of task has
// status completed, given a lookup of current statuses by id.
func DependenciesComplete(task *models.Task, statusByID map[string]models.TaskStatus) bool {
	for _, depID := range task.DependsOn {
		if statusByID[depID] != models.TaskStatusCompleted {
			return false
		}
	}
	return true
}
