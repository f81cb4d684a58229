package engine

import (
	"github.com/marcusdietz/ralph/internal/capability"
	"github.com/marcusdietz/ralph/internal/workspace"
	"github.com/marcusdietz/ralph/pkg/models"
)

// PlanCapabilities detects capability needs introduced by an outcome's
// current intent/design and, if any are new, creates capability-building
// tasks and flips the outcome's readiness to building; if nothing is new
// and readiness is not_started it flips straight to ready, otherwise
// readiness is left as it was (spec §4.3).
func (e *Engine) PlanCapabilities(outcome *models.Outcome, parallel bool) ([]capability.Need, error) {
	planner := capability.NewPlanner(e.store, e.tasks)
	return planner.Plan(outcome, parallel)
}

// RecomputeCapabilityReadiness flips an outcome to capability_ready once
// every capability task it depends on has completed. It is idempotent and
// safe to call after every capability task completion.
func (e *Engine) RecomputeCapabilityReadiness(outcome *models.Outcome) (bool, error) {
	return capability.Recompute(e.store, outcome)
}

// ScanSkills refreshes an outcome's workspace-declared skill capabilities
// from its skills/ directory.
func (e *Engine) ScanSkills(outcome *models.Outcome) ([]*models.Capability, error) {
	scanner := capability.NewScanner(e.store, workspace.New(outcome.WorkingDir))
	return scanner.ScanSkills(outcome.ID)
}

// ScanTools refreshes an outcome's workspace-declared tool capabilities
// from its tools/ directory.
func (e *Engine) ScanTools(outcome *models.Outcome) ([]*models.Capability, error) {
	scanner := capability.NewScanner(e.store, workspace.New(outcome.WorkingDir))
	return scanner.ScanTools(outcome.ID)
}

// CreateCapabilityFile writes content as a new skill or tool artifact into
// the outcome's workspace and records it as a ready capability (spec §6
// capability op "create-file").
func (e *Engine) CreateCapabilityFile(outcome *models.Outcome, capType models.CapabilityType, name string, content []byte) (*models.Capability, error) {
	scanner := capability.NewScanner(e.store, workspace.New(outcome.WorkingDir))
	return scanner.CreateFile(outcome.ID, capType, name, content)
}

// ListCapabilities lists an outcome's capability records.
func (e *Engine) ListCapabilities(outcomeID string) ([]*models.Capability, error) {
	return e.store.ListCapabilitiesByOutcome(outcomeID)
}
