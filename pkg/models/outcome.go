package models

import "time"

// OutcomeStatus represents the lifecycle state of an outcome.
type OutcomeStatus string

const (
	// OutcomeStatusActive indicates work is ongoing.
	OutcomeStatusActive OutcomeStatus = "active"
	// OutcomeStatusDormant indicates the outcome is parked with no active workers.
	OutcomeStatusDormant OutcomeStatus = "dormant"
	// OutcomeStatusAchieved indicates the outcome converged against its criteria.
	OutcomeStatusAchieved OutcomeStatus = "achieved"
	// OutcomeStatusArchived indicates the outcome is closed and immutable.
	OutcomeStatusArchived OutcomeStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s OutcomeStatus) Valid() bool {
	switch s {
	case OutcomeStatusActive, OutcomeStatusDormant, OutcomeStatusAchieved, OutcomeStatusArchived:
		return true
	default:
		return false
	}
}

// CapabilityReadiness is the tri-state gate on an outcome's capability set.
type CapabilityReadiness string

const (
	// CapabilityNotStarted means capability needs have not been (re)detected yet.
	CapabilityNotStarted CapabilityReadiness = "not_started"
	// CapabilityBuilding means capability tasks exist and are in flight.
	CapabilityBuilding CapabilityReadiness = "building"
	// CapabilityReady means every capability task referenced by execution
	// tasks has completed.
	CapabilityReady CapabilityReadiness = "ready"
)

// Valid returns true if the readiness value is known.
func (c CapabilityReadiness) Valid() bool {
	switch c {
	case CapabilityNotStarted, CapabilityBuilding, CapabilityReady:
		return true
	default:
		return false
	}
}

// GitMode controls how a worker's changes are isolated on disk.
type GitMode string

const (
	// GitModeNone means the outcome has no git repository association.
	GitModeNone GitMode = "none"
	// GitModeShared means all workers write directly into the outcome's
	// working directory; file writes are serialized by the outcome lock.
	GitModeShared GitMode = "shared"
	// GitModeWorktree means each worker gets its own git worktree and branch.
	GitModeWorktree GitMode = "worktree"
)

// Valid returns true if the git mode is known.
func (g GitMode) Valid() bool {
	switch g {
	case GitModeNone, GitModeShared, GitModeWorktree:
		return true
	default:
		return false
	}
}

// Priority is a closed set of priority levels for intent items.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IntentItem is a single discrete piece of an outcome's intent.
type IntentItem struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	Priority           Priority `json:"priority"`
	Status             string   `json:"status"`
}

// Intent is the structured "what" of an outcome.
type Intent struct {
	Summary         string       `json:"summary"`
	Items           []IntentItem `json:"items,omitempty"`
	SuccessCriteria []string     `json:"success_criteria,omitempty"`
}

// DesignDoc is a versioned "how" for an outcome: the structured approach.
type DesignDoc struct {
	Version int    `json:"version"`
	Text    string `json:"text"`
}

// ConvergenceState tracks the reviewer's sliding window of clean cycles.
// An outcome converges (may flip to achieved) once ConsecutiveZeroIssues
// reaches Window (spec §4.6); Window defaults to 2 when unset.
type ConvergenceState struct {
	ConsecutiveZeroIssues int `json:"consecutive_zero_issues"`
	Window                int `json:"window,omitempty"`
	LastCycleIndex        int `json:"last_cycle_index,omitempty"`
}

// Advance updates the sliding window given the issue count of the latest
// review cycle and reports whether the outcome has now converged.
func (c *ConvergenceState) Advance(cycleIndex, issuesFound int) bool {
	c.LastCycleIndex = cycleIndex
	if issuesFound == 0 {
		c.ConsecutiveZeroIssues++
	} else {
		c.ConsecutiveZeroIssues = 0
	}
	window := c.Window
	if window <= 0 {
		window = 2
	}
	return c.ConsecutiveZeroIssues >= window
}

// Outcome is a user-declared goal; the root of the task/worker graph for a
// given unit of work. Outcomes form a forest via ParentID.
type Outcome struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`

	Brief  string    `json:"brief,omitempty"`
	Intent Intent    `json:"intent"`
	Design DesignDoc `json:"design"`

	Status          OutcomeStatus       `json:"status"`
	CapabilityReady CapabilityReadiness `json:"capability_ready"`
	Convergence     ConvergenceState    `json:"convergence"`

	WorkingDir string  `json:"working_dir,omitempty"`
	WorkBranch string  `json:"work_branch,omitempty"`
	GitMode    GitMode `json:"git_mode"`

	// Parallel allows more than one worker to be running at a time for
	// this outcome (spec §3 Worker invariant).
	Parallel bool `json:"parallel"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// IsLeaf reports whether this outcome has no children, given the full set
// of outcomes it might be a parent of. Callers (the store) are expected to
// pass in whether any child references this outcome's ID; this method is a
// small helper over that boolean so invariant checks read naturally at the
// call site.
func IsLeaf(hasChildren bool) bool {
	return !hasChildren
}

// IntentFingerprint returns the inputs whose change must reset
// CapabilityReady to CapabilityNotStarted (spec §3 Outcome invariant):
// the intent summary, the success criteria, and the approach text.
func (o *Outcome) IntentFingerprint() string {
	fp := o.Intent.Summary + "\x00"
	for _, c := range o.Intent.SuccessCriteria {
		fp += c + "\x00"
	}
	fp += o.Design.Text
	return fp
}
