package models

import (
	"strings"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not been claimed.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusClaimed indicates a worker has claimed the task but not yet
	// started the first iteration.
	TaskStatusClaimed TaskStatus = "claimed"
	// TaskStatusRunning indicates a worker is actively iterating on the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task exhausted its retry budget.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusBlocked indicates the task cannot proceed (e.g. a dependent
	// was skipped, or an escalation blocks it).
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusDecompositionPending indicates the task is queued to be
	// replaced by generated subtasks once an escalation resolves.
	TaskStatusDecompositionPending TaskStatus = "decomposition_pending"
	// TaskStatusDecompositionInProgress indicates the escalation resolver is
	// actively replacing the task with subtasks.
	TaskStatusDecompositionInProgress TaskStatus = "decomposition_in_progress"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusClaimed, TaskStatusRunning, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusBlocked, TaskStatusDecompositionPending, TaskStatusDecompositionInProgress:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is a final state for a task attempt.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// TaskPhase distinguishes capability-building tasks from execution tasks.
type TaskPhase string

const (
	// TaskPhaseCapability builds a skill or tool the outcome needs.
	TaskPhaseCapability TaskPhase = "capability"
	// TaskPhaseExecution performs the outcome's actual work.
	TaskPhaseExecution TaskPhase = "execution"
)

// Valid returns true if the phase is a known value.
func (p TaskPhase) Valid() bool {
	switch p {
	case TaskPhaseCapability, TaskPhaseExecution:
		return true
	default:
		return false
	}
}

// CapabilityType distinguishes the two kinds of capability a task may build.
type CapabilityType string

const (
	CapabilitySkill CapabilityType = "skill"
	CapabilityTool  CapabilityType = "tool"
)

// Valid returns true if the capability type is a known value.
func (c CapabilityType) Valid() bool {
	switch c {
	case CapabilitySkill, CapabilityTool:
		return true
	default:
		return false
	}
}

// TaskIntent is the structured "what" of a task.
type TaskIntent struct {
	Summary string `json:"summary"`
}

// TaskApproach is the structured "how" of a task. Escalation resolution and
// review remediation append context onto Notes rather than mutating Summary,
// so the original approach stays legible.
type TaskApproach struct {
	Summary string   `json:"summary"`
	Notes   []string `json:"notes,omitempty"`
}

// Append records an additional note (e.g. an escalation answer or a review
// remediation instruction) onto the approach.
func (a *TaskApproach) Append(note string) {
	if note == "" {
		return
	}
	a.Notes = append(a.Notes, note)
}

// Task is a unit of work owned by exactly one outcome.
type Task struct {
	ID        string `json:"id"`
	OutcomeID string `json:"outcome_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	TaskIntent   TaskIntent   `json:"task_intent"`
	TaskApproach TaskApproach `json:"task_approach"`

	// Priority: lower value is more urgent.
	Priority int `json:"priority"`

	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	Phase          TaskPhase       `json:"phase"`
	CapabilityType *CapabilityType `json:"capability_type,omitempty"`

	DependsOn            []string `json:"depends_on,omitempty"`
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`

	Status    TaskStatus `json:"status"`
	Claimant  string     `json:"claimant,omitempty"`

	// FromReview marks a remediation task generated by a review cycle.
	FromReview  bool `json:"from_review,omitempty"`
	ReviewCycle int  `json:"review_cycle,omitempty"`

	// CreationCycle records the review cycle index that spawned this task,
	// 0 for tasks created outside of a review.
	CreationCycle int `json:"creation_cycle,omitempty"`

	Error string `json:"error,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// CapabilityRef formats a typed capability reference, e.g. "skill:tavily-api".
func CapabilityRef(kind CapabilityType, name string) string {
	return string(kind) + ":" + name
}

// ParseCapabilityRef splits a typed reference produced by CapabilityRef
// back into its kind and name. ok is false if ref has no "kind:name" shape
// or kind is not a recognized CapabilityType.
func ParseCapabilityRef(ref string) (kind CapabilityType, name string, ok bool) {
	k, n, found := strings.Cut(ref, ":")
	if !found || n == "" {
		return "", "", false
	}
	kind = CapabilityType(k)
	if !kind.Valid() {
		return "", "", false
	}
	return kind, n, true
}
