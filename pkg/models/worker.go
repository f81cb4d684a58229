package models

import "time"

// WorkerStatus represents the current state of a worker supervisor.
type WorkerStatus string

const (
	// WorkerStatusIdle indicates the worker has no claimed task but hasn't
	// exited (e.g. it just finalized a task and is about to claim another).
	WorkerStatusIdle WorkerStatus = "idle"
	// WorkerStatusRunning indicates the worker is actively iterating.
	WorkerStatusRunning WorkerStatus = "running"
	// WorkerStatusWaiting indicates the worker is blocked on a pending
	// escalation and does not occupy a task-slot.
	WorkerStatusWaiting WorkerStatus = "waiting"
	// WorkerStatusPaused indicates the worker was explicitly paused and can
	// be resumed.
	WorkerStatusPaused WorkerStatus = "paused"
	// WorkerStatusCompleted indicates the worker finished all available
	// work and the outcome had nothing left to do.
	WorkerStatusCompleted WorkerStatus = "completed"
	// WorkerStatusFailed indicates the worker terminated abnormally.
	WorkerStatusFailed WorkerStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s WorkerStatus) Valid() bool {
	switch s {
	case WorkerStatusIdle, WorkerStatusRunning, WorkerStatusWaiting,
		WorkerStatusPaused, WorkerStatusCompleted, WorkerStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the worker has reached a final state.
func (s WorkerStatus) IsTerminal() bool {
	return s == WorkerStatusCompleted || s == WorkerStatusFailed
}

// Worker is a long-lived supervisor that claims and progresses tasks for a
// single outcome by iteratively invoking the LLM runner.
type Worker struct {
	ID        string `json:"id"`
	OutcomeID string `json:"outcome_id"`
	Name      string `json:"name"`

	Status        WorkerStatus `json:"status"`
	CurrentTaskID string       `json:"current_task_id,omitempty"`

	Iteration int     `json:"iteration"`
	Cost      float64 `json:"cost"`

	ProgressSummary string `json:"progress_summary,omitempty"`

	// BranchName is set when the outcome's git-mode is worktree.
	BranchName string `json:"branch_name,omitempty"`

	LastObservationID string `json:"last_observation_id,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}
