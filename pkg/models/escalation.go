package models

import "time"

// EscalationStatus represents the lifecycle state of an escalation.
type EscalationStatus string

const (
	EscalationStatusPending   EscalationStatus = "pending"
	EscalationStatusAnswered  EscalationStatus = "answered"
	EscalationStatusDismissed EscalationStatus = "dismissed"
)

// Valid returns true if the status is a known value.
func (s EscalationStatus) Valid() bool {
	switch s {
	case EscalationStatusPending, EscalationStatusAnswered, EscalationStatusDismissed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the escalation has been resolved one way or
// another.
func (s EscalationStatus) IsTerminal() bool {
	return s == EscalationStatusAnswered || s == EscalationStatusDismissed
}

// BreakIntoSubtasksOptionID is the sentinel option id that instructs the
// escalation resolver to decompose the affected task(s) into subtasks
// instead of merely appending answer context (spec §4.2 step 6, §4.4).
const BreakIntoSubtasksOptionID = "break_into_subtasks"

// Question is the structured prompt presented to the user for an
// escalation: free text plus labeled options.
type Question struct {
	Text    string            `json:"text"`
	Options []AmbiguityOption `json:"options"`
}

// Escalation is a structured question raised by the observer (or by the
// reviewer, or manually) that blocks its affected tasks from being claimed
// while pending.
type Escalation struct {
	ID        string `json:"id"`
	OutcomeID string `json:"outcome_id"`

	// TriggerType is a short stable tag identifying why this escalation was
	// raised, e.g. "unclear_requirement".
	TriggerType string `json:"trigger_type"`

	Question      Question `json:"question"`
	AffectedTasks []string `json:"affected_tasks"`

	Status EscalationStatus `json:"status"`

	SelectedOptionID string `json:"selected_option_id,omitempty"`
	UserContext      string `json:"user_context,omitempty"`

	// Confidence is recorded when auto_resolve answers this escalation.
	AutoResolveConfidence float64 `json:"auto_resolve_confidence,omitempty"`

	// Incorporated marks an escalation that has been folded into a
	// retrospective improvement proposal.
	Incorporated bool `json:"incorporated,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// SelectedOptionText returns the text of the selected option, or "" if none
// is selected or the option id doesn't match any option.
func (e *Escalation) SelectedOptionText() string {
	for _, o := range e.Question.Options {
		if o.ID == e.SelectedOptionID {
			return o.Text
		}
	}
	return ""
}
