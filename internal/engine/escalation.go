package engine

import (
	"github.com/marcusdietz/ralph/internal/escalation"
	"github.com/marcusdietz/ralph/pkg/models"
)

// OpenEscalation opens a new pending escalation for outcomeID.
func (e *Engine) OpenEscalation(outcomeID string, question models.Question, affectedTasks []string, triggerType string) (string, error) {
	return e.resolver.Open(outcomeID, question, affectedTasks, triggerType)
}

// AnswerEscalation answers a pending escalation, resuming any workers
// waiting on it.
func (e *Engine) AnswerEscalation(id, selectedOptionID, additionalContext string) error {
	return e.resolver.Answer(id, selectedOptionID, additionalContext)
}

// DismissEscalation closes an escalation without an answer.
func (e *Engine) DismissEscalation(id, reason string) error {
	return e.resolver.Dismiss(id, reason)
}

// AutoResolveEscalations answers every pending escalation for outcomeID
// whose best match against resolved history clears the configured
// confidence threshold.
func (e *Engine) AutoResolveEscalations(outcomeID string) (escalation.AutoResolveResult, error) {
	return e.resolver.AutoResolve(outcomeID)
}

// ListPendingEscalations lists an outcome's unresolved escalations.
func (e *Engine) ListPendingEscalations(outcomeID string) ([]*models.Escalation, error) {
	return e.store.ListPendingEscalationsByOutcome(outcomeID)
}
