// Package escalation implements the escalation resolver: open/answer/
// dismiss/auto_resolve over pending escalations (spec §4.4).
package escalation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/pkg/models"
)

// Resolver manages the escalation lifecycle for one store.
type Resolver struct {
	store                *store.DB
	autoResolveThreshold float64
}

// NewResolver returns a Resolver backed by db. threshold is the minimum
// confidence auto_resolve requires before answering on the user's behalf
// (spec §9 Open Question, default 0.8).
func NewResolver(db *store.DB, threshold float64) *Resolver {
	return &Resolver{store: db, autoResolveThreshold: threshold}
}

// Open creates a pending escalation and returns its id.
func (r *Resolver) Open(outcomeID string, question models.Question, affectedTasks []string, triggerType string) (string, error) {
	esc := &models.Escalation{
		ID:            uuid.NewString(),
		OutcomeID:     outcomeID,
		TriggerType:   triggerType,
		Question:      question,
		AffectedTasks: affectedTasks,
		Status:        models.EscalationStatusPending,
		CreatedAt:     time.Now(),
	}
	if err := r.store.CreateEscalation(esc); err != nil {
		return "", err
	}
	return esc.ID, nil
}

// Answer resolves a pending escalation with the user's selected option.
// If selectedOptionID is the break-into-subtasks sentinel, affected tasks
// are marked decomposition_pending before the escalation itself resolves;
// otherwise the answer's context is appended to each affected task's
// approach and any worker waiting on those tasks returns to running.
func (r *Resolver) Answer(id, selectedOptionID, additionalContext string) error {
	esc, err := r.store.GetEscalation(id)
	if err != nil {
		return err
	}
	if esc.Status != models.EscalationStatusPending {
		return corerr.Conflictf("escalation %s is not pending", id)
	}

	breakIntoSubtasks := selectedOptionID == models.BreakIntoSubtasksOptionID

	if breakIntoSubtasks {
		for _, taskID := range esc.AffectedTasks {
			task, err := r.store.GetTask(taskID)
			if err != nil {
				return err
			}
			task.Status = models.TaskStatusDecompositionPending
			task.ModifiedAt = time.Now()
			if err := r.store.UpdateTask(task); err != nil {
				return err
			}
		}
	}

	esc.Status = models.EscalationStatusAnswered
	esc.SelectedOptionID = selectedOptionID
	esc.UserContext = additionalContext
	now := time.Now()
	esc.ResolvedAt = &now
	if err := r.store.UpdateEscalation(esc); err != nil {
		return err
	}

	if !breakIntoSubtasks {
		note := fmt.Sprintf("Escalation resolved: %s", esc.SelectedOptionText())
		if additionalContext != "" {
			note += " — " + additionalContext
		}
		for _, taskID := range esc.AffectedTasks {
			task, err := r.store.GetTask(taskID)
			if err != nil {
				return err
			}
			task.TaskApproach.Append(note)
			task.ModifiedAt = time.Now()
			if err := r.store.UpdateTask(task); err != nil {
				return err
			}
		}
	}

	return r.resumeWaitingWorkers(esc)
}

// resumeWaitingWorkers transitions any worker in state waiting on one of
// esc's affected tasks back to running, now that the escalation blocking
// it has resolved.
func (r *Resolver) resumeWaitingWorkers(esc *models.Escalation) error {
	workers, err := r.store.ListWorkersByOutcome(esc.OutcomeID)
	if err != nil {
		return err
	}
	affected := make(map[string]bool, len(esc.AffectedTasks))
	for _, id := range esc.AffectedTasks {
		affected[id] = true
	}
	for _, w := range workers {
		if w.Status == models.WorkerStatusWaiting && affected[w.CurrentTaskID] {
			w.Status = models.WorkerStatusRunning
			w.ModifiedAt = time.Now()
			if err := r.store.UpdateWorker(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// Dismiss closes a pending escalation without acting on its affected
// tasks.
func (r *Resolver) Dismiss(id, reason string) error {
	esc, err := r.store.GetEscalation(id)
	if err != nil {
		return err
	}
	if esc.Status != models.EscalationStatusPending {
		return corerr.Conflictf("escalation %s is not pending", id)
	}

	esc.Status = models.EscalationStatusDismissed
	esc.UserContext = reason
	now := time.Now()
	esc.ResolvedAt = &now
	return r.store.UpdateEscalation(esc)
}

// AutoResolveResult reports how many pending escalations auto_resolve
// answered versus left for the user.
type AutoResolveResult struct {
	Resolved int
	Deferred int
}

// AutoResolve answers every pending escalation for outcomeID that has a
// high-confidence match against the outcome's prior resolved escalations,
// per spec §4.4. An escalation matches a prior one when their questions
// share enough keyword overlap (Jaccard similarity) to clear the
// configured threshold; the prior's selected option is reused.
func (r *Resolver) AutoResolve(outcomeID string) (AutoResolveResult, error) {
	var result AutoResolveResult

	pending, err := r.store.ListPendingEscalationsByOutcome(outcomeID)
	if err != nil {
		return result, err
	}
	if len(pending) == 0 {
		return result, nil
	}

	history, err := r.store.ListEscalationsByOutcome(outcomeID)
	if err != nil {
		return result, err
	}
	var resolved []*models.Escalation
	for _, h := range history {
		if h.Status == models.EscalationStatusAnswered && h.SelectedOptionID != "" {
			resolved = append(resolved, h)
		}
	}

	for _, esc := range pending {
		optionID, confidence, ok := bestMatch(esc, resolved)
		if !ok || confidence < r.autoResolveThreshold {
			result.Deferred++
			continue
		}
		if err := r.Answer(esc.ID, optionID, ""); err != nil {
			return result, err
		}
		resolvedEsc, err := r.store.GetEscalation(esc.ID)
		if err != nil {
			return result, err
		}
		resolvedEsc.AutoResolveConfidence = confidence
		if err := r.store.UpdateEscalation(resolvedEsc); err != nil {
			return result, err
		}
		result.Resolved++
	}

	return result, nil
}

// bestMatch finds the prior resolved escalation whose question best
// matches esc's, restricted to the same trigger_type, and returns the
// option id it was answered with plus the match confidence.
func bestMatch(esc *models.Escalation, history []*models.Escalation) (optionID string, confidence float64, ok bool) {
	target := keywordSet(esc.Question.Text)

	for _, h := range history {
		if h.TriggerType != esc.TriggerType {
			continue
		}
		if !hasOption(esc, h.SelectedOptionID) {
			// The prior answer's option id isn't one of this escalation's
			// own options; it can't be replayed here even if the
			// questions are textually similar.
			continue
		}
		score := jaccard(target, keywordSet(h.Question.Text))
		if score > confidence {
			confidence = score
			optionID = h.SelectedOptionID
			ok = true
		}
	}
	return optionID, confidence, ok
}

func hasOption(esc *models.Escalation, optionID string) bool {
	for _, o := range esc.Question.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}
