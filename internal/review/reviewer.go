// Package review implements the reviewer and convergence tracker: audit an
// outcome against its success criteria, generate remediation tasks for
// issues found, and advance the outcome's convergence state (spec §4.6).
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/llmrunner"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/internal/workspace"
	"github.com/marcusdietz/ralph/pkg/models"
)

// reviewPromptTemplate mirrors the teacher's second_review.go
// buildReviewPrompt: state the evidence, demand a structured verdict back,
// tolerate no other required format.
const reviewPromptTemplate = `You are reviewing an outcome's progress against its success criteria and each item's acceptance criteria.

OUTCOME: %s

ITEMS AND ACCEPTANCE CRITERIA:
%s

GLOBAL SUCCESS CRITERIA:
%s

EVIDENCE (completed task titles/summaries and workspace output files):
%s

For every criterion above (item acceptance criteria and global success criteria), respond with exactly one line:
CRITERION: <criterion text>|PASS|<evidence supporting the verdict>
or
CRITERION: <criterion text>|FAIL|<evidence or gap explaining the verdict>
%s`

const issueInstructions = `
If you find problems not captured by a failing criterion, report each as:
ISSUE(severity): <description>
where severity is one of low, medium, high, critical.`

// Reviewer runs review cycles for outcomes backed by one store.
type Reviewer struct {
	store  *store.DB
	engine *taskengine.Engine
	pool   *llmrunner.Pool
}

// NewReviewer returns a Reviewer backed by db/engine, invoking runners
// through pool.
func NewReviewer(db *store.DB, engine *taskengine.Engine, pool *llmrunner.Pool) *Reviewer {
	return &Reviewer{store: db, engine: engine, pool: pool}
}

// Review runs one review cycle against outcomeID. When criteriaOnly is
// true, only findings are produced — no issues, no remediation tasks, no
// convergence update (spec §4.6).
func (r *Reviewer) Review(ctx context.Context, outcomeID string, criteriaOnly bool) (*models.ReviewCycle, error) {
	outcome, err := r.store.GetOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	tasks, err := r.store.ListTasksByOutcome(outcomeID)
	if err != nil {
		return nil, err
	}

	ws := workspace.New(outcome.WorkingDir)
	outputs, err := ws.ListOutputFiles()
	if err != nil {
		return nil, err
	}

	prompt := buildReviewPrompt(outcome, tasks, outputs, criteriaOnly)
	raw, err := r.invoke(ctx, prompt)
	if err != nil {
		return nil, err
	}

	taggedCriteria, taggedIssues := parseReview(raw)

	findings := make([]models.ReviewFinding, 0, len(taggedCriteria))
	for _, c := range taggedCriteria {
		verdict := models.ReviewVerdictFail
		if c.verdict == "pass" {
			verdict = models.ReviewVerdictPass
		}
		findings = append(findings, models.ReviewFinding{
			Criterion: c.text,
			Verdict:   verdict,
			Evidence:  c.evidence,
		})
	}

	var issues []models.ReviewIssue
	if !criteriaOnly {
		for _, i := range taggedIssues {
			issues = append(issues, models.ReviewIssue{Text: i.text, Severity: i.severity})
		}
	}

	cycle := &models.ReviewCycle{
		ID:           uuid.NewString(),
		OutcomeID:    outcomeID,
		CriteriaOnly: criteriaOnly,
		Findings:     findings,
		Issues:       issues,
		IssuesFound:  len(issues),
		CreatedAt:    time.Now(),
	}
	if err := r.store.CreateReviewCycle(cycle); err != nil {
		return nil, err
	}

	if criteriaOnly {
		return cycle, nil
	}

	if err := r.createRemediationTasks(cycle, tasks); err != nil {
		return nil, err
	}

	if err := r.advanceConvergence(outcome, cycle, findings); err != nil {
		return nil, err
	}

	return cycle, nil
}

// createRemediationTasks materializes a task per issue whose severity
// clears the medium threshold, priority set below every currently
// claimable task so existing work drains first, then persists the
// cycle's remediation-task linkage.
func (r *Reviewer) createRemediationTasks(cycle *models.ReviewCycle, existing []*models.Task) error {
	lowestPriority := 0
	for _, t := range existing {
		if t.Priority > lowestPriority {
			lowestPriority = t.Priority
		}
	}

	changed := false
	for i := range cycle.Issues {
		issue := &cycle.Issues[i]
		if !warrantsRemediation(issue.Severity) {
			continue
		}
		lowestPriority++
		task := &models.Task{
			ID:            uuid.NewString(),
			OutcomeID:     cycle.OutcomeID,
			Title:         fmt.Sprintf("Remediate: %s", truncate(issue.Text, 80)),
			Description:   issue.Text,
			TaskIntent:    models.TaskIntent{Summary: issue.Text},
			Priority:      lowestPriority,
			MaxAttempts:   3,
			Phase:         models.TaskPhaseExecution,
			Status:        models.TaskStatusPending,
			FromReview:    true,
			ReviewCycle:   cycle.CycleIndex,
			CreationCycle: cycle.CycleIndex,
		}
		if err := r.engine.Create(task); err != nil {
			return err
		}
		issue.RemediationTaskID = task.ID
		changed = true
	}

	if changed {
		return r.store.UpdateReviewCycle(cycle)
	}
	return nil
}

// advanceConvergence updates the outcome's convergence window per spec
// §4.6 and flips it to achieved once the window closes with every
// criterion passing.
func (r *Reviewer) advanceConvergence(outcome *models.Outcome, cycle *models.ReviewCycle, findings []models.ReviewFinding) error {
	converged := outcome.Convergence.Advance(cycle.CycleIndex, cycle.IssuesFound)

	allPass := true
	for _, f := range findings {
		if f.Verdict != models.ReviewVerdictPass {
			allPass = false
			break
		}
	}

	if converged && allPass {
		outcome.Status = models.OutcomeStatusAchieved
	}
	outcome.ModifiedAt = time.Now()
	return r.store.UpdateOutcome(outcome)
}

// invoke acquires a pooled runner, sends the review prompt, and collects
// its output — the same acquire/start/collect/wait shape decompose.go
// uses, grounded on the teacher's second_review.go RequestReview.
func (r *Reviewer) invoke(ctx context.Context, prompt string) (string, error) {
	runner, release, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := runner.Start(prompt, ""); err != nil {
		return "", corerr.Wrap(corerr.LLMTransient, "start review runner", err)
	}

	var out strings.Builder
	for event := range runner.Output() {
		switch event.Type {
		case llmrunner.StreamEventAssistant, llmrunner.StreamEventResult:
			out.WriteString(event.Message)
		case llmrunner.StreamEventError:
			if event.Error != "" {
				return "", corerr.Wrap(corerr.LLMTransient, "review stream error: "+event.Error, nil)
			}
		}
	}
	if err := runner.Wait(); err != nil {
		return "", corerr.Wrap(corerr.LLMTransient, "wait for review runner", err)
	}
	return out.String(), nil
}

// buildReviewPrompt assembles the deterministic review prompt from the
// outcome's intent items, global success criteria, and the evidence
// available so far (completed tasks, workspace output files).
func buildReviewPrompt(outcome *models.Outcome, tasks []*models.Task, outputs []string, criteriaOnly bool) string {
	var items strings.Builder
	for _, item := range outcome.Intent.Items {
		fmt.Fprintf(&items, "- %s\n", item.Title)
		for _, c := range item.AcceptanceCriteria {
			fmt.Fprintf(&items, "  * %s\n", c)
		}
	}
	if items.Len() == 0 {
		items.WriteString("(none)\n")
	}

	var criteria strings.Builder
	for _, c := range outcome.Intent.SuccessCriteria {
		fmt.Fprintf(&criteria, "- %s\n", c)
	}
	if criteria.Len() == 0 {
		criteria.WriteString("(none)\n")
	}

	var evidence strings.Builder
	for _, t := range tasks {
		if t.Status != models.TaskStatusCompleted {
			continue
		}
		fmt.Fprintf(&evidence, "- task %q: %s\n", t.Title, t.TaskIntent.Summary)
	}
	for _, path := range outputs {
		fmt.Fprintf(&evidence, "- output file: %s\n", path)
	}
	if evidence.Len() == 0 {
		evidence.WriteString("(none)\n")
	}

	extra := issueInstructions
	if criteriaOnly {
		extra = ""
	}

	return fmt.Sprintf(reviewPromptTemplate, outcome.Intent.Summary, items.String(), criteria.String(), evidence.String(), extra)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
