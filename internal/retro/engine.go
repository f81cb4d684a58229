// Package retro implements the retrospective engine: cluster an outcome's
// historical escalations, propose improvements, and materialize accepted
// proposals as child outcomes (spec §4.8).
package retro

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/llmrunner"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/pkg/models"
)

// selfImprovementParentName is the synthesized parent outcome's name
// under which accepted proposals are materialized as child outcomes.
const selfImprovementParentName = "Self-Improvement"

// proposalPromptTemplate asks the model to turn one escalation cluster
// into a structured improvement proposal, mirroring the teacher's
// general prompt-then-parse-tagged-fields shape used elsewhere in this
// codebase (internal/review's review prompt, internal/worker's
// decomposition prompt).
const proposalPromptTemplate = `Escalations of type %q recurred %d times with this root cause:
%s

Propose one improvement that would prevent this class of escalation going forward.

Respond with exactly these tagged lines (one each):
TITLE: <short proposal title>
SUMMARY: <one paragraph problem summary>
INTENT: <a sketch of the intent for a child outcome that would implement this improvement>
APPROACH: <a sketch of the approach/design for that child outcome>
TASK: <a proposed task title> (repeat this line once per proposed task, at least one)`

// Engine runs retrospective analysis jobs for one store.
type Engine struct {
	store *store.DB
	pool  *llmrunner.Pool
}

// New returns an Engine backed by db, invoking runners through pool.
func New(db *store.DB, pool *llmrunner.Pool) *Engine {
	return &Engine{store: db, pool: pool}
}

// Run starts and completes one retrospective analysis job for outcomeID.
// It rejects with conflict if a job is already pending/running for that
// outcome (spec §4.8 invariant), enforced by store.CreateAnalysisJob.
func (e *Engine) Run(ctx context.Context, outcomeID string) (*models.AnalysisJob, error) {
	now := time.Now()
	job := &models.AnalysisJob{
		ID:        uuid.NewString(),
		OutcomeID: outcomeID,
		Status:    models.AnalysisJobRunning,
		CreatedAt: now,
		StartedAt: &now,
	}
	if err := e.store.CreateAnalysisJob(job); err != nil {
		return nil, err
	}

	escalations, err := e.candidateEscalations(outcomeID)
	if err != nil {
		return e.fail(job, err)
	}

	clusters := clusterEscalations(escalations)
	if len(clusters) == 0 {
		return e.complete(job, models.AnalysisResult{})
	}

	proposals := make([]models.ImprovementProposal, 0, len(clusters))
	for _, cluster := range clusters {
		proposal, err := e.proposeForCluster(ctx, cluster)
		if err != nil {
			return e.fail(job, err)
		}
		proposals = append(proposals, proposal)
	}

	return e.complete(job, models.AnalysisResult{Clusters: clusters, Proposals: proposals})
}

// candidateEscalations returns the outcome's resolved escalations that
// have not already been folded into a prior proposal.
func (e *Engine) candidateEscalations(outcomeID string) ([]*models.Escalation, error) {
	all, err := e.store.ListEscalationsByOutcome(outcomeID)
	if err != nil {
		return nil, err
	}
	var out []*models.Escalation
	for _, esc := range all {
		if esc.Status.IsTerminal() && !esc.Incorporated {
			out = append(out, esc)
		}
	}
	return out, nil
}

func (e *Engine) proposeForCluster(ctx context.Context, cluster models.EscalationCluster) (models.ImprovementProposal, error) {
	prompt := fmt.Sprintf(proposalPromptTemplate, cluster.TriggerType, cluster.Occurrences, cluster.RootCause)

	raw, err := e.invoke(ctx, prompt)
	if err != nil {
		return models.ImprovementProposal{}, err
	}

	fields, tasks := parseProposal(raw)
	return models.ImprovementProposal{
		ID:                 uuid.NewString(),
		Title:              fields["title"],
		Description:        fields["summary"],
		RootCause:          cluster.RootCause,
		ProposedTasks:      tasks,
		IntentSketch:       fields["intent"],
		ApproachSketch:     fields["approach"],
		ClusterTriggerType: cluster.TriggerType,
		SourceEscalations:  cluster.EscalationIDs,
	}, nil
}

// invoke acquires a pooled runner and collects its output, the same
// acquire/start/collect/wait shape internal/review and internal/worker
// use.
func (e *Engine) invoke(ctx context.Context, prompt string) (string, error) {
	runner, release, err := e.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := runner.Start(prompt, ""); err != nil {
		return "", corerr.Wrap(corerr.LLMTransient, "start retro runner", err)
	}

	var out strings.Builder
	for event := range runner.Output() {
		switch event.Type {
		case llmrunner.StreamEventAssistant, llmrunner.StreamEventResult:
			out.WriteString(event.Message)
		case llmrunner.StreamEventError:
			if event.Error != "" {
				return "", corerr.Wrap(corerr.LLMTransient, "retro stream error: "+event.Error, nil)
			}
		}
	}
	if err := runner.Wait(); err != nil {
		return "", corerr.Wrap(corerr.LLMTransient, "wait for retro runner", err)
	}
	return out.String(), nil
}

func (e *Engine) fail(job *models.AnalysisJob, cause error) (*models.AnalysisJob, error) {
	now := time.Now()
	job.Status = models.AnalysisJobFailed
	job.Error = cause.Error()
	job.FinishedAt = &now
	if err := e.store.UpdateAnalysisJob(job); err != nil {
		return nil, err
	}
	return job, cause
}

func (e *Engine) complete(job *models.AnalysisJob, result models.AnalysisResult) (*models.AnalysisJob, error) {
	now := time.Now()
	job.Status = models.AnalysisJobCompleted
	job.Result = result
	job.FinishedAt = &now
	if err := e.store.UpdateAnalysisJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// Accept materializes one proposal from a completed job as a child
// outcome under a synthesized self-improvement parent, and marks the
// proposal's source escalations incorporated so they don't recluster on
// a future run.
func (e *Engine) Accept(jobID, proposalID string) (*models.Outcome, error) {
	job, err := e.store.GetAnalysisJob(jobID)
	if err != nil {
		return nil, err
	}

	var proposal *models.ImprovementProposal
	for i := range job.Result.Proposals {
		if job.Result.Proposals[i].ID == proposalID {
			proposal = &job.Result.Proposals[i]
			break
		}
	}
	if proposal == nil {
		return nil, corerr.NotFoundf("proposal %s not found in job %s", proposalID, jobID)
	}
	if proposal.AcceptedOutcomeID != "" {
		return nil, corerr.Conflictf("proposal %s already accepted as outcome %s", proposalID, proposal.AcceptedOutcomeID)
	}

	parent, err := e.findOrCreateSelfImprovementParent(job.OutcomeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	child := &models.Outcome{
		ID:       uuid.NewString(),
		Name:     proposal.Title,
		ParentID: parent.ID,
		Brief:    proposal.Description,
		Intent: models.Intent{
			Summary: proposal.IntentSketch,
		},
		Design:          models.DesignDoc{Version: 1, Text: proposal.ApproachSketch},
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityNotStarted,
		GitMode:         models.GitModeNone,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
	for i, title := range proposal.ProposedTasks {
		child.Intent.Items = append(child.Intent.Items, models.IntentItem{
			ID:       fmt.Sprintf("item-%d", i+1),
			Title:    title,
			Priority: models.PriorityMedium,
			Status:   "pending",
		})
	}
	if err := e.store.CreateOutcome(child); err != nil {
		return nil, err
	}

	proposal.AcceptedOutcomeID = child.ID
	if err := e.store.UpdateAnalysisJob(job); err != nil {
		return nil, err
	}

	for _, escID := range proposal.SourceEscalations {
		esc, err := e.store.GetEscalation(escID)
		if err != nil {
			return nil, err
		}
		esc.Incorporated = true
		if err := e.store.UpdateEscalation(esc); err != nil {
			return nil, err
		}
	}

	return child, nil
}

func (e *Engine) findOrCreateSelfImprovementParent(sourceOutcomeID string) (*models.Outcome, error) {
	childIDs, err := e.store.ChildOutcomeIDs(sourceOutcomeID)
	if err != nil {
		return nil, err
	}
	for _, id := range childIDs {
		o, err := e.store.GetOutcome(id)
		if err != nil {
			return nil, err
		}
		if o.Name == selfImprovementParentName {
			return o, nil
		}
	}

	now := time.Now()
	parent := &models.Outcome{
		ID:              uuid.NewString(),
		Name:            selfImprovementParentName,
		ParentID:        sourceOutcomeID,
		Brief:           "Improvements proposed by the retrospective engine",
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityNotStarted,
		GitMode:         models.GitModeNone,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
	if err := e.store.CreateOutcome(parent); err != nil {
		return nil, err
	}
	return parent, nil
}
