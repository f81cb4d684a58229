package engine

import (
	"context"

	"github.com/marcusdietz/ralph/pkg/models"
)

// RunRetro runs a retrospective analysis job over outcomeID's resolved
// escalation history, clustering recurring escalations and proposing one
// improvement per cluster.
func (e *Engine) RunRetro(ctx context.Context, outcomeID string) (*models.AnalysisJob, error) {
	return e.retro.Run(ctx, outcomeID)
}

// AcceptProposal materializes one improvement proposal from a completed
// retrospective job as a child outcome.
func (e *Engine) AcceptProposal(jobID, proposalID string) (*models.Outcome, error) {
	return e.retro.Accept(jobID, proposalID)
}

// ListAnalysisJobs lists an outcome's retrospective analysis jobs.
func (e *Engine) ListAnalysisJobs(outcomeID string) ([]*models.AnalysisJob, error) {
	return e.store.ListAnalysisJobsByOutcome(outcomeID)
}
