package engine

import (
	"context"

	"github.com/marcusdietz/ralph/pkg/models"
)

// RunReview runs one review cycle against outcomeID: it checks acceptance
// criteria, and unless criteriaOnly is set, surfaces issues as remediation
// tasks and advances the outcome's convergence window.
func (e *Engine) RunReview(ctx context.Context, outcomeID string, criteriaOnly bool) (*models.ReviewCycle, error) {
	return e.reviewer.Review(ctx, outcomeID, criteriaOnly)
}

// ListReviewCycles lists an outcome's review cycles, oldest first.
func (e *Engine) ListReviewCycles(outcomeID string) ([]*models.ReviewCycle, error) {
	return e.store.ListReviewCyclesByOutcome(outcomeID)
}

// LatestReviewCycle returns an outcome's most recent review cycle.
func (e *Engine) LatestReviewCycle(outcomeID string) (*models.ReviewCycle, error) {
	return e.store.GetLatestReviewCycle(outcomeID)
}
