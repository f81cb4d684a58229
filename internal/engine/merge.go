package engine

import (
	"context"

	"github.com/marcusdietz/ralph/internal/gitrunner"
	"github.com/marcusdietz/ralph/internal/worktree"
)

// coordinator returns the lazily-created merge coordinator for outcomeID,
// backed by a git runner rooted at repoPath. One coordinator serializes
// every merge attempt for that outcome's base branch into a single FIFO
// worker, so it is created once and reused across calls.
func (e *Engine) coordinator(outcomeID, repoPath string) *worktree.Coordinator {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.coordinators[outcomeID]; ok {
		return c
	}
	c := worktree.NewCoordinator(outcomeID, gitrunner.NewRunner(repoPath))
	e.coordinators[outcomeID] = c
	return c
}

// EnqueueMerge submits a worker's branch for merging into outcomeID's base
// branch and returns a channel that receives exactly one MergeResult.
func (e *Engine) EnqueueMerge(ctx context.Context, outcomeID, repoPath, workerID, branch string) <-chan worktree.MergeResult {
	return e.coordinator(outcomeID, repoPath).Enqueue(ctx, workerID, branch)
}

// CanMergeCleanly dry-runs a merge of branch into outcomeID's current base
// branch HEAD without leaving any trace.
func (e *Engine) CanMergeCleanly(outcomeID, repoPath, branch string) (clean bool, conflicts []string, err error) {
	return e.coordinator(outcomeID, repoPath).CanMergeCleanly(branch)
}

// MergeStats reports running merge statistics for outcomeID.
func (e *Engine) MergeStats(outcomeID, repoPath string) worktree.MergeStats {
	return e.coordinator(outcomeID, repoPath).Stats()
}

// StopMergeCoordinator shuts down outcomeID's merge coordinator, if one
// was started.
func (e *Engine) StopMergeCoordinator(outcomeID string) {
	e.mu.Lock()
	c, ok := e.coordinators[outcomeID]
	delete(e.coordinators, outcomeID)
	e.mu.Unlock()
	if ok {
		c.Stop()
	}
}

// Close shuts down every live merge coordinator. Worker goroutines are
// left running; callers should Stop/Wait each worker before Close if a
// clean shutdown is required.
func (e *Engine) Close() {
	e.mu.Lock()
	coordinators := e.coordinators
	e.coordinators = make(map[string]*worktree.Coordinator)
	e.mu.Unlock()

	for _, c := range coordinators {
		c.Stop()
	}
}
