package worktree

import (
	"context"
	"sync"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/gitrunner"
)

// MergeState is the lifecycle of one merge request as it moves through
// the coordinator's queue.
type MergeState string

const (
	MergeQueued     MergeState = "queued"
	MergeInProgress MergeState = "in_progress"
	MergeCompleted  MergeState = "completed"
	MergeConflicted MergeState = "conflicted"
	MergeFailed     MergeState = "failed"
)

// MergeResult reports the outcome of one processed merge request. A
// conflicted or failed result never modifies the base branch.
type MergeResult struct {
	State         MergeState
	ConflictFiles []string
	Err           error
}

type mergeRequest struct {
	ctx      context.Context
	workerID string
	branch   string
	resultCh chan MergeResult
}

// Coordinator serializes merge requests for one outcome's base branch
// into a single FIFO worker goroutine, so concurrent workers racing to
// merge never interleave git operations against the same working tree.
// Every merge is bracketed by a checkpoint so a conflicted or failed
// attempt can be rolled back cleanly.
type Coordinator struct {
	outcomeID string
	repo      gitrunner.Runner

	checkpoints *CheckpointManager
	rollback    *RollbackManager

	queue chan *mergeRequest

	mu    sync.RWMutex
	stats MergeStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// MergeStats tallies processed merge outcomes for observability.
type MergeStats struct {
	Total      int
	Completed  int
	Conflicted int
	Failed     int
}

// NewCoordinator returns a Coordinator for outcomeID's base branch,
// operating against repo, and starts its background worker goroutine.
func NewCoordinator(outcomeID string, repo gitrunner.Runner) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	checkpoints := NewCheckpointManager(outcomeID, repo)

	c := &Coordinator{
		outcomeID:   outcomeID,
		repo:        repo,
		checkpoints: checkpoints,
		rollback:    NewRollbackManager(repo, checkpoints),
		queue:       make(chan *mergeRequest, 64),
		ctx:         ctx,
		cancel:      cancel,
	}

	c.wg.Add(1)
	go c.run()
	return c
}

// Enqueue submits branch for merging into the base branch and returns a
// channel that receives exactly one MergeResult.
func (c *Coordinator) Enqueue(ctx context.Context, workerID, branch string) <-chan MergeResult {
	resultCh := make(chan MergeResult, 1)
	req := &mergeRequest{ctx: ctx, workerID: workerID, branch: branch, resultCh: resultCh}

	select {
	case c.queue <- req:
	case <-ctx.Done():
		resultCh <- MergeResult{State: MergeFailed, Err: ctx.Err()}
	case <-c.ctx.Done():
		resultCh <- MergeResult{State: MergeFailed, Err: corerr.New(corerr.Internal, "merge coordinator stopped")}
	}
	return resultCh
}

// Stop drains the queue and shuts down the worker goroutine.
func (c *Coordinator) Stop() {
	c.cancel()
	close(c.queue)
	c.wg.Wait()
}

// Stats returns a copy of the running merge statistics.
func (c *Coordinator) Stats() MergeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Checkpoints exposes the checkpoint manager so a caller can roll back
// the base branch independently of a new merge attempt.
func (c *Coordinator) Checkpoints() *CheckpointManager { return c.checkpoints }

// Rollback exposes the rollback manager.
func (c *Coordinator) Rollback() *RollbackManager { return c.rollback }

func (c *Coordinator) run() {
	defer c.wg.Done()

	for req := range c.queue {
		select {
		case <-c.ctx.Done():
			req.resultCh <- MergeResult{State: MergeFailed, Err: c.ctx.Err()}
			continue
		default:
		}

		result := c.process(req)

		c.mu.Lock()
		c.stats.Total++
		switch result.State {
		case MergeCompleted:
			c.stats.Completed++
		case MergeConflicted:
			c.stats.Conflicted++
		case MergeFailed:
			c.stats.Failed++
		}
		c.mu.Unlock()

		req.resultCh <- result
	}
}

func (c *Coordinator) process(req *mergeRequest) MergeResult {
	if err := c.checkpoints.Create(req.workerID); err != nil {
		return MergeResult{State: MergeFailed, Err: err}
	}

	if err := c.repo.MergeNoFF(req.branch); err != nil {
		conflicts, _ := c.repo.ConflictedFiles()
		_ = c.repo.MergeAbort()
		_ = c.checkpoints.MarkBad(req.workerID)

		if len(conflicts) > 0 {
			return MergeResult{State: MergeConflicted, ConflictFiles: conflicts}
		}
		return MergeResult{State: MergeFailed, Err: corerr.Wrap(corerr.MergeConflict, "merge failed", err)}
	}

	if err := c.checkpoints.MarkGood(req.workerID); err != nil {
		return MergeResult{State: MergeFailed, Err: err}
	}
	return MergeResult{State: MergeCompleted}
}

// CanMergeCleanly dry-runs a merge of branch into the current HEAD without
// leaving any trace: it always aborts afterward, whether the dry run
// would succeed or conflict.
func (c *Coordinator) CanMergeCleanly(branch string) (clean bool, conflicts []string, err error) {
	mergeErr := c.repo.MergeDryRun(branch)
	defer func() { _ = c.repo.MergeAbort() }()

	if mergeErr == nil {
		return true, nil, nil
	}

	conflicts, convErr := c.repo.ConflictedFiles()
	if convErr != nil {
		return false, nil, corerr.Wrap(corerr.Internal, "list conflicted files", convErr)
	}
	if len(conflicts) == 0 {
		return false, nil, corerr.Wrap(corerr.Internal, "dry-run merge failed", mergeErr)
	}
	return false, conflicts, nil
}
