package worktree

import (
	"fmt"
	"sync"
	"time"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/gitrunner"
)

// CheckpointStatus records whether a merge attempted from a checkpoint
// succeeded.
type CheckpointStatus int

const (
	CheckpointUnknown CheckpointStatus = iota
	CheckpointGood
	CheckpointBad
)

func (s CheckpointStatus) String() string {
	switch s {
	case CheckpointGood:
		return "good"
	case CheckpointBad:
		return "bad"
	default:
		return "unknown"
	}
}

// Checkpoint is a lightweight git tag marking the base branch's HEAD
// immediately before a merge attempt, so a conflicted or failed merge can
// be rolled back without touching the base branch's real history.
type Checkpoint struct {
	OutcomeID string
	WorkerID  string
	CommitSHA string
	TagName   string
	CreatedAt time.Time
	Status    CheckpointStatus
}

// CheckpointManager creates and tracks checkpoints for one outcome's
// merge history.
type CheckpointManager struct {
	outcomeID string
	repo      gitrunner.Runner

	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint // workerID -> Checkpoint
}

// NewCheckpointManager returns a CheckpointManager for outcomeID's merges.
func NewCheckpointManager(outcomeID string, repo gitrunner.Runner) *CheckpointManager {
	return &CheckpointManager{
		outcomeID:   outcomeID,
		repo:        repo,
		checkpoints: make(map[string]*Checkpoint),
	}
}

// Create tags the base branch's current HEAD before merging workerID's
// branch in.
func (cm *CheckpointManager) Create(workerID string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	sha, err := cm.repo.Run("rev-parse", "HEAD")
	if err != nil {
		return corerr.Wrap(corerr.Internal, "get HEAD sha", err)
	}

	tag := fmt.Sprintf("ralph-checkpoint-%s-%s", cm.outcomeID, workerID)
	if _, err := cm.repo.Run("tag", tag, sha); err != nil {
		return corerr.Wrap(corerr.Internal, "create checkpoint tag", err)
	}

	cm.checkpoints[workerID] = &Checkpoint{
		OutcomeID: cm.outcomeID,
		WorkerID:  workerID,
		CommitSHA: sha,
		TagName:   tag,
		CreatedAt: time.Now(),
		Status:    CheckpointUnknown,
	}
	return nil
}

// MarkGood records that the merge from workerID's checkpoint succeeded.
func (cm *CheckpointManager) MarkGood(workerID string) error {
	return cm.setStatus(workerID, CheckpointGood)
}

// MarkBad records that the merge from workerID's checkpoint failed.
func (cm *CheckpointManager) MarkBad(workerID string) error {
	return cm.setStatus(workerID, CheckpointBad)
}

func (cm *CheckpointManager) setStatus(workerID string, status CheckpointStatus) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cp, ok := cm.checkpoints[workerID]
	if !ok {
		return corerr.NotFoundf("checkpoint for worker %s", workerID)
	}
	cp.Status = status
	return nil
}

// Get returns a copy of workerID's checkpoint.
func (cm *CheckpointManager) Get(workerID string) (*Checkpoint, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	cp, ok := cm.checkpoints[workerID]
	if !ok {
		return nil, corerr.NotFoundf("checkpoint for worker %s", workerID)
	}
	cpCopy := *cp
	return &cpCopy, nil
}

// LastGood returns the most recently created checkpoint marked good, or
// nil if none exist.
func (cm *CheckpointManager) LastGood() *Checkpoint {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var last *Checkpoint
	for _, cp := range cm.checkpoints {
		if cp.Status != CheckpointGood {
			continue
		}
		if last == nil || cp.CreatedAt.After(last.CreatedAt) {
			last = cp
		}
	}
	if last == nil {
		return nil
	}
	cpCopy := *last
	return &cpCopy
}

// Cleanup deletes every checkpoint tag this manager created. Call once the
// outcome's merges are done (achieved or archived) so stale tags don't
// accumulate in the repository.
func (cm *CheckpointManager) Cleanup() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for _, cp := range cm.checkpoints {
		if _, err := cm.repo.Run("tag", "-d", cp.TagName); err != nil && firstErr == nil {
			firstErr = corerr.Wrap(corerr.Internal, "delete checkpoint tag", err)
		}
	}
	return firstErr
}

// RollbackManager resets the base branch back to a checkpoint's commit.
type RollbackManager struct {
	repo        gitrunner.Runner
	checkpoints *CheckpointManager
}

// NewRollbackManager returns a RollbackManager reading checkpoints from cm.
func NewRollbackManager(repo gitrunner.Runner, cm *CheckpointManager) *RollbackManager {
	return &RollbackManager{repo: repo, checkpoints: cm}
}

// RollbackResult reports what a rollback changed.
type RollbackResult struct {
	PreviousCommit string
	NewCommit      string
	Checkpoint     *Checkpoint
}

// ToLastGood resets the base branch to the last checkpoint marked good.
// hard discards working-directory changes; false keeps them staged.
func (rm *RollbackManager) ToLastGood(hard bool) (*RollbackResult, error) {
	target := rm.checkpoints.LastGood()
	if target == nil {
		return nil, corerr.NotFoundf("no good checkpoint to roll back to")
	}
	return rm.to(target, hard)
}

// ToWorker resets the base branch to workerID's checkpoint, regardless of
// its recorded status. Used when a caller explicitly chooses an earlier
// point in the merge history to return to.
func (rm *RollbackManager) ToWorker(workerID string, hard bool) (*RollbackResult, error) {
	target, err := rm.checkpoints.Get(workerID)
	if err != nil {
		return nil, err
	}
	return rm.to(target, hard)
}

func (rm *RollbackManager) to(target *Checkpoint, hard bool) (*RollbackResult, error) {
	previous, err := rm.repo.Run("rev-parse", "HEAD")
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "get current commit", err)
	}

	resetMode := "--mixed"
	if hard {
		resetMode = "--hard"
	}
	if _, err := rm.repo.Run("reset", resetMode, target.CommitSHA); err != nil {
		return nil, corerr.Wrap(corerr.Internal, "reset to checkpoint", err)
	}

	newCommit, err := rm.repo.Run("rev-parse", "HEAD")
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "get new commit", err)
	}

	return &RollbackResult{
		PreviousCommit: previous,
		NewCommit:      newCommit,
		Checkpoint:     target,
	}, nil
}
