// Package worktree manages per-worker git worktrees and the serialized
// merge queue that integrates their branches back into an outcome's base
// branch.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/gitrunner"
)

// Worktree is an isolated working directory and dedicated branch handed
// to one worker when its outcome's git-mode is "worktree".
type Worktree struct {
	Path       string
	BranchName string
	OutcomeID  string
	WorkerID   string
	CreatedAt  time.Time
}

// Manager creates and releases worktrees rooted under a single base
// directory, one subdirectory per worker.
type Manager struct {
	baseDir  string
	repoPath string
	git      gitrunner.Runner
	mu       sync.Mutex
}

// NewManager returns a Manager that creates worktrees under baseDir for
// the repository at repoPath.
func NewManager(baseDir, repoPath string) (*Manager, error) {
	if baseDir == "" {
		return nil, corerr.Validationf("worktree base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, corerr.Wrap(corerr.Internal, "create worktree base directory", err)
	}
	return &Manager{
		baseDir:  baseDir,
		repoPath: repoPath,
		git:      gitrunner.NewRunner(repoPath),
	}, nil
}

// NewManagerWithRunner builds a Manager against a caller-supplied git
// runner, for tests.
func NewManagerWithRunner(baseDir, repoPath string, runner gitrunner.Runner) (*Manager, error) {
	if baseDir == "" {
		return nil, corerr.Validationf("worktree base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, corerr.Wrap(corerr.Internal, "create worktree base directory", err)
	}
	return &Manager{baseDir: baseDir, repoPath: repoPath, git: runner}, nil
}

// branchName derives a stable, collision-free branch name for a worker.
func branchName(outcomeID, workerID string) string {
	return fmt.Sprintf("ralph/%s/%s", outcomeID, workerID)
}

// Create provisions a new worktree and branch for the given worker.
// Acquisition must be paired with exactly one Release call on every exit
// path of the owning supervisor (completion, failure, pause, or crash
// recovery on next start).
func (m *Manager) Create(outcomeID, workerID string) (*Worktree, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	branch := branchName(outcomeID, workerID)
	path := filepath.Join(m.baseDir, outcomeID, workerID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, corerr.Wrap(corerr.Internal, "create worktree parent directory", err)
	}

	if err := m.git.WorktreeAddNewBranch(path, branch); err != nil {
		return nil, corerr.Wrap(corerr.Internal, "create worktree", err)
	}

	return &Worktree{
		Path:       path,
		BranchName: branch,
		OutcomeID:  outcomeID,
		WorkerID:   workerID,
		CreatedAt:  time.Now(),
	}, nil
}

// Release removes a worktree. force discards any uncommitted changes in
// it; callers should prefer force=false once a worker's branch has been
// merged or abandoned cleanly, and fall back to force=true during crash
// recovery where the worktree's state can no longer be trusted.
func (m *Manager) Release(path string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreeRemoveOptionalForce(path, force); err != nil {
		return corerr.Wrap(corerr.Internal, "release worktree", err)
	}
	return nil
}

// Prune removes stale worktree administrative files left behind by
// worktrees whose directories were deleted out from under git, so crash
// recovery can start from a clean registry.
func (m *Manager) Prune() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.git.WorktreePruneExpireNow(); err != nil {
		return corerr.Wrap(corerr.Internal, "prune worktrees", err)
	}
	return nil
}

// List returns the paths of all worktrees currently registered against
// the repository.
func (m *Manager) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths, err := m.git.WorktreeList()
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list worktrees", err)
	}
	return paths, nil
}
