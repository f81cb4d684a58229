// Package workspace lays out and manages the per-outcome filesystem
// directory that the LLM runner reads and writes: skills, tools, docs,
// and outputs.
package workspace

import (
	"os"
	"path/filepath"

	"github.com/marcusdietz/ralph/internal/corerr"
)

const (
	skillsDirName  = "skills"
	toolsDirName   = "tools"
	docsDirName    = "docs"
	outputsDirName = "outputs"
)

// Workspace is the rooted directory tree for one outcome.
type Workspace struct {
	root string
}

// New returns a Workspace rooted at root, without touching the
// filesystem. Call EnsureLayout before using it for the first time.
func New(root string) *Workspace {
	return &Workspace{root: root}
}

// EnsureLayout creates the skills/tools/docs/outputs subdirectories if
// they don't already exist.
func (w *Workspace) EnsureLayout() error {
	for _, dir := range []string{w.SkillsDir(), w.ToolsDir(), w.DocsDir(), w.OutputsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return corerr.Wrap(corerr.Internal, "create workspace directory "+dir, err)
		}
	}
	return nil
}

// Root returns the workspace's base directory.
func (w *Workspace) Root() string { return w.root }

// SkillsDir is where skill markdown files live.
func (w *Workspace) SkillsDir() string { return filepath.Join(w.root, skillsDirName) }

// ToolsDir is where executable tool scripts live.
func (w *Workspace) ToolsDir() string { return filepath.Join(w.root, toolsDirName) }

// DocsDir is where design docs and other reference material live.
func (w *Workspace) DocsDir() string { return filepath.Join(w.root, docsDirName) }

// OutputsDir is where worker-produced artifacts (review evidence,
// generated files) live.
func (w *Workspace) OutputsDir() string { return filepath.Join(w.root, outputsDirName) }

// ListSkillFiles returns the paths of every markdown file directly under
// SkillsDir.
func (w *Workspace) ListSkillFiles() ([]string, error) {
	return listFiles(w.SkillsDir(), ".md")
}

// ListToolFiles returns the paths of every file directly under ToolsDir.
func (w *Workspace) ListToolFiles() ([]string, error) {
	return listFiles(w.ToolsDir(), "")
}

// ListOutputFiles returns the paths of every file directly under
// OutputsDir, for the reviewer to cite as evidence.
func (w *Workspace) ListOutputFiles() ([]string, error) {
	return listFiles(w.OutputsDir(), "")
}

func listFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, corerr.Wrap(corerr.Internal, "read directory "+dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext != "" && filepath.Ext(e.Name()) != ext {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
