package workspace

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/marcusdietz/ralph/internal/corerr"
)

// Watcher notifies a capability planner of new skill/tool files appearing
// under a workspace's skills/ and tools/ directories, following the
// teacher's fsnotify-plus-done-channel pattern for filesystem signals.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu      sync.Mutex
	created []string
}

// NewWatcher starts watching ws's skills and tools directories. Callers
// must call Close when done.
func NewWatcher(ws *Workspace) (*Watcher, error) {
	if err := ws.EnsureLayout(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "create filesystem watcher", err)
	}

	if err := fw.Add(ws.SkillsDir()); err != nil {
		fw.Close()
		return nil, corerr.Wrap(corerr.Internal, "watch skills directory", err)
	}
	if err := fw.Add(ws.ToolsDir()); err != nil {
		fw.Close()
		return nil, corerr.Wrap(corerr.Internal, "watch tools directory", err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.mu.Lock()
			w.created = append(w.created, event.Name)
			w.mu.Unlock()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// DrainCreated returns every path observed created or written since the
// last call and clears the buffer.
func (w *Watcher) DrainCreated() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := w.created
	w.created = nil
	return paths
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
