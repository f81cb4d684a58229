package engine

import (
	"context"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/internal/worker"
	"github.com/marcusdietz/ralph/pkg/models"
)

// workerHandle tracks a live supervisor goroutine so pause/resume/stop
// calls and process-lifetime bookkeeping have somewhere to land.
type workerHandle struct {
	sup    *worker.Supervisor
	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

func (e *Engine) supervisorConfig() worker.Config {
	return worker.Config{
		Store:            e.store,
		Engine:           e.tasks,
		Resolver:         e.resolver,
		Pool:             e.pool,
		IterationTimeout: e.cfg.IterationTimeout,
		WorkDir:          e.cfg.WorkDir,
	}
}

// StartWorker creates a new worker row for outcomeID and launches its
// supervisor loop in the background, returning the new worker's id
// immediately. Per spec §3's Worker invariant and §8's testable
// properties, it refuses to start against a non-leaf outcome, an outcome
// with no pending tasks, or (unless the outcome's parallel flag is set) an
// outcome that already has a non-terminal worker.
func (e *Engine) StartWorker(outcomeID, name string) (string, error) {
	outcome, err := e.store.GetOutcome(outcomeID)
	if err != nil {
		return "", err
	}

	children, err := e.store.ChildOutcomeIDs(outcomeID)
	if err != nil {
		return "", err
	}
	if !models.IsLeaf(len(children) > 0) {
		return "", nonLeafWorkerStartError(outcomeID)
	}

	active, err := e.store.ActiveWorkerCount(outcomeID)
	if err != nil {
		return "", err
	}
	if active > 0 && !outcome.Parallel {
		return "", workerAlreadyRunningError(outcomeID)
	}

	pending, err := e.tasks.Enumerate(outcomeID, taskengine.Filter{Status: models.TaskStatusPending})
	if err != nil {
		return "", err
	}
	if len(pending) == 0 {
		return "", noPendingWorkError(outcomeID)
	}

	sup, err := worker.New(e.supervisorConfig(), outcomeID, name)
	if err != nil {
		return "", err
	}
	e.launch(sup)
	return sup.ID(), nil
}

// ResumeWorker attaches a supervisor to an already-existing worker row
// (e.g. after a process restart) and relaunches its loop.
func (e *Engine) ResumeWorker(workerID string) error {
	sup, err := worker.Resume(e.supervisorConfig(), workerID)
	if err != nil {
		return err
	}
	e.launch(sup)
	return nil
}

func (e *Engine) launch(sup *worker.Supervisor) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &workerHandle{sup: sup, cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	e.workers[sup.ID()] = h
	e.mu.Unlock()

	go func() {
		defer close(h.done)
		h.runErr = sup.Run(ctx)
	}()
}

// PauseWorker requests a graceful pause of a running worker.
func (e *Engine) PauseWorker(workerID string) error {
	h, err := e.handle(workerID)
	if err != nil {
		return err
	}
	h.sup.Control().Pause()
	return nil
}

// ResumeWorkerLoop un-pauses a paused worker in place (as opposed to
// ResumeWorker, which relaunches a supervisor for a worker row with no
// live goroutine).
func (e *Engine) ResumeWorkerLoop(workerID string) error {
	h, err := e.handle(workerID)
	if err != nil {
		return err
	}
	h.sup.Control().Resume()
	return nil
}

// StopWorker requests a worker stop, with reason surfaced on the worker's
// terminal status.
func (e *Engine) StopWorker(workerID, reason string) error {
	h, err := e.handle(workerID)
	if err != nil {
		return err
	}
	h.sup.Control().Stop(reason)
	return nil
}

// StopAllForOutcome requests a stop on every live supervisor running
// against outcomeID (spec §6 worker op "stop-all-for-outcome"), returning
// how many were signaled. Workers with no live supervisor in this process
// (e.g. already terminal) are silently skipped rather than erroring.
func (e *Engine) StopAllForOutcome(outcomeID, reason string) (int, error) {
	workers, err := e.store.ListWorkersByOutcome(outcomeID)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	var handles []*workerHandle
	for _, w := range workers {
		if h, ok := e.workers[w.ID]; ok {
			handles = append(handles, h)
		}
	}
	e.mu.Unlock()

	for _, h := range handles {
		h.sup.Control().Stop(reason)
	}
	return len(handles), nil
}

// Wait blocks until workerID's supervisor loop exits, returning whatever
// error it exited with.
func (e *Engine) Wait(workerID string) error {
	h, err := e.handle(workerID)
	if err != nil {
		return err
	}
	<-h.done
	e.mu.Lock()
	delete(e.workers, workerID)
	e.mu.Unlock()
	return h.runErr
}

func (e *Engine) handle(workerID string) (*workerHandle, error) {
	e.mu.Lock()
	h, ok := e.workers[workerID]
	e.mu.Unlock()
	if !ok {
		return nil, corerr.NotFoundf("no live supervisor for worker %s", workerID)
	}
	return h, nil
}

// GetWorker fetches a worker's persisted row.
func (e *Engine) GetWorker(workerID string) (*models.Worker, error) {
	return e.store.GetWorker(workerID)
}

// ListWorkers lists an outcome's workers.
func (e *Engine) ListWorkers(outcomeID string) ([]*models.Worker, error) {
	return e.store.ListWorkersByOutcome(outcomeID)
}
