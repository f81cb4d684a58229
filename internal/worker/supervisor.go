// Package worker implements the Ralph-loop supervisor: one goroutine per
// running worker driving claim -> prompt -> invoke -> observe -> act over
// a single outcome's task queue (spec §4.2).
package worker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/escalation"
	"github.com/marcusdietz/ralph/internal/llmrunner"
	"github.com/marcusdietz/ralph/internal/observer"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/pkg/models"
)

// driftStreakLimit is how many consecutive off-track-or-poor iterations on
// the same task trigger a failed attempt (spec §4.2 step 8).
const driftStreakLimit = 2

// StopReasonPause is the Control.Stop reason a caller passes to request a
// graceful pause (worker ends up paused, not failed) rather than an abort.
const StopReasonPause = "pause"

// escalationPollInterval is how often the supervisor checks whether a
// pending escalation it opened has been resolved.
const escalationPollInterval = 2 * time.Second

// Supervisor drives one worker's loop against one outcome.
type Supervisor struct {
	workerID  string
	outcomeID string

	store      *store.DB
	engine     *taskengine.Engine
	resolver   *escalation.Resolver
	decomposer *Decomposer
	pool       *llmrunner.Pool

	iterationTimeout time.Duration
	workDir          string

	control *Control
}

// Config bundles the collaborators a Supervisor needs.
type Config struct {
	Store            *store.DB
	Engine           *taskengine.Engine
	Resolver         *escalation.Resolver
	Pool             *llmrunner.Pool
	IterationTimeout time.Duration
	WorkDir          string
}

// New creates a worker row for outcomeID and returns a Supervisor that will
// drive it. name is a human-readable label; the worker id is generated.
func New(cfg Config, outcomeID, name string) (*Supervisor, error) {
	now := time.Now()
	w := &models.Worker{
		ID:         uuid.NewString(),
		OutcomeID:  outcomeID,
		Name:       name,
		Status:     models.WorkerStatusIdle,
		StartedAt:  now,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := cfg.Store.CreateWorker(w); err != nil {
		return nil, err
	}
	return Resume(cfg, w.ID)
}

// Resume returns a Supervisor driving an already-existing worker row (e.g.
// after a process restart).
func Resume(cfg Config, workerID string) (*Supervisor, error) {
	return &Supervisor{
		workerID:         workerID,
		store:            cfg.Store,
		engine:           cfg.Engine,
		resolver:         cfg.Resolver,
		decomposer:       NewDecomposer(cfg.Store, cfg.Engine, cfg.Pool),
		pool:             cfg.Pool,
		iterationTimeout: cfg.IterationTimeout,
		workDir:          cfg.WorkDir,
		control:          NewControl(),
	}, nil
}

// ID returns the supervised worker's id.
func (s *Supervisor) ID() string { return s.workerID }

// Control returns the supervisor's pause/resume/stop handle.
func (s *Supervisor) Control() *Control { return s.control }

// Run drives the worker loop until it finalizes (idle/completed), is
// stopped, or the context is cancelled. A non-nil error other than the
// stop/cancel sentinel indicates an unrecoverable store or runner failure.
func (s *Supervisor) Run(ctx context.Context) error {
	w, err := s.store.GetWorker(s.workerID)
	if err != nil {
		return err
	}
	s.outcomeID = w.OutcomeID

	for {
		if err := s.suspend(ctx, w); err != nil {
			return s.handleStop(w, err)
		}

		w.Iteration++
		if err := s.appendProgress(w, "", "claiming next task", ""); err != nil {
			return err
		}

		task, err := s.engine.Claim(s.outcomeID, s.workerID)
		if err != nil {
			if corerr.Is(err, corerr.NotFound) {
				return s.finalize(w)
			}
			return err
		}

		task.Status = models.TaskStatusRunning
		task.ModifiedAt = time.Now()
		if err := s.store.UpdateTask(task); err != nil {
			return err
		}

		w.CurrentTaskID = task.ID
		w.Status = models.WorkerStatusRunning
		w.ModifiedAt = time.Now()
		if err := s.store.UpdateWorker(w); err != nil {
			return err
		}

		if err := s.runTask(ctx, w, task); err != nil {
			return s.handleStop(w, err)
		}
	}
}

// suspend is the once-per-iteration honoring of pause/stop signals (spec
// §4.2 step 9: before claim).
func (s *Supervisor) suspend(ctx context.Context, w *models.Worker) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.control.IsPaused() {
		w.Status = models.WorkerStatusPaused
		w.ModifiedAt = time.Now()
		if err := s.store.UpdateWorker(w); err != nil {
			return err
		}
	}

	if err := s.control.WaitIfPaused(ctx); err != nil {
		return err
	}
	if s.control.IsStopped() {
		return corerr.Conflictf("worker stopped: %s", s.control.StopReason())
	}

	if w.Status == models.WorkerStatusPaused {
		w.Status = models.WorkerStatusRunning
		w.ModifiedAt = time.Now()
		if err := s.store.UpdateWorker(w); err != nil {
			return err
		}
	}
	return nil
}

// handleStop translates a suspend/cancellation error into worker state: a
// deliberate pause leaves the worker paused, anything else marks it failed.
func (s *Supervisor) handleStop(w *models.Worker, cause error) error {
	now := time.Now()
	if s.control.IsStopped() && s.control.StopReason() == StopReasonPause {
		w.Status = models.WorkerStatusPaused
	} else {
		w.Status = models.WorkerStatusFailed
		w.StoppedAt = &now
	}
	w.ModifiedAt = now
	if err := s.store.UpdateWorker(w); err != nil {
		return err
	}
	if corerr.Is(cause, corerr.Conflict) {
		return nil
	}
	return cause
}

// runTask iterates the same claimed task until it completes, is escalated
// into decomposition, or fails from a sustained drift/poor-quality streak.
func (s *Supervisor) runTask(ctx context.Context, w *models.Worker, task *models.Task) error {
	streak := 0

	for {
		if err := s.suspend(ctx, w); err != nil {
			return err
		}

		w.Iteration++
		outcome, err := s.store.GetOutcome(task.OutcomeID)
		if err != nil {
			return err
		}
		recent, err := taskObservations(s.store, w.ID, task.ID)
		if err != nil {
			return err
		}
		prompt := buildPrompt(outcome, task, recent, requiredCapabilities(s.store, task))

		rawOutput, invokeErr := s.invoke(ctx, prompt)
		if invokeErr != nil {
			if corerr.Is(invokeErr, corerr.LLMFatal) {
				return s.failTask(task, invokeErr.Error())
			}
			return invokeErr
		}

		if err := s.appendProgress(w, task.ID, rawOutput, rawOutput); err != nil {
			return err
		}

		obs := observer.Observe(w.ID, task.ID, w.Iteration, rawOutput)
		if err := s.store.CreateObservation(obs); err != nil {
			return err
		}
		w.LastObservationID = obs.ID
		w.ModifiedAt = time.Now()
		if err := s.store.UpdateWorker(w); err != nil {
			return err
		}

		if obs.HasAmbiguity {
			superseded, err := s.handleAmbiguity(ctx, w, task, obs)
			if err != nil {
				return err
			}
			if superseded {
				return nil
			}
			refreshed, err := s.store.GetTask(task.ID)
			if err != nil {
				return err
			}
			task = refreshed
			streak = 0
			continue
		}

		if obs.TaskComplete {
			return s.engine.Complete(task.ID)
		}

		if !obs.OnTrack || obs.Quality == models.QualityPoor {
			streak++
		} else {
			streak = 0
		}
		if streak >= driftStreakLimit {
			return s.failTask(task, "drift or poor quality persisted across two consecutive iterations")
		}
	}
}

func (s *Supervisor) failTask(task *models.Task, reason string) error {
	return s.engine.Fail(task.ID, reason)
}

// handleAmbiguity opens an escalation for the observation's ambiguity
// payload, parks the worker in state waiting until it resolves, and applies
// the resolution: decomposition supersedes the task (returns true),
// anything else lets the caller continue iterating on it.
func (s *Supervisor) handleAmbiguity(ctx context.Context, w *models.Worker, task *models.Task, obs *models.Observation) (superseded bool, err error) {
	escID, err := s.resolver.Open(task.OutcomeID, models.Question{
		Text:    obs.Ambiguity.Question,
		Options: obs.Ambiguity.Options,
	}, []string{task.ID}, obs.Ambiguity.TriggerType)
	if err != nil {
		return false, err
	}

	w.Status = models.WorkerStatusWaiting
	w.ModifiedAt = time.Now()
	if err := s.store.UpdateWorker(w); err != nil {
		return false, err
	}

	if err := s.waitForResolution(ctx, escID); err != nil {
		return false, err
	}

	w.Status = models.WorkerStatusRunning
	w.ModifiedAt = time.Now()
	if err := s.store.UpdateWorker(w); err != nil {
		return false, err
	}

	esc, err := s.store.GetEscalation(escID)
	if err != nil {
		return false, err
	}
	if esc.Status == models.EscalationStatusAnswered && esc.SelectedOptionID == models.BreakIntoSubtasksOptionID {
		if err := s.decomposer.Decompose(ctx, task); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// waitForResolution polls the escalation until it leaves pending, honoring
// context cancellation and stop signals the same way every other
// suspension point does.
func (s *Supervisor) waitForResolution(ctx context.Context, escID string) error {
	ticker := time.NewTicker(escalationPollInterval)
	defer ticker.Stop()

	for {
		esc, err := s.store.GetEscalation(escID)
		if err != nil {
			return err
		}
		if esc.Status != models.EscalationStatusPending {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.control.IsStopped() {
				return corerr.Conflictf("worker stopped: %s", s.control.StopReason())
			}
		}
	}
}

// invoke acquires a pooled runner and collects its output, enforcing the
// per-iteration timeout (spec §4.2 step 4).
func (s *Supervisor) invoke(ctx context.Context, prompt string) (string, error) {
	runner, release, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	timeout := s.iterationTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	iterCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := runner.Start(prompt, s.workDir); err != nil {
		return "", corerr.Wrap(corerr.LLMTransient, "start runner", err)
	}

	var out strings.Builder
	for {
		select {
		case <-iterCtx.Done():
			_ = runner.Kill()
			return out.String(), corerr.Wrap(corerr.LLMTransient, "iteration timed out", iterCtx.Err())
		case event, ok := <-runner.Output():
			if !ok {
				if waitErr := runner.Wait(); waitErr != nil {
					return out.String(), corerr.Wrap(corerr.LLMTransient, "runner wait", waitErr)
				}
				return out.String(), nil
			}
			switch event.Type {
			case llmrunner.StreamEventAssistant, llmrunner.StreamEventResult:
				out.WriteString(event.Message)
			case llmrunner.StreamEventError:
				if event.Error != "" {
					_ = runner.Kill()
					return out.String(), corerr.Wrap(corerr.LLMFatal, "runner stream error: "+event.Error, nil)
				}
			}
		}
	}
}

// appendProgress records one progress entry for the worker, optionally tied
// to a task and carrying the raw LLM output for that iteration.
func (s *Supervisor) appendProgress(w *models.Worker, taskID, content, rawLLM string) error {
	return s.store.AppendProgress(&models.ProgressEntry{
		ID:        uuid.NewString(),
		WorkerID:  w.ID,
		Iteration: w.Iteration,
		TaskID:    taskID,
		Content:   content,
		RawLLM:    rawLLM,
		CreatedAt: time.Now(),
	})
}

// finalize runs when claim finds nothing eligible: complete the worker if
// the outcome has no outstanding tasks and has converged, otherwise park it
// idle (spec §4.2 step 2).
func (s *Supervisor) finalize(w *models.Worker) error {
	tasks, err := s.store.ListTasksByOutcome(s.outcomeID)
	if err != nil {
		return err
	}
	outstanding := 0
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusPending, models.TaskStatusClaimed, models.TaskStatusRunning:
			outstanding++
		}
	}

	outcome, err := s.store.GetOutcome(s.outcomeID)
	if err != nil {
		return err
	}

	now := time.Now()
	if outstanding == 0 && convergenceReached(outcome.Convergence) {
		w.Status = models.WorkerStatusCompleted
		w.StoppedAt = &now
	} else {
		w.Status = models.WorkerStatusIdle
	}
	w.ModifiedAt = now
	return s.store.UpdateWorker(w)
}

// convergenceReached mirrors models.ConvergenceState.Advance's window
// default so finalize doesn't need its own notion of "converged".
func convergenceReached(c models.ConvergenceState) bool {
	window := c.Window
	if window <= 0 {
		window = 2
	}
	return c.ConsecutiveZeroIssues >= window
}
