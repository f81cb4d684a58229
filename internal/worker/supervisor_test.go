package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcusdietz/ralph/internal/escalation"
	"github.com/marcusdietz/ralph/internal/llmrunner"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/pkg/models"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestOutcome(id string) *models.Outcome {
	now := time.Now()
	return &models.Outcome{
		ID:              id,
		Name:            "ship it",
		Intent:          models.Intent{Summary: "ship the thing"},
		Design:          models.DesignDoc{Text: "do it directly"},
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityReady,
		GitMode:         models.GitModeNone,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
}

func newTestTask(id, outcomeID string) *models.Task {
	return &models.Task{
		ID:          id,
		OutcomeID:   outcomeID,
		Title:       "implement feature",
		TaskIntent:  models.TaskIntent{Summary: "implement the feature"},
		MaxAttempts: 3,
		Phase:       models.TaskPhaseExecution,
		Status:      models.TaskStatusPending,
	}
}

// queueFactory hands out pre-scripted FakeRunners in order, one per
// Acquire/NewRunner call, so a test can script a different raw output per
// loop iteration.
type queueFactory struct {
	mu      sync.Mutex
	scripts [][]llmrunner.StreamEvent
	next    int
}

func (f *queueFactory) NewRunner() llmrunner.Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.next
	if idx >= len(f.scripts) {
		idx = len(f.scripts) - 1
	}
	f.next++
	return llmrunner.NewFakeRunner(f.scripts[idx], nil)
}

func resultEvent(text string) llmrunner.StreamEvent {
	return llmrunner.StreamEvent{Type: llmrunner.StreamEventResult, Message: text}
}

func newSupervisor(t *testing.T, db *store.DB, outcomeID string, scripts [][]llmrunner.StreamEvent) *Supervisor {
	t.Helper()
	engine := taskengine.New(db)
	resolver := escalation.NewResolver(db, 0.8)
	pool := llmrunner.NewPool(&queueFactory{scripts: scripts}, 4)
	sup, err := New(Config{
		Store:            db,
		Engine:           engine,
		Resolver:         resolver,
		Pool:             pool,
		IterationTimeout: 5 * time.Second,
	}, outcomeID, "worker-1")
	require.NoError(t, err)
	return sup
}

func TestSupervisor_CompletesTaskAndIdlesOnEmptyQueue(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	sup := newSupervisor(t, db, "out_1", [][]llmrunner.StreamEvent{
		{resultEvent("ALIGNMENT: 90\nON_TRACK: yes\nTASK_COMPLETE: yes\n")},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Run(ctx))

	task, err := db.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, task.Status)

	w, err := db.GetWorker(sup.ID())
	require.NoError(t, err)
	require.Equal(t, models.WorkerStatusIdle, w.Status)
}

func TestSupervisor_CompletesWorkerWhenConvergedAndEmpty(t *testing.T) {
	db := setupTestDB(t)
	outcome := newTestOutcome("out_1")
	outcome.Convergence = models.ConvergenceState{ConsecutiveZeroIssues: 2, Window: 2}
	require.NoError(t, db.CreateOutcome(outcome))

	sup := newSupervisor(t, db, "out_1", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Run(ctx))

	w, err := db.GetWorker(sup.ID())
	require.NoError(t, err)
	require.Equal(t, models.WorkerStatusCompleted, w.Status)
	require.NotNil(t, w.StoppedAt)
}

func TestSupervisor_DriftStreakFailsTask(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	task := newTestTask("t1", "out_1")
	task.MaxAttempts = 1
	require.NoError(t, db.CreateTask(task))

	poorOutput := "ALIGNMENT: 20\nON_TRACK: no\nDRIFT: wandered off approach\n"
	sup := newSupervisor(t, db, "out_1", [][]llmrunner.StreamEvent{
		{resultEvent(poorOutput)},
		{resultEvent(poorOutput)},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Run(ctx))

	got, err := db.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusFailed, got.Status)
}

func TestSupervisor_AmbiguityOpensEscalationAndWaits(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	ambiguous := "ALIGNMENT: 60\n" +
		"AMBIGUITY: Should this use file storage?\n" +
		"OPTION: file|yes, file-backed\n" +
		"OPTION: memory|no, memory only\n" +
		"TRIGGER_TYPE: unclear_requirement\n"
	done := "ALIGNMENT: 90\nTASK_COMPLETE: yes\n"

	sup := newSupervisor(t, db, "out_1", [][]llmrunner.StreamEvent{
		{resultEvent(ambiguous)},
		{resultEvent(done)},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- sup.Run(ctx) }()

	// Wait for the escalation to appear, then answer it.
	var escID string
	require.Eventually(t, func() bool {
		pending, err := db.ListPendingEscalationsByOutcome("out_1")
		require.NoError(t, err)
		if len(pending) == 0 {
			return false
		}
		escID = pending[0].ID
		return true
	}, 5*time.Second, 50*time.Millisecond)

	w, err := db.GetWorker(sup.ID())
	require.NoError(t, err)
	require.Equal(t, models.WorkerStatusWaiting, w.Status)

	resolver := escalation.NewResolver(db, 0.8)
	require.NoError(t, resolver.Answer(escID, "file", "use file storage"))

	select {
	case err := <-runErrCh:
		require.NoError(t, err)
	case <-time.After(8 * time.Second):
		t.Fatal("supervisor did not finish after escalation was answered")
	}

	task, err := db.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, task.Status)
	require.Len(t, task.TaskApproach.Notes, 1)
}

func TestSupervisor_StopTransitionsToFailed(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	sup := newSupervisor(t, db, "out_1", [][]llmrunner.StreamEvent{
		{resultEvent("ALIGNMENT: 90\nTASK_COMPLETE: yes\n")},
	})
	sup.Control().Stop("operator requested shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sup.Run(ctx))

	w, err := db.GetWorker(sup.ID())
	require.NoError(t, err)
	require.Equal(t, models.WorkerStatusFailed, w.Status)
	require.NotNil(t, w.StoppedAt)
}
