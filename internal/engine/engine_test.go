package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcusdietz/ralph/internal/corerr"
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

type scriptedFactory struct {
	text string
}

func (f *scriptedFactory) NewRunner() llmrunner.Runner {
	return llmrunner.NewFakeRunner([]llmrunner.StreamEvent{
		{Type: llmrunner.StreamEventResult, Message: f.text},
	}, nil)
}

func newTestEngine(t *testing.T, scriptedText string) *Engine {
	t.Helper()
	db := setupTestDB(t)
	pool := llmrunner.NewPool(&scriptedFactory{text: scriptedText}, 2)
	return New(db, pool, Config{IterationTimeout: time.Second, EscalationThreshold: 0.8})
}

func TestOutcome_CreateGetArchive(t *testing.T) {
	e := newTestEngine(t, "")

	parent, err := e.CreateOutcome("parent thing", "do the thing", "")
	require.NoError(t, err)

	child, err := e.CreateOutcome("child thing", "do the sub-thing", parent.ID)
	require.NoError(t, err)
	require.Equal(t, parent.ID, child.ParentID)

	// Parent has a child, so archiving it is refused.
	require.Error(t, e.Archive(parent.ID))

	require.NoError(t, e.Archive(child.ID))
	got, err := e.GetOutcome(child.ID)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeStatusArchived, got.Status)

	// Now that the only child is archived (no longer blocking leafhood by
	// id reference removal -- ChildOutcomeIDs still returns it), archiving
	// the parent remains refused until the child relationship is gone.
	require.Error(t, e.Archive(parent.ID))
}

func TestOutcome_UpdateIntentResetsCapabilityReadiness(t *testing.T) {
	e := newTestEngine(t, "")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)

	o.CapabilityReady = models.CapabilityReady
	require.NoError(t, e.store.UpdateOutcome(o))

	updated, err := e.UpdateIntent(o.ID, models.Intent{Summary: "a new intent"})
	require.NoError(t, err)
	require.Equal(t, models.CapabilityNotStarted, updated.CapabilityReady)
}

func TestTask_CreateClaimComplete(t *testing.T) {
	e := newTestEngine(t, "")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)
	o.CapabilityReady = models.CapabilityReady
	require.NoError(t, e.store.UpdateOutcome(o))

	now := time.Now()
	task := &models.Task{
		ID:        "t1",
		OutcomeID: o.ID,
		Title:     "write the thing",
		Status:    models.TaskStatusPending,
		CreatedAt: now,
	}
	require.NoError(t, e.CreateTask(task))

	claimed, err := e.ClaimTask(o.ID, "worker-1")
	require.NoError(t, err)
	require.Equal(t, "t1", claimed.ID)

	require.NoError(t, e.CompleteTask("t1"))
	got, err := e.EnumerateTasks(o.ID, taskengine.Filter{Status: models.TaskStatusCompleted})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestEscalation_OpenAnswerClearsPending(t *testing.T) {
	e := newTestEngine(t, "")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)

	id, err := e.OpenEscalation(o.ID, models.Question{
		Text:    "which backend",
		Options: []models.AmbiguityOption{{ID: "a", Text: "files"}, {ID: "b", Text: "memory"}},
	}, nil, "unclear_requirement")
	require.NoError(t, err)

	pending, err := e.ListPendingEscalations(o.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, e.AnswerEscalation(id, "a", ""))

	pending, err = e.ListPendingEscalations(o.ID)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReview_RunAdvancesConvergence(t *testing.T) {
	e := newTestEngine(t, "CRITERION: it works|PASS|ran fine")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)
	o.WorkingDir = t.TempDir()
	require.NoError(t, e.store.UpdateOutcome(o))

	cycle, err := e.RunReview(context.Background(), o.ID, false)
	require.NoError(t, err)
	require.Equal(t, 1, cycle.CycleIndex)
	require.Equal(t, 0, cycle.IssuesFound)
}

func TestRetro_RunWithNoEscalationsCompletesEmpty(t *testing.T) {
	e := newTestEngine(t, "")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)

	job, err := e.RunRetro(context.Background(), o.ID)
	require.NoError(t, err)
	require.Equal(t, models.AnalysisJobCompleted, job.Status)
	require.Empty(t, job.Result.Proposals)
}

func TestWorker_StartRejectsEmptyQueue(t *testing.T) {
	e := newTestEngine(t, "")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)
	o.CapabilityReady = models.CapabilityReady
	require.NoError(t, e.store.UpdateOutcome(o))

	_, err = e.StartWorker(o.ID, "worker-1")
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.Validation))
}

func TestWorker_StartRejectsNonLeafOutcome(t *testing.T) {
	e := newTestEngine(t, "")
	parent, err := e.CreateOutcome("parent", "brief", "")
	require.NoError(t, err)
	_, err = e.CreateOutcome("child", "brief", parent.ID)
	require.NoError(t, err)

	_, err = e.StartWorker(parent.ID, "worker-1")
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.Validation))
}

func TestWorker_StartRejectsSecondRunningWorkerWithoutParallel(t *testing.T) {
	e := newTestEngine(t, "")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)
	o.CapabilityReady = models.CapabilityReady
	require.NoError(t, e.store.UpdateOutcome(o))

	require.NoError(t, e.CreateTask(&models.Task{
		ID: "t1", OutcomeID: o.ID, Title: "a task",
		Status: models.TaskStatusPending, CreatedAt: time.Now(),
	}))

	// A non-terminal worker row already exists for this outcome (as if a
	// prior StartWorker is still running); no live supervisor goroutine is
	// needed to exercise the guard itself.
	now := time.Now()
	require.NoError(t, e.store.CreateWorker(&models.Worker{
		ID: "existing", OutcomeID: o.ID, Name: "worker-1",
		Status: models.WorkerStatusRunning, StartedAt: now, CreatedAt: now, ModifiedAt: now,
	}))

	_, err = e.StartWorker(o.ID, "worker-2")
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.Conflict))
}

func TestWorker_StartCompletesAfterDrainingQueue(t *testing.T) {
	e := newTestEngine(t, "ALIGNMENT: 90\nON_TRACK: yes\nTASK_COMPLETE: yes\n")
	o, err := e.CreateOutcome("thing", "brief", "")
	require.NoError(t, err)
	o.CapabilityReady = models.CapabilityReady
	require.NoError(t, e.store.UpdateOutcome(o))

	require.NoError(t, e.CreateTask(&models.Task{
		ID: "t1", OutcomeID: o.ID, Title: "write the thing",
		Status: models.TaskStatusPending, CreatedAt: time.Now(),
	}))

	workerID, err := e.StartWorker(o.ID, "worker-1")
	require.NoError(t, err)

	require.NoError(t, e.Wait(workerID))

	w, err := e.GetWorker(workerID)
	require.NoError(t, err)
	require.Equal(t, models.WorkerStatusCompleted, w.Status)
}

func TestOutcome_TreeAndOptimizeOps(t *testing.T) {
	e := newTestEngine(t, "")
	parent, err := e.CreateOutcome("parent", "brief", "")
	require.NoError(t, err)
	child, err := e.CreateOutcome("child", "brief", parent.ID)
	require.NoError(t, err)

	tree, err := e.Tree(parent.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Equal(t, parent.ID, tree[0].Outcome.ID)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, child.ID, tree[0].Children[0].Outcome.ID)

	updated, err := e.IntentOptimize(parent.ID, "SUMMARY: ship it\nCRITERION: it works\n")
	require.NoError(t, err)
	require.Equal(t, "ship it", updated.Intent.Summary)
	require.Equal(t, []string{"it works"}, updated.Intent.SuccessCriteria)

	updated, err = e.ApproachOptimize(parent.ID, "do it this way")
	require.NoError(t, err)
	require.Equal(t, 1, updated.Design.Version)
	require.Equal(t, "do it this way", updated.Design.Text)

	updated, err = e.ApproachOptimize(parent.ID, "do it a better way")
	require.NoError(t, err)
	require.Equal(t, 2, updated.Design.Version)
}

func TestMerge_CoordinatorIsMemoizedPerOutcome(t *testing.T) {
	e := newTestEngine(t, "")
	dir := t.TempDir()

	first := e.coordinator("out_1", dir)
	second := e.coordinator("out_1", dir)
	require.Same(t, first, second)

	e.Close()
}
