package taskengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/store"
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

func newTestOutcome(id string, capReady models.CapabilityReadiness) *models.Outcome {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Outcome{
		ID:   id,
		Name: "ship the thing",
		Intent: models.Intent{
			Summary:         "ship it",
			SuccessCriteria: []string{"tests pass"},
		},
		Status:          models.OutcomeStatusActive,
		CapabilityReady: capReady,
		GitMode:         models.GitModeWorktree,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
}

func newTestTask(id, outcomeID string, deps ...string) *models.Task {
	return &models.Task{
		ID:          id,
		OutcomeID:   outcomeID,
		Title:       "do the thing",
		MaxAttempts: 3,
		Phase:       models.TaskPhaseExecution,
		Status:      models.TaskStatusPending,
		DependsOn:   deps,
	}
}

func TestEngine_CreateRejectsCycle(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	require.NoError(t, e.Create(newTestTask("t1", "out_1")))

	t2 := newTestTask("t2", "out_1", "t1")
	require.NoError(t, e.Create(t2))

	t2.DependsOn = nil
	require.NoError(t, e.Update(t2))

	t1, err := db.GetTask("t1")
	require.NoError(t, err)
	t1.DependsOn = []string{"t2"}
	require.NoError(t, e.Update(t1))

	t2.DependsOn = []string{"t1"}
	err = e.Update(t2)
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.Validation))
}

func TestEngine_CreateRejectsSelfDependency(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	task := newTestTask("t1", "out_1", "t1")
	err := e.Create(task)
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.Validation))
}

func TestEngine_BatchCreateAllowsForwardReferencesWithinBatch(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	t1 := newTestTask("t1", "out_1")
	t2 := newTestTask("t2", "out_1", "t1")
	require.NoError(t, e.BatchCreate([]*models.Task{t1, t2}))

	got, err := db.GetTask("t2")
	require.NoError(t, err)
	require.Equal(t, []string{"t1"}, got.DependsOn)
}

func TestEngine_ClaimSkipsIncompleteDependencies(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	blocker := newTestTask("t1", "out_1")
	blocked := newTestTask("t2", "out_1", "t1")
	require.NoError(t, e.BatchCreate([]*models.Task{blocker, blocked}))

	task, err := e.Claim("out_1", "worker_1")
	require.NoError(t, err)
	require.Equal(t, "t1", task.ID)

	// t2 still depends on t1, which is now claimed but not completed.
	_, err = e.Claim("out_1", "worker_2")
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.NotFound))
}

func TestEngine_ClaimUnblocksAfterDependencyCompletes(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	blocker := newTestTask("t1", "out_1")
	blocked := newTestTask("t2", "out_1", "t1")
	require.NoError(t, e.BatchCreate([]*models.Task{blocker, blocked}))

	_, err := e.Claim("out_1", "worker_1")
	require.NoError(t, err)
	require.NoError(t, e.Complete("t1"))

	task, err := e.Claim("out_1", "worker_2")
	require.NoError(t, err)
	require.Equal(t, "t2", task.ID)
}

func TestEngine_ClaimRespectsCapabilityGating(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityBuilding)))
	e := New(db)

	capTask := newTestTask("cap_1", "out_1")
	capTask.Phase = models.TaskPhaseCapability
	execTask := newTestTask("exec_1", "out_1")

	require.NoError(t, e.BatchCreate([]*models.Task{capTask, execTask}))

	task, err := e.Claim("out_1", "worker_1")
	require.NoError(t, err)
	require.Equal(t, "cap_1", task.ID, "only capability-phase tasks claimable while capabilities are building")
}

func TestEngine_ClaimRespectsRequiredCapabilities(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	task := newTestTask("t1", "out_1")
	task.RequiredCapabilities = []string{models.CapabilityRef(models.CapabilityTool, "search")}
	require.NoError(t, e.Create(task))

	_, err := e.Claim("out_1", "worker_1")
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.NotFound))

	require.NoError(t, db.CreateCapability(&models.Capability{
		ID:        "cap_1",
		OutcomeID: "out_1",
		Type:      models.CapabilityTool,
		Name:      "search",
		Status:    models.CapabilityStatusReady,
	}))

	got, err := e.Claim("out_1", "worker_1")
	require.NoError(t, err)
	require.Equal(t, "t1", got.ID)
}

func TestEngine_ClaimExcludesEscalatedTasks(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	task := newTestTask("t1", "out_1")
	require.NoError(t, e.Create(task))

	require.NoError(t, db.CreateEscalation(&models.Escalation{
		ID:            "esc_1",
		OutcomeID:     "out_1",
		TriggerType:   "unclear_requirement",
		AffectedTasks: []string{"t1"},
		Status:        models.EscalationStatusPending,
	}))

	_, err := e.Claim("out_1", "worker_1")
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.NotFound))
}

func TestEngine_FailRetriesThenPermanentlyFails(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	task := newTestTask("t1", "out_1")
	task.MaxAttempts = 2
	require.NoError(t, e.Create(task))

	require.NoError(t, e.Fail("t1", "boom"))
	got, err := db.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, got.Status)
	require.Equal(t, 1, got.Attempts)

	require.NoError(t, e.Fail("t1", "boom again"))
	got, err = db.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusFailed, got.Status)
	require.Equal(t, 2, got.Attempts)
}

func TestEngine_DeleteRejectsWhenDependedOn(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	t1 := newTestTask("t1", "out_1")
	t2 := newTestTask("t2", "out_1", "t1")
	require.NoError(t, e.BatchCreate([]*models.Task{t1, t2}))

	err := e.Delete("t1")
	require.Error(t, err)
	require.True(t, corerr.Is(err, corerr.Conflict))
}

func TestEngine_EnumerateFiltersByStatusAndPhase(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1", models.CapabilityReady)))
	e := New(db)

	capTask := newTestTask("cap_1", "out_1")
	capTask.Phase = models.TaskPhaseCapability
	execTask := newTestTask("exec_1", "out_1")
	require.NoError(t, e.BatchCreate([]*models.Task{capTask, execTask}))
	require.NoError(t, e.Complete("exec_1"))

	completed, err := e.Enumerate("out_1", Filter{Status: models.TaskStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	require.Equal(t, "exec_1", completed[0].ID)

	capabilities, err := e.Enumerate("out_1", Filter{Phase: models.TaskPhaseCapability})
	require.NoError(t, err)
	require.Len(t, capabilities, 1)
	require.Equal(t, "cap_1", capabilities[0].ID)
}
