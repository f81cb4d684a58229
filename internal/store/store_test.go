package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcusdietz/ralph/pkg/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestOutcome(id string) *models.Outcome {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Outcome{
		ID:   id,
		Name: "ship the thing",
		Intent: models.Intent{
			Summary:         "ship it",
			SuccessCriteria: []string{"tests pass"},
		},
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityNotStarted,
		GitMode:         models.GitModeWorktree,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
}

func TestOutcomeRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	o := newTestOutcome("out_1")
	require.NoError(t, db.CreateOutcome(o))

	got, err := db.GetOutcome("out_1")
	require.NoError(t, err)
	require.Equal(t, o.Name, got.Name)
	require.Equal(t, o.Intent.SuccessCriteria, got.Intent.SuccessCriteria)
	require.Equal(t, models.GitModeWorktree, got.GitMode)

	got.Status = models.OutcomeStatusAchieved
	got.Convergence.ConsecutiveZeroIssues = 2
	require.NoError(t, db.UpdateOutcome(got))

	reloaded, err := db.GetOutcome("out_1")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeStatusAchieved, reloaded.Status)
	require.Equal(t, 2, reloaded.Convergence.ConsecutiveZeroIssues)
}

func TestGetOutcomeNotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetOutcome("missing")
	require.Error(t, err)
}

func TestTaskClaimIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	task := &models.Task{
		ID:          "task_1",
		OutcomeID:   "out_1",
		Title:       "write the parser",
		Priority:    1,
		MaxAttempts: 3,
		Phase:       models.TaskPhaseExecution,
		Status:      models.TaskStatusPending,
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	require.NoError(t, db.CreateTask(task))

	require.NoError(t, db.ClaimTask("task_1", "worker_a", now))
	err := db.ClaimTask("task_1", "worker_b", now)
	require.Error(t, err, "second claim of an already-claimed task must fail")

	got, err := db.GetTask("task_1")
	require.NoError(t, err)
	require.Equal(t, "worker_a", got.Claimant)
	require.Equal(t, models.TaskStatusClaimed, got.Status)
}

func TestProgressSeqIsMonotonic(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	worker := &models.Worker{
		ID:        "wrk_1",
		OutcomeID: "out_1",
		Name:      "alpha",
		Status:    models.WorkerStatusRunning,
		StartedAt: now, CreatedAt: now, ModifiedAt: now,
	}
	require.NoError(t, db.CreateWorker(worker))

	for i := 0; i < 3; i++ {
		entry := &models.ProgressEntry{
			ID:        "prg_" + string(rune('a'+i)),
			WorkerID:  "wrk_1",
			Iteration: i,
			Content:   "did a thing",
			CreatedAt: now,
		}
		require.NoError(t, db.AppendProgress(entry))
	}

	entries, err := db.ListProgressByWorker("wrk_1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		require.Equal(t, i+1, e.Seq)
	}
}

func TestEscalationBlocksAffectedTasks(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	esc := &models.Escalation{
		ID:        "esc_1",
		OutcomeID: "out_1",
		TriggerType: "unclear_requirement",
		Question: models.Question{
			Text: "which auth provider should we use?",
			Options: []models.AmbiguityOption{
				{ID: "opt_a", Text: "OAuth"},
				{ID: "opt_b", Text: "API keys"},
			},
		},
		AffectedTasks: []string{"task_1"},
		Status:        models.EscalationStatusPending,
		CreatedAt:     now,
	}
	require.NoError(t, db.CreateEscalation(esc))

	pending, err := db.ListPendingEscalationsByOutcome("out_1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, []string{"task_1"}, pending[0].AffectedTasks)

	esc.Status = models.EscalationStatusAnswered
	esc.SelectedOptionID = "opt_a"
	resolvedAt := now.Add(time.Minute)
	esc.ResolvedAt = &resolvedAt
	require.NoError(t, db.UpdateEscalation(esc))

	pending, err = db.ListPendingEscalationsByOutcome("out_1")
	require.NoError(t, err)
	require.Empty(t, pending)

	got, err := db.GetEscalation("esc_1")
	require.NoError(t, err)
	require.Equal(t, "OAuth", got.SelectedOptionText())
}

func TestConvergenceWindow(t *testing.T) {
	var c models.ConvergenceState
	c.Window = 2

	require.False(t, c.Advance(1, 3))
	require.False(t, c.Advance(2, 0))
	require.True(t, c.Advance(3, 0))
	require.False(t, c.Advance(4, 1))
}

func TestAnalysisJobSingleRunningPerOutcome(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job := &models.AnalysisJob{
		ID: "job_1", OutcomeID: "out_1",
		Status: models.AnalysisJobRunning, CreatedAt: now,
	}
	require.NoError(t, db.CreateAnalysisJob(job))

	second := &models.AnalysisJob{
		ID: "job_2", OutcomeID: "out_1",
		Status: models.AnalysisJobPending, CreatedAt: now,
	}
	require.Error(t, db.CreateAnalysisJob(second))
}
