package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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

func newTestOutcome(t *testing.T, id string) *models.Outcome {
	t.Helper()
	now := time.Now()
	return &models.Outcome{
		ID:   id,
		Name: "launch thing",
		Intent: models.Intent{
			Summary: "launch the thing",
			Items: []models.IntentItem{
				{ID: "i1", Title: "ship endpoint", AcceptanceCriteria: []string{"endpoint returns 200"}},
			},
			SuccessCriteria: []string{"no open P1 bugs"},
		},
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityReady,
		WorkingDir:      t.TempDir(),
		GitMode:         models.GitModeNone,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
}

type singleRunnerFactory struct {
	text string
}

func (f *singleRunnerFactory) NewRunner() llmrunner.Runner {
	return llmrunner.NewFakeRunner([]llmrunner.StreamEvent{
		{Type: llmrunner.StreamEventResult, Message: f.text},
	}, nil)
}

func TestReview_CleanCycleAdvancesConvergence(t *testing.T) {
	db := setupTestDB(t)
	outcome := newTestOutcome(t, "out_1")
	outcome.Convergence = models.ConvergenceState{ConsecutiveZeroIssues: 1, Window: 2}
	require.NoError(t, db.CreateOutcome(outcome))

	output := "CRITERION: endpoint returns 200|PASS|curl output shows 200\n" +
		"CRITERION: no open P1 bugs|PASS|none found\n"
	pool := llmrunner.NewPool(&singleRunnerFactory{text: output}, 1)
	r := NewReviewer(db, taskengine.New(db), pool)

	cycle, err := r.Review(context.Background(), "out_1", false)
	require.NoError(t, err)
	require.Equal(t, 1, cycle.CycleIndex)
	require.Equal(t, 0, cycle.IssuesFound)
	require.Len(t, cycle.Findings, 2)

	got, err := db.GetOutcome("out_1")
	require.NoError(t, err)
	require.Equal(t, 2, got.Convergence.ConsecutiveZeroIssues)
	require.Equal(t, models.OutcomeStatusAchieved, got.Status)
}

func TestReview_IssuesCreateRemediationTasks(t *testing.T) {
	db := setupTestDB(t)
	outcome := newTestOutcome(t, "out_1")
	require.NoError(t, db.CreateOutcome(outcome))
	existing := &models.Task{
		ID: "t0", OutcomeID: "out_1", Title: "seed", Priority: 3,
		MaxAttempts: 1, Phase: models.TaskPhaseExecution, Status: models.TaskStatusCompleted,
	}
	require.NoError(t, db.CreateTask(existing))

	output := "CRITERION: endpoint returns 200|FAIL|500 on load\n" +
		"ISSUE(high): endpoint throws 500 under load\n" +
		"ISSUE(low): minor typo in docs\n"
	pool := llmrunner.NewPool(&singleRunnerFactory{text: output}, 1)
	r := NewReviewer(db, taskengine.New(db), pool)

	cycle, err := r.Review(context.Background(), "out_1", false)
	require.NoError(t, err)
	require.Equal(t, 2, cycle.IssuesFound)
	require.NotEmpty(t, cycle.Issues[0].RemediationTaskID)
	require.Empty(t, cycle.Issues[1].RemediationTaskID)

	task, err := db.GetTask(cycle.Issues[0].RemediationTaskID)
	require.NoError(t, err)
	require.True(t, task.FromReview)
	require.Equal(t, cycle.CycleIndex, task.ReviewCycle)
	require.Greater(t, task.Priority, 3)

	got, err := db.GetOutcome("out_1")
	require.NoError(t, err)
	require.Equal(t, 0, got.Convergence.ConsecutiveZeroIssues)
	require.NotEqual(t, models.OutcomeStatusAchieved, got.Status)
}

func TestReview_CriteriaOnlySkipsIssuesAndConvergence(t *testing.T) {
	db := setupTestDB(t)
	outcome := newTestOutcome(t, "out_1")
	require.NoError(t, db.CreateOutcome(outcome))

	output := "CRITERION: endpoint returns 200|PASS|looks fine\n" +
		"ISSUE(critical): should be ignored in criteria-only mode\n"
	pool := llmrunner.NewPool(&singleRunnerFactory{text: output}, 1)
	r := NewReviewer(db, taskengine.New(db), pool)

	cycle, err := r.Review(context.Background(), "out_1", true)
	require.NoError(t, err)
	require.True(t, cycle.CriteriaOnly)
	require.Empty(t, cycle.Issues)

	got, err := db.GetOutcome("out_1")
	require.NoError(t, err)
	require.Equal(t, 0, got.Convergence.ConsecutiveZeroIssues)

	tasks, err := db.ListTasksByOutcome("out_1")
	require.NoError(t, err)
	require.Empty(t, tasks)
}
