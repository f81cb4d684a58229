package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

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
		CapabilityReady: models.CapabilityReady,
		GitMode:         models.GitModeWorktree,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
}

func newTestTask(id, outcomeID string) *models.Task {
	return &models.Task{
		ID:          id,
		OutcomeID:   outcomeID,
		Title:       "implement persistence",
		MaxAttempts: 3,
		Phase:       models.TaskPhaseExecution,
		Status:      models.TaskStatusPending,
		TaskApproach: models.TaskApproach{
			Summary: "use file-backed storage",
		},
	}
}

func persistenceQuestion() models.Question {
	return models.Question{
		Text: "Should items persist across restarts?",
		Options: []models.AmbiguityOption{
			{ID: "file", Text: "yes, file-backed"},
			{ID: "memory", Text: "no, memory only"},
			{ID: models.BreakIntoSubtasksOptionID, Text: "break into subtasks"},
		},
	}
}

func TestResolver_OpenAndAnswer(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	r := NewResolver(db, 0.8)
	id, err := r.Open("out_1", persistenceQuestion(), []string{"t1"}, "unclear_requirement")
	require.NoError(t, err)

	require.NoError(t, r.Answer(id, "file", "use sqlite for the file"))

	esc, err := db.GetEscalation(id)
	require.NoError(t, err)
	require.Equal(t, models.EscalationStatusAnswered, esc.Status)
	require.NotNil(t, esc.ResolvedAt)

	task, err := db.GetTask("t1")
	require.NoError(t, err)
	require.Len(t, task.TaskApproach.Notes, 1)
	require.Contains(t, task.TaskApproach.Notes[0], "yes, file-backed")
	require.Contains(t, task.TaskApproach.Notes[0], "use sqlite for the file")
}

func TestResolver_AnswerRejectsNonPending(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	r := NewResolver(db, 0.8)
	id, err := r.Open("out_1", persistenceQuestion(), []string{"t1"}, "unclear_requirement")
	require.NoError(t, err)
	require.NoError(t, r.Answer(id, "file", ""))

	err = r.Answer(id, "memory", "")
	require.Error(t, err)
}

func TestResolver_AnswerBreakIntoSubtasksMarksTasksBeforeResolving(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	r := NewResolver(db, 0.8)
	id, err := r.Open("out_1", persistenceQuestion(), []string{"t1"}, "unclear_requirement")
	require.NoError(t, err)

	require.NoError(t, r.Answer(id, models.BreakIntoSubtasksOptionID, ""))

	task, err := db.GetTask("t1")
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusDecompositionPending, task.Status)
	require.Empty(t, task.TaskApproach.Notes, "break-into-subtasks answers don't append approach notes")
}

func TestResolver_AnswerResumesWaitingWorker(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	now := time.Now()
	worker := &models.Worker{
		ID:            "w1",
		OutcomeID:     "out_1",
		Name:          "worker-1",
		Status:        models.WorkerStatusWaiting,
		CurrentTaskID: "t1",
		StartedAt:     now,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	require.NoError(t, db.CreateWorker(worker))

	r := NewResolver(db, 0.8)
	id, err := r.Open("out_1", persistenceQuestion(), []string{"t1"}, "unclear_requirement")
	require.NoError(t, err)
	require.NoError(t, r.Answer(id, "file", ""))

	got, err := db.GetWorker("w1")
	require.NoError(t, err)
	require.Equal(t, models.WorkerStatusRunning, got.Status)
}

func TestResolver_Dismiss(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	r := NewResolver(db, 0.8)
	id, err := r.Open("out_1", persistenceQuestion(), []string{"t1"}, "unclear_requirement")
	require.NoError(t, err)
	require.NoError(t, r.Dismiss(id, "not relevant anymore"))

	esc, err := db.GetEscalation(id)
	require.NoError(t, err)
	require.Equal(t, models.EscalationStatusDismissed, esc.Status)
}

func TestResolver_AutoResolveReusesHighConfidenceMatch(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t2", "out_1")))

	r := NewResolver(db, 0.5)

	id1, err := r.Open("out_1", persistenceQuestion(), []string{"t1"}, "unclear_requirement")
	require.NoError(t, err)
	require.NoError(t, r.Answer(id1, "file", "established convention"))

	id2, err := r.Open("out_1", persistenceQuestion(), []string{"t2"}, "unclear_requirement")
	require.NoError(t, err)

	result, err := r.AutoResolve("out_1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Resolved)
	require.Equal(t, 0, result.Deferred)

	esc, err := db.GetEscalation(id2)
	require.NoError(t, err)
	require.Equal(t, models.EscalationStatusAnswered, esc.Status)
	require.Equal(t, "file", esc.SelectedOptionID)
	require.Greater(t, esc.AutoResolveConfidence, 0.5)
}

func TestResolver_AutoResolveDefersWithoutHistory(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateTask(newTestTask("t1", "out_1")))

	r := NewResolver(db, 0.8)
	_, err := r.Open("out_1", persistenceQuestion(), []string{"t1"}, "unclear_requirement")
	require.NoError(t, err)

	result, err := r.AutoResolve("out_1")
	require.NoError(t, err)
	require.Equal(t, 0, result.Resolved)
	require.Equal(t, 1, result.Deferred)
}
