package retro

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcusdietz/ralph/internal/llmrunner"
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
	now := time.Now()
	return &models.Outcome{
		ID:              id,
		Name:            "main thing",
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityReady,
		GitMode:         models.GitModeNone,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
}

func newResolvedEscalation(id, outcomeID, triggerType, questionText string) *models.Escalation {
	now := time.Now()
	return &models.Escalation{
		ID:          id,
		OutcomeID:   outcomeID,
		TriggerType: triggerType,
		Question:    models.Question{Text: questionText, Options: []models.AmbiguityOption{{ID: "a", Text: "a"}, {ID: "b", Text: "b"}}},
		Status:      models.EscalationStatusAnswered,
		ResolvedAt:  &now,
		CreatedAt:   now,
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

func TestEngine_RunClustersAndProposes(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateEscalation(newResolvedEscalation("e1", "out_1", "unclear_requirement", "should storage use files or memory")))
	require.NoError(t, db.CreateEscalation(newResolvedEscalation("e2", "out_1", "unclear_requirement", "should storage be file based or in memory")))

	output := "TITLE: Clarify storage defaults upfront\n" +
		"SUMMARY: Storage backend ambiguity recurs across tasks.\n" +
		"INTENT: Document and default the storage backend decision.\n" +
		"APPROACH: Add a config default and a decision doc.\n" +
		"TASK: add storage backend config default\n" +
		"TASK: write storage decision doc\n"
	pool := llmrunner.NewPool(&singleRunnerFactory{text: output}, 1)
	e := New(db, pool)

	job, err := e.Run(context.Background(), "out_1")
	require.NoError(t, err)
	require.Equal(t, models.AnalysisJobCompleted, job.Status)
	require.Len(t, job.Result.Clusters, 1)
	require.Equal(t, 2, job.Result.Clusters[0].Occurrences)
	require.Len(t, job.Result.Proposals, 1)

	proposal := job.Result.Proposals[0]
	require.Equal(t, "Clarify storage defaults upfront", proposal.Title)
	require.Len(t, proposal.ProposedTasks, 2)
	require.ElementsMatch(t, []string{"e1", "e2"}, proposal.SourceEscalations)
}

func TestEngine_RunRejectsConcurrentJob(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))

	now := time.Now()
	require.NoError(t, db.CreateAnalysisJob(&models.AnalysisJob{
		ID: "job0", OutcomeID: "out_1", Status: models.AnalysisJobRunning, CreatedAt: now, StartedAt: &now,
	}))

	pool := llmrunner.NewPool(&singleRunnerFactory{text: ""}, 1)
	e := New(db, pool)

	_, err := e.Run(context.Background(), "out_1")
	require.Error(t, err)
}

func TestEngine_RunWithNoEscalationsCompletesEmpty(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))

	pool := llmrunner.NewPool(&singleRunnerFactory{text: ""}, 1)
	e := New(db, pool)

	job, err := e.Run(context.Background(), "out_1")
	require.NoError(t, err)
	require.Equal(t, models.AnalysisJobCompleted, job.Status)
	require.Empty(t, job.Result.Clusters)
	require.Empty(t, job.Result.Proposals)
}

func TestEngine_AcceptMaterializesChildOutcomeAndIncorporatesEscalations(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.CreateOutcome(newTestOutcome("out_1")))
	require.NoError(t, db.CreateEscalation(newResolvedEscalation("e1", "out_1", "unclear_requirement", "storage question")))

	output := "TITLE: Fix storage ambiguity\n" +
		"SUMMARY: Recurring confusion about storage backend.\n" +
		"INTENT: Decide the storage backend once and document it.\n" +
		"APPROACH: Add a default and a doc.\n" +
		"TASK: write storage decision doc\n"
	pool := llmrunner.NewPool(&singleRunnerFactory{text: output}, 1)
	e := New(db, pool)

	job, err := e.Run(context.Background(), "out_1")
	require.NoError(t, err)
	require.Len(t, job.Result.Proposals, 1)

	child, err := e.Accept(job.ID, job.Result.Proposals[0].ID)
	require.NoError(t, err)
	require.Equal(t, "Fix storage ambiguity", child.Name)
	require.NotEmpty(t, child.ParentID)

	parent, err := db.GetOutcome(child.ParentID)
	require.NoError(t, err)
	require.Equal(t, selfImprovementParentName, parent.Name)

	esc, err := db.GetEscalation("e1")
	require.NoError(t, err)
	require.True(t, esc.Incorporated)

	// Accepting again is rejected: the proposal already carries an
	// accepted outcome id.
	_, err = e.Accept(job.ID, job.Result.Proposals[0].ID)
	require.Error(t, err)
}
