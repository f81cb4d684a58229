package capability

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/internal/workspace"
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

func newTestOutcome(approach string) *models.Outcome {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Outcome{
		ID:   "out_1",
		Name: "ship the thing",
		Intent: models.Intent{
			Summary:         "ship it",
			SuccessCriteria: []string{"tests pass"},
		},
		Design:          models.DesignDoc{Version: 1, Text: approach},
		Status:          models.OutcomeStatusActive,
		CapabilityReady: models.CapabilityNotStarted,
		GitMode:         models.GitModeWorktree,
		CreatedAt:       now,
		ModifiedAt:      now,
	}
}

func TestPlanner_Plan_NoNeedsFlipsReadyImmediately(t *testing.T) {
	db := setupTestDB(t)
	outcome := newTestOutcome("Use simple file-backed storage.")
	require.NoError(t, db.CreateOutcome(outcome))

	planner := NewPlanner(db, taskengine.New(db))
	needs, err := planner.Plan(outcome, true)
	require.NoError(t, err)
	require.Empty(t, needs)
	require.Equal(t, models.CapabilityReady, outcome.CapabilityReady)
}

func TestPlanner_Plan_CreatesCapabilityTasksAndGatesBuilding(t *testing.T) {
	db := setupTestDB(t)
	outcome := newTestOutcome("Uses Tavily API for search.")
	require.NoError(t, db.CreateOutcome(outcome))

	engine := taskengine.New(db)
	planner := NewPlanner(db, engine)
	needs, err := planner.Plan(outcome, true)
	require.NoError(t, err)
	require.Len(t, needs, 1)
	require.Equal(t, models.CapabilityBuilding, outcome.CapabilityReady)

	tasks, err := db.ListTasksByOutcome("out_1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, models.TaskPhaseCapability, tasks[0].Phase)
	require.NotNil(t, tasks[0].CapabilityType)
	require.Equal(t, models.CapabilitySkill, *tasks[0].CapabilityType)
}

func TestRecompute_FlipsReadyOnceAllCapabilityTasksComplete(t *testing.T) {
	db := setupTestDB(t)
	outcome := newTestOutcome("Uses Tavily API for search.")
	require.NoError(t, db.CreateOutcome(outcome))

	engine := taskengine.New(db)
	planner := NewPlanner(db, engine)
	_, err := planner.Plan(outcome, true)
	require.NoError(t, err)

	flipped, err := Recompute(db, outcome)
	require.NoError(t, err)
	require.False(t, flipped, "should not flip while capability task is still pending")
	require.Equal(t, models.CapabilityBuilding, outcome.CapabilityReady)

	task, err := engine.Claim("out_1", "worker_1")
	require.NoError(t, err)
	require.NoError(t, engine.Complete(task.ID))

	flipped, err = Recompute(db, outcome)
	require.NoError(t, err)
	require.True(t, flipped)
	require.Equal(t, models.CapabilityReady, outcome.CapabilityReady)

	// Idempotent: calling again is a no-op.
	flipped, err = Recompute(db, outcome)
	require.NoError(t, err)
	require.False(t, flipped)
}

func TestScanner_ScanSkills(t *testing.T) {
	db := setupTestDB(t)
	root := t.TempDir()
	ws := workspace.New(root)
	require.NoError(t, ws.EnsureLayout())

	content := "---\nname: tavily-api\ntriggers:\n  - search\nrequires:\n  - TAVILY_API_KEY\ndescription: wraps search\n---\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws.SkillsDir(), "tavily.md"), []byte(content), 0o644))

	scanner := NewScanner(db, ws)
	caps, err := scanner.ScanSkills("out_1")
	require.NoError(t, err)
	require.Len(t, caps, 1)
	require.Equal(t, "tavily-api", caps[0].Name)
	require.Equal(t, models.CapabilityStatusReady, caps[0].Status)
	require.Equal(t, []string{"TAVILY_API_KEY"}, caps[0].RequiredEnvKeys)

	// Re-scanning updates the existing row rather than duplicating it.
	caps, err = scanner.ScanSkills("out_1")
	require.NoError(t, err)
	require.Len(t, caps, 1)
}

func TestScanner_CreateFile(t *testing.T) {
	db := setupTestDB(t)
	root := t.TempDir()
	ws := workspace.New(root)
	scanner := NewScanner(db, ws)

	skillBody := "---\nname: weather-api\ntriggers:\n  - forecast\ndescription: wraps a weather API\n---\n"
	cap, err := scanner.CreateFile("out_1", models.CapabilitySkill, "Weather API", []byte(skillBody))
	require.NoError(t, err)
	require.Equal(t, "weather-api", cap.Name)
	require.Equal(t, models.CapabilityStatusReady, cap.Status)
	require.FileExists(t, filepath.Join(ws.SkillsDir(), "weather-api.md"))

	toolBody := "#!/bin/sh\n# REQUIRES: API_TOKEN\necho ok\n"
	toolCap, err := scanner.CreateFile("out_1", models.CapabilityTool, "deploy", []byte(toolBody))
	require.NoError(t, err)
	require.Equal(t, "deploy", toolCap.Name)
	require.Equal(t, models.ArtifactKindExecutable, toolCap.Kind)
	info, err := os.Stat(filepath.Join(ws.ToolsDir(), "deploy"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}
