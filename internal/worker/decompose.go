package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/internal/llmrunner"
	"github.com/marcusdietz/ralph/internal/store"
	"github.com/marcusdietz/ralph/internal/taskengine"
	"github.com/marcusdietz/ralph/pkg/models"
)

// decompositionPromptTemplate mirrors the teacher's decomposer.go prompt
// shape: ask for a flat JSON array of subtasks whose union satisfies the
// original task (spec §4.2 step 6).
const decompositionPromptTemplate = `Break this task into smaller subtasks whose combined completion satisfies it. Each subtask should be independently completable.

Task: %s
%s

Return ONLY a JSON array of subtasks with this exact structure (no other text):
[
  {"title": "Short subtask title", "description": "Detailed description", "depends_on": ["title of a subtask this depends on"]}
]

Use an empty array for depends_on if there are no dependencies.`

type decomposedSubtask struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DependsOn   []string `json:"depends_on"`
}

// Decomposer breaks a task into subtasks via an LLM invocation, grounded on
// the teacher's internal/orchestrator/decomposer.go.
type Decomposer struct {
	store  *store.DB
	engine *taskengine.Engine
	pool   *llmrunner.Pool
}

// NewDecomposer returns a Decomposer backed by db/engine, invoking runners
// through pool.
func NewDecomposer(db *store.DB, engine *taskengine.Engine, pool *llmrunner.Pool) *Decomposer {
	return &Decomposer{store: db, engine: engine, pool: pool}
}

// Decompose replaces task with generated subtasks: it marks the original
// completed (its work is now tracked by its subtasks) and creates the
// subtasks depending on each other as described by the model's response.
func (d *Decomposer) Decompose(ctx context.Context, task *models.Task) error {
	prompt := fmt.Sprintf(decompositionPromptTemplate, task.TaskIntent.Summary, task.TaskApproach.Summary)

	runner, release, err := d.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := runner.Start(prompt, ""); err != nil {
		return corerr.Wrap(corerr.LLMTransient, "start decomposition runner", err)
	}

	var response strings.Builder
	for event := range runner.Output() {
		switch event.Type {
		case llmrunner.StreamEventAssistant, llmrunner.StreamEventResult:
			response.WriteString(event.Message)
		case llmrunner.StreamEventError:
			if event.Error != "" {
				return corerr.Wrap(corerr.LLMTransient, "decomposition stream error: "+event.Error, nil)
			}
		}
	}
	if err := runner.Wait(); err != nil {
		return corerr.Wrap(corerr.LLMTransient, "wait for decomposition runner", err)
	}

	subtasks, err := parseDecomposition(response.String())
	if err != nil {
		return err
	}

	newTasks := make([]*models.Task, 0, len(subtasks))
	titleToID := make(map[string]string, len(subtasks))
	now := time.Now()
	for _, st := range subtasks {
		id := uuid.NewString()
		titleToID[st.Title] = id
		newTasks = append(newTasks, &models.Task{
			ID:           id,
			OutcomeID:    task.OutcomeID,
			Title:        st.Title,
			Description:  st.Description,
			TaskIntent:   models.TaskIntent{Summary: st.Description},
			TaskApproach: models.TaskApproach{Summary: task.TaskApproach.Summary},
			Priority:     task.Priority,
			MaxAttempts:  task.MaxAttempts,
			Phase:        task.Phase,
			Status:       models.TaskStatusPending,
			CreatedAt:    now,
			ModifiedAt:   now,
		})
	}
	for i, st := range subtasks {
		for _, depTitle := range st.DependsOn {
			depID, ok := titleToID[depTitle]
			if !ok {
				return corerr.Validationf("decomposition referenced unknown dependency title %q", depTitle)
			}
			newTasks[i].DependsOn = append(newTasks[i].DependsOn, depID)
		}
	}

	if err := d.engine.BatchCreate(newTasks); err != nil {
		return err
	}

	task.Status = models.TaskStatusCompleted
	task.ModifiedAt = time.Now()
	return d.store.UpdateTask(task)
}

// parseDecomposition extracts the JSON array from raw, tolerating
// surrounding prose the way the teacher's parseDecompositionResponse does.
func parseDecomposition(raw string) ([]decomposedSubtask, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, corerr.Validationf("no JSON array found in decomposition response")
	}
	var subtasks []decomposedSubtask
	if err := json.Unmarshal([]byte(raw[start:end+1]), &subtasks); err != nil {
		return nil, corerr.Wrap(corerr.Validation, "unmarshal decomposition response", err)
	}
	if len(subtasks) == 0 {
		return nil, corerr.Validationf("decomposition returned zero subtasks")
	}
	return subtasks, nil
}
