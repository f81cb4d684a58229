package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateTask inserts a new task.
func (db *DB) CreateTask(t *models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		return insertTask(tx, t)
	})
}

func insertTask(tx *sql.Tx, t *models.Task) error {
	intent, err := encodeJSON(t.TaskIntent)
	if err != nil {
		return err
	}
	approach, err := encodeJSON(t.TaskApproach)
	if err != nil {
		return err
	}
	dependsOn, err := encodeJSON(t.DependsOn)
	if err != nil {
		return err
	}
	reqCaps, err := encodeJSON(t.RequiredCapabilities)
	if err != nil {
		return err
	}

	var capType sql.NullString
	if t.CapabilityType != nil {
		capType = nullString(string(*t.CapabilityType))
	}

	_, err = tx.Exec(`
		INSERT INTO tasks (
			id, outcome_id, title, description, task_intent, task_approach,
			priority, attempts, max_attempts, phase, capability_type,
			depends_on, required_capabilities, status, claimant,
			from_review, review_cycle, creation_cycle, error,
			created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.OutcomeID, t.Title, nullString(t.Description), intent, approach,
		t.Priority, t.Attempts, t.MaxAttempts, string(t.Phase), capType,
		dependsOn, reqCaps, string(t.Status), nullString(t.Claimant),
		boolToInt(t.FromReview), t.ReviewCycle, t.CreationCycle, nullString(t.Error),
		formatTime(t.CreatedAt), formatTime(t.ModifiedAt),
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "insert task", err)
	}
	return nil
}

// GetTask fetches a single task by id.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(taskSelectQuery+" WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("task %s not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan task", err)
	}
	return t, nil
}

// UpdateTask replaces a task's mutable fields.
func (db *DB) UpdateTask(t *models.Task) error {
	return db.Transaction(func(tx *sql.Tx) error {
		return updateTask(tx, t)
	})
}

func updateTask(tx *sql.Tx, t *models.Task) error {
	intent, err := encodeJSON(t.TaskIntent)
	if err != nil {
		return err
	}
	approach, err := encodeJSON(t.TaskApproach)
	if err != nil {
		return err
	}
	dependsOn, err := encodeJSON(t.DependsOn)
	if err != nil {
		return err
	}
	reqCaps, err := encodeJSON(t.RequiredCapabilities)
	if err != nil {
		return err
	}

	var capType sql.NullString
	if t.CapabilityType != nil {
		capType = nullString(string(*t.CapabilityType))
	}

	res, err := tx.Exec(`
		UPDATE tasks SET
			title = ?, description = ?, task_intent = ?, task_approach = ?,
			priority = ?, attempts = ?, max_attempts = ?, phase = ?,
			capability_type = ?, depends_on = ?, required_capabilities = ?,
			status = ?, claimant = ?, from_review = ?, review_cycle = ?,
			creation_cycle = ?, error = ?, modified_at = ?
		WHERE id = ?
	`,
		t.Title, nullString(t.Description), intent, approach, t.Priority,
		t.Attempts, t.MaxAttempts, string(t.Phase), capType, dependsOn, reqCaps,
		string(t.Status), nullString(t.Claimant), boolToInt(t.FromReview),
		t.ReviewCycle, t.CreationCycle, nullString(t.Error), formatTime(t.ModifiedAt), t.ID,
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "update task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return corerr.Wrap(corerr.Internal, "rows affected", err)
	}
	if n == 0 {
		return corerr.NotFoundf("task %s not found", t.ID)
	}
	return nil
}

// ListTasksByOutcome returns every task belonging to outcomeID.
func (db *DB) ListTasksByOutcome(outcomeID string) ([]*models.Task, error) {
	rows, err := db.Query(taskSelectQuery+" WHERE outcome_id = ? ORDER BY created_at ASC", outcomeID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list tasks", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListClaimableTasks returns every pending task for an outcome, ordered by priority then creation time, the candidate pool for
// the claim algorithm (spec §4.1). Capability-phase filtering and
// dependency/escalation exclusion are applied by the caller, which has the
// full graph in memory.
func (db *DB) ListClaimableTasks(outcomeID string) ([]*models.Task, error) {
	rows, err := db.Query(
		taskSelectQuery+` WHERE outcome_id = ? AND status = ? ORDER BY priority ASC, created_at ASC`,
		outcomeID, string(models.TaskStatusPending),
	)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list claimable tasks", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ClaimTask atomically assigns claimant to task taskID, but only if the
// task is still pending. Returns a conflict error if another claimant won
// the race.
func (db *DB) ClaimTask(taskID, claimant string, now time.Time) error {
	res, err := db.Exec(`
		UPDATE tasks SET status = ?, claimant = ?, modified_at = ?
		WHERE id = ? AND status = ?
	`, string(models.TaskStatusClaimed), claimant, formatTime(now), taskID, string(models.TaskStatusPending))
	if err != nil {
		return corerr.Wrap(corerr.Internal, "claim task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return corerr.Wrap(corerr.Internal, "rows affected", err)
	}
	if n == 0 {
		return corerr.Conflictf("task %s is no longer claimable", taskID)
	}
	return nil
}

const taskSelectQuery = `
	SELECT id, outcome_id, title, description, task_intent, task_approach,
		priority, attempts, max_attempts, phase, capability_type,
		depends_on, required_capabilities, status, claimant,
		from_review, review_cycle, creation_cycle, error,
		created_at, modified_at
	FROM tasks`

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan task row", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var description, claimant, errStr sql.NullString
	var capType sql.NullString
	var intent, approach, dependsOn, reqCaps string
	var fromReview int
	var createdAt, modifiedAt string

	err := row.Scan(
		&t.ID, &t.OutcomeID, &t.Title, &description, &intent, &approach,
		&t.Priority, &t.Attempts, &t.MaxAttempts, &t.Phase, &capType,
		&dependsOn, &reqCaps, &t.Status, &claimant,
		&fromReview, &t.ReviewCycle, &t.CreationCycle, &errStr,
		&createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.Claimant = claimant.String
	t.Error = errStr.String
	t.FromReview = fromReview != 0

	if capType.Valid {
		ct := models.CapabilityType(capType.String)
		t.CapabilityType = &ct
	}

	if err := decodeJSON(intent, &t.TaskIntent); err != nil {
		return nil, err
	}
	if err := decodeJSON(approach, &t.TaskApproach); err != nil {
		return nil, err
	}
	if err := decodeJSON(dependsOn, &t.DependsOn); err != nil {
		return nil, err
	}
	if err := decodeJSON(reqCaps, &t.RequiredCapabilities); err != nil {
		return nil, err
	}

	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	t.ModifiedAt, err = parseTime(modifiedAt)
	if err != nil {
		return nil, err
	}

	return &t, nil
}
