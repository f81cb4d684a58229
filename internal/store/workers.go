package store

import (
	"database/sql"
	"errors"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateWorker inserts a new worker.
func (db *DB) CreateWorker(w *models.Worker) error {
	_, err := db.Exec(`
		INSERT INTO workers (
			id, outcome_id, name, status, current_task_id, iteration, cost,
			progress_summary, branch_name, last_observation_id,
			started_at, stopped_at, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		w.ID, w.OutcomeID, w.Name, string(w.Status), nullString(w.CurrentTaskID),
		w.Iteration, w.Cost, nullString(w.ProgressSummary), nullString(w.BranchName),
		nullString(w.LastObservationID), formatTime(w.StartedAt), nullTime(w.StoppedAt),
		formatTime(w.CreatedAt), formatTime(w.ModifiedAt),
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "insert worker", err)
	}
	return nil
}

// GetWorker fetches a single worker by id.
func (db *DB) GetWorker(id string) (*models.Worker, error) {
	row := db.QueryRow(workerSelectQuery+" WHERE id = ?", id)
	w, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("worker %s not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan worker", err)
	}
	return w, nil
}

// UpdateWorker replaces a worker's mutable fields.
func (db *DB) UpdateWorker(w *models.Worker) error {
	res, err := db.Exec(`
		UPDATE workers SET
			status = ?, current_task_id = ?, iteration = ?, cost = ?,
			progress_summary = ?, branch_name = ?, last_observation_id = ?,
			stopped_at = ?, modified_at = ?
		WHERE id = ?
	`,
		string(w.Status), nullString(w.CurrentTaskID), w.Iteration, w.Cost,
		nullString(w.ProgressSummary), nullString(w.BranchName),
		nullString(w.LastObservationID), nullTime(w.StoppedAt),
		formatTime(w.ModifiedAt), w.ID,
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "update worker", err)
	}
	return checkUpdated(res, "worker", w.ID)
}

// ListWorkersByOutcome returns every worker belonging to outcomeID.
func (db *DB) ListWorkersByOutcome(outcomeID string) ([]*models.Worker, error) {
	rows, err := db.Query(workerSelectQuery+" WHERE outcome_id = ? ORDER BY created_at ASC", outcomeID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list workers", err)
	}
	defer rows.Close()

	var out []*models.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan worker row", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ActiveWorkerCount returns the number of non-terminal workers for an
// outcome, used to enforce the single-active-worker invariant when
// Outcome.Parallel is false.
func (db *DB) ActiveWorkerCount(outcomeID string) (int, error) {
	row := db.QueryRow(`
		SELECT COUNT(*) FROM workers
		WHERE outcome_id = ? AND status NOT IN (?, ?)
	`, outcomeID, string(models.WorkerStatusCompleted), string(models.WorkerStatusFailed))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, corerr.Wrap(corerr.Internal, "count active workers", err)
	}
	return n, nil
}

const workerSelectQuery = `
	SELECT id, outcome_id, name, status, current_task_id, iteration, cost,
		progress_summary, branch_name, last_observation_id,
		started_at, stopped_at, created_at, modified_at
	FROM workers`

func scanWorker(row rowScanner) (*models.Worker, error) {
	var w models.Worker
	var currentTaskID, progressSummary, branchName, lastObsID sql.NullString
	var stoppedAt sql.NullString
	var startedAt, createdAt, modifiedAt string

	err := row.Scan(
		&w.ID, &w.OutcomeID, &w.Name, &w.Status, &currentTaskID, &w.Iteration, &w.Cost,
		&progressSummary, &branchName, &lastObsID,
		&startedAt, &stoppedAt, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	w.CurrentTaskID = currentTaskID.String
	w.ProgressSummary = progressSummary.String
	w.BranchName = branchName.String
	w.LastObservationID = lastObsID.String
	w.StoppedAt = parseNullableTime(stoppedAt)

	w.StartedAt, err = parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	w.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	w.ModifiedAt, err = parseTime(modifiedAt)
	if err != nil {
		return nil, err
	}

	return &w, nil
}
