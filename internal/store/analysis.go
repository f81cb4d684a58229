package store

import (
	"database/sql"
	"errors"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateAnalysisJob inserts a new retrospective analysis job, refusing if
// one is already running for the outcome (spec §4.8 invariant: at most
// one running job per outcome).
func (db *DB) CreateAnalysisJob(j *models.AnalysisJob) error {
	return db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRow(`
			SELECT COUNT(*) FROM analysis_jobs WHERE outcome_id = ? AND status IN (?, ?)
		`, j.OutcomeID, string(models.AnalysisJobPending), string(models.AnalysisJobRunning))
		var n int
		if err := row.Scan(&n); err != nil {
			return corerr.Wrap(corerr.Internal, "count active analysis jobs", err)
		}
		if n > 0 {
			return corerr.Conflictf("outcome %s already has a running analysis job", j.OutcomeID)
		}

		result, err := encodeJSON(j.Result)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO analysis_jobs (
				id, outcome_id, status, progress, result, error,
				created_at, started_at, finished_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			j.ID, j.OutcomeID, string(j.Status), nullString(j.Progress), result,
			nullString(j.Error), formatTime(j.CreatedAt), nullTime(j.StartedAt), nullTime(j.FinishedAt),
		)
		if err != nil {
			return corerr.Wrap(corerr.Internal, "insert analysis job", err)
		}
		return nil
	})
}

// GetAnalysisJob fetches a single analysis job by id.
func (db *DB) GetAnalysisJob(id string) (*models.AnalysisJob, error) {
	row := db.QueryRow(analysisJobSelectQuery+" WHERE id = ?", id)
	j, err := scanAnalysisJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("analysis job %s not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan analysis job", err)
	}
	return j, nil
}

// UpdateAnalysisJob replaces an analysis job's mutable fields.
func (db *DB) UpdateAnalysisJob(j *models.AnalysisJob) error {
	result, err := encodeJSON(j.Result)
	if err != nil {
		return err
	}

	res, err := db.Exec(`
		UPDATE analysis_jobs SET
			status = ?, progress = ?, result = ?, error = ?,
			started_at = ?, finished_at = ?
		WHERE id = ?
	`,
		string(j.Status), nullString(j.Progress), result, nullString(j.Error),
		nullTime(j.StartedAt), nullTime(j.FinishedAt), j.ID,
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "update analysis job", err)
	}
	return checkUpdated(res, "analysis job", j.ID)
}

// ListAnalysisJobsByOutcome returns every analysis job for an outcome.
func (db *DB) ListAnalysisJobsByOutcome(outcomeID string) ([]*models.AnalysisJob, error) {
	rows, err := db.Query(analysisJobSelectQuery+" WHERE outcome_id = ? ORDER BY created_at ASC", outcomeID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list analysis jobs", err)
	}
	defer rows.Close()

	var out []*models.AnalysisJob
	for rows.Next() {
		j, err := scanAnalysisJob(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan analysis job row", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const analysisJobSelectQuery = `
	SELECT id, outcome_id, status, progress, result, error,
		created_at, started_at, finished_at
	FROM analysis_jobs`

func scanAnalysisJob(row rowScanner) (*models.AnalysisJob, error) {
	var j models.AnalysisJob
	var progress, errStr sql.NullString
	var result string
	var createdAt string
	var startedAt, finishedAt sql.NullString

	err := row.Scan(&j.ID, &j.OutcomeID, &j.Status, &progress, &result, &errStr,
		&createdAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	j.Progress = progress.String
	j.Error = errStr.String

	if err := decodeJSON(result, &j.Result); err != nil {
		return nil, err
	}

	j.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	j.StartedAt = parseNullableTime(startedAt)
	j.FinishedAt = parseNullableTime(finishedAt)

	return &j, nil
}
