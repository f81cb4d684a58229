package store

import (
	"database/sql"
	"errors"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateObservation inserts a new observation. Observations are immutable
// once written, so the store exposes no update method (spec §3 invariant).
func (db *DB) CreateObservation(o *models.Observation) error {
	discoveries, err := encodeJSON(o.Discoveries)
	if err != nil {
		return err
	}
	drift, err := encodeJSON(o.Drift)
	if err != nil {
		return err
	}
	issues, err := encodeJSON(o.Issues)
	if err != nil {
		return err
	}

	var ambiguity sql.NullString
	if o.Ambiguity != nil {
		enc, err := encodeJSON(o.Ambiguity)
		if err != nil {
			return err
		}
		ambiguity = nullString(enc)
	}

	_, err = db.Exec(`
		INSERT INTO observations (
			id, worker_id, iteration, task_id, alignment_score, quality,
			on_track, discoveries, drift, issues, has_ambiguity, ambiguity,
			task_complete, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.WorkerID, o.Iteration, o.TaskID, o.AlignmentScore, string(o.Quality),
		boolToInt(o.OnTrack), discoveries, drift, issues, boolToInt(o.HasAmbiguity), ambiguity,
		boolToInt(o.TaskComplete), formatTime(o.CreatedAt),
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "insert observation", err)
	}
	return nil
}

// GetObservation fetches a single observation by id.
func (db *DB) GetObservation(id string) (*models.Observation, error) {
	row := db.QueryRow(observationSelectQuery+" WHERE id = ?", id)
	o, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("observation %s not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan observation", err)
	}
	return o, nil
}

// ListObservationsByWorker returns every observation for a worker in
// iteration order.
func (db *DB) ListObservationsByWorker(workerID string) ([]*models.Observation, error) {
	rows, err := db.Query(observationSelectQuery+" WHERE worker_id = ? ORDER BY iteration ASC", workerID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list observations", err)
	}
	defer rows.Close()

	var out []*models.Observation
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan observation row", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const observationSelectQuery = `
	SELECT id, worker_id, iteration, task_id, alignment_score, quality,
		on_track, discoveries, drift, issues, has_ambiguity, ambiguity,
		task_complete, created_at
	FROM observations`

func scanObservation(row rowScanner) (*models.Observation, error) {
	var o models.Observation
	var onTrack, hasAmbiguity, taskComplete int
	var discoveries, drift, issues string
	var ambiguity sql.NullString
	var createdAt string

	err := row.Scan(
		&o.ID, &o.WorkerID, &o.Iteration, &o.TaskID, &o.AlignmentScore, &o.Quality,
		&onTrack, &discoveries, &drift, &issues, &hasAmbiguity, &ambiguity,
		&taskComplete, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	o.OnTrack = onTrack != 0
	o.HasAmbiguity = hasAmbiguity != 0
	o.TaskComplete = taskComplete != 0

	if err := decodeJSON(discoveries, &o.Discoveries); err != nil {
		return nil, err
	}
	if err := decodeJSON(drift, &o.Drift); err != nil {
		return nil, err
	}
	if err := decodeJSON(issues, &o.Issues); err != nil {
		return nil, err
	}
	if ambiguity.Valid {
		var a models.Ambiguity
		if err := decodeJSON(ambiguity.String, &a); err != nil {
			return nil, err
		}
		o.Ambiguity = &a
	}

	o.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &o, nil
}
