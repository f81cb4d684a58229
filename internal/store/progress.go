package store

import (
	"database/sql"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// AppendProgress inserts a new progress entry, assigning the next
// sequence number for the worker within the same transaction so entries
// are never reordered or skipped (spec §3 invariant: append-only,
// monotonic Seq).
func (db *DB) AppendProgress(p *models.ProgressEntry) error {
	return db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM progress_entries WHERE worker_id = ?`, p.WorkerID)
		var maxSeq int
		if err := row.Scan(&maxSeq); err != nil {
			return corerr.Wrap(corerr.Internal, "get max progress seq", err)
		}
		p.Seq = maxSeq + 1

		_, err := tx.Exec(`
			INSERT INTO progress_entries (
				id, worker_id, seq, iteration, task_id, content,
				raw_llm_output, observation_id, compacted, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.ID, p.WorkerID, p.Seq, p.Iteration, nullString(p.TaskID), p.Content,
			nullString(p.RawLLM), nullString(p.ObservationID), boolToInt(p.Compacted),
			formatTime(p.CreatedAt),
		)
		if err != nil {
			return corerr.Wrap(corerr.Internal, "insert progress entry", err)
		}
		return nil
	})
}

// ListProgressByWorker returns every progress entry for a worker in
// sequence order.
func (db *DB) ListProgressByWorker(workerID string) ([]*models.ProgressEntry, error) {
	rows, err := db.Query(`
		SELECT id, worker_id, seq, iteration, task_id, content,
			raw_llm_output, observation_id, compacted, created_at
		FROM progress_entries WHERE worker_id = ? ORDER BY seq ASC
	`, workerID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list progress entries", err)
	}
	defer rows.Close()

	var out []*models.ProgressEntry
	for rows.Next() {
		var p models.ProgressEntry
		var taskID, rawLLM, obsID sql.NullString
		var compacted int
		var createdAt string

		err := rows.Scan(&p.ID, &p.WorkerID, &p.Seq, &p.Iteration, &taskID, &p.Content,
			&rawLLM, &obsID, &compacted, &createdAt)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan progress entry", err)
		}

		p.TaskID = taskID.String
		p.RawLLM = rawLLM.String
		p.ObservationID = obsID.String
		p.Compacted = compacted != 0
		p.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "parse progress created_at", err)
		}

		out = append(out, &p)
	}
	return out, rows.Err()
}

// MarkProgressCompacted flags entries as compacted so future prompt
// construction uses their summarized form instead of raw output.
func (db *DB) MarkProgressCompacted(ids []string) error {
	return db.Transaction(func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec(`UPDATE progress_entries SET compacted = 1 WHERE id = ?`, id); err != nil {
				return corerr.Wrap(corerr.Internal, "mark progress compacted", err)
			}
		}
		return nil
	})
}
