package store

import (
	"database/sql"
	"errors"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateReviewCycle inserts a new review cycle, assigning the next cycle
// index for the outcome within the same transaction.
func (db *DB) CreateReviewCycle(r *models.ReviewCycle) error {
	return db.Transaction(func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT COALESCE(MAX(cycle_index), 0) FROM review_cycles WHERE outcome_id = ?`, r.OutcomeID)
		var maxIdx int
		if err := row.Scan(&maxIdx); err != nil {
			return corerr.Wrap(corerr.Internal, "get max review cycle index", err)
		}
		r.CycleIndex = maxIdx + 1

		findings, err := encodeJSON(r.Findings)
		if err != nil {
			return err
		}
		issues, err := encodeJSON(r.Issues)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO review_cycles (
				id, outcome_id, cycle_index, criteria_only, findings, issues,
				issues_found, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID, r.OutcomeID, r.CycleIndex, boolToInt(r.CriteriaOnly), findings, issues,
			r.IssuesFound, formatTime(r.CreatedAt),
		)
		if err != nil {
			return corerr.Wrap(corerr.Internal, "insert review cycle", err)
		}
		return nil
	})
}

// UpdateReviewCycle persists remediation-task linkage added to a review
// cycle's issues after creation.
func (db *DB) UpdateReviewCycle(r *models.ReviewCycle) error {
	issues, err := encodeJSON(r.Issues)
	if err != nil {
		return err
	}
	res, err := db.Exec(`UPDATE review_cycles SET issues = ? WHERE id = ?`, issues, r.ID)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "update review cycle", err)
	}
	return checkUpdated(res, "review cycle", r.ID)
}

// ListReviewCyclesByOutcome returns every review cycle for an outcome in
// index order.
func (db *DB) ListReviewCyclesByOutcome(outcomeID string) ([]*models.ReviewCycle, error) {
	rows, err := db.Query(reviewCycleSelectQuery+" WHERE outcome_id = ? ORDER BY cycle_index ASC", outcomeID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list review cycles", err)
	}
	defer rows.Close()

	var out []*models.ReviewCycle
	for rows.Next() {
		r, err := scanReviewCycle(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan review cycle row", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetLatestReviewCycle returns the most recent review cycle for an
// outcome, or a not_found error if none exists yet.
func (db *DB) GetLatestReviewCycle(outcomeID string) (*models.ReviewCycle, error) {
	row := db.QueryRow(reviewCycleSelectQuery+" WHERE outcome_id = ? ORDER BY cycle_index DESC LIMIT 1", outcomeID)
	r, err := scanReviewCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("no review cycles for outcome %s", outcomeID)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan review cycle", err)
	}
	return r, nil
}

const reviewCycleSelectQuery = `
	SELECT id, outcome_id, cycle_index, criteria_only, findings, issues,
		issues_found, created_at
	FROM review_cycles`

func scanReviewCycle(row rowScanner) (*models.ReviewCycle, error) {
	var r models.ReviewCycle
	var criteriaOnly int
	var findings, issues string
	var createdAt string

	err := row.Scan(&r.ID, &r.OutcomeID, &r.CycleIndex, &criteriaOnly, &findings, &issues,
		&r.IssuesFound, &createdAt)
	if err != nil {
		return nil, err
	}

	r.CriteriaOnly = criteriaOnly != 0

	if err := decodeJSON(findings, &r.Findings); err != nil {
		return nil, err
	}
	if err := decodeJSON(issues, &r.Issues); err != nil {
		return nil, err
	}

	r.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &r, nil
}
