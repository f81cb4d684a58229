package store

import (
	"database/sql"
	"errors"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateOutcome inserts a new outcome.
func (db *DB) CreateOutcome(o *models.Outcome) error {
	intent, err := encodeJSON(o.Intent)
	if err != nil {
		return err
	}
	design, err := encodeJSON(o.Design)
	if err != nil {
		return err
	}
	convergence, err := encodeJSON(o.Convergence)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO outcomes (
			id, name, parent_id, brief, intent, design, status,
			capability_ready, convergence, working_dir, work_branch,
			git_mode, parallel, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.Name, nullString(o.ParentID), nullString(o.Brief), intent, design,
		string(o.Status), string(o.CapabilityReady), convergence,
		nullString(o.WorkingDir), nullString(o.WorkBranch), string(o.GitMode),
		boolToInt(o.Parallel), formatTime(o.CreatedAt), formatTime(o.ModifiedAt),
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "insert outcome", err)
	}
	return nil
}

// GetOutcome fetches a single outcome by id.
func (db *DB) GetOutcome(id string) (*models.Outcome, error) {
	row := db.QueryRow(`
		SELECT id, name, parent_id, brief, intent, design, status,
			capability_ready, convergence, working_dir, work_branch,
			git_mode, parallel, created_at, modified_at
		FROM outcomes WHERE id = ?
	`, id)
	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("outcome %s not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan outcome", err)
	}
	return o, nil
}

// UpdateOutcome replaces an outcome's mutable fields.
func (db *DB) UpdateOutcome(o *models.Outcome) error {
	intent, err := encodeJSON(o.Intent)
	if err != nil {
		return err
	}
	design, err := encodeJSON(o.Design)
	if err != nil {
		return err
	}
	convergence, err := encodeJSON(o.Convergence)
	if err != nil {
		return err
	}

	res, err := db.Exec(`
		UPDATE outcomes SET
			name = ?, parent_id = ?, brief = ?, intent = ?, design = ?,
			status = ?, capability_ready = ?, convergence = ?,
			working_dir = ?, work_branch = ?, git_mode = ?, parallel = ?,
			modified_at = ?
		WHERE id = ?
	`,
		o.Name, nullString(o.ParentID), nullString(o.Brief), intent, design,
		string(o.Status), string(o.CapabilityReady), convergence,
		nullString(o.WorkingDir), nullString(o.WorkBranch), string(o.GitMode),
		boolToInt(o.Parallel), formatTime(o.ModifiedAt), o.ID,
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "update outcome", err)
	}
	return checkUpdated(res, "outcome", o.ID)
}

// ListOutcomes returns every outcome in the store, roots and children
// alike; it takes no filter.
func (db *DB) ListOutcomes() ([]*models.Outcome, error) {
	rows, err := db.Query(`
		SELECT id, name, parent_id, brief, intent, design, status,
			capability_ready, convergence, working_dir, work_branch,
			git_mode, parallel, created_at, modified_at
		FROM outcomes ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list outcomes", err)
	}
	defer rows.Close()

	var out []*models.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan outcome row", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ChildOutcomeIDs returns the ids of outcomes whose parent_id is parentID,
// used to evaluate the Outcome.IsLeaf invariant.
func (db *DB) ChildOutcomeIDs(parentID string) ([]string, error) {
	rows, err := db.Query(`SELECT id FROM outcomes WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list child outcomes", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan child outcome id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*models.Outcome, error) {
	var o models.Outcome
	var parentID, brief, workingDir, workBranch sql.NullString
	var intent, design, convergence string
	var parallel int
	var createdAt, modifiedAt string

	err := row.Scan(
		&o.ID, &o.Name, &parentID, &brief, &intent, &design, &o.Status,
		&o.CapabilityReady, &convergence, &workingDir, &workBranch,
		&o.GitMode, &parallel, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	o.ParentID = parentID.String
	o.Brief = brief.String
	o.WorkingDir = workingDir.String
	o.WorkBranch = workBranch.String
	o.Parallel = parallel != 0

	if err := decodeJSON(intent, &o.Intent); err != nil {
		return nil, err
	}
	if err := decodeJSON(design, &o.Design); err != nil {
		return nil, err
	}
	if err := decodeJSON(convergence, &o.Convergence); err != nil {
		return nil, err
	}

	o.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	o.ModifiedAt, err = parseTime(modifiedAt)
	if err != nil {
		return nil, err
	}

	return &o, nil
}
