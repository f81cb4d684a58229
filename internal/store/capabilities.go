package store

import (
	"database/sql"
	"errors"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateCapability inserts a new capability record.
func (db *DB) CreateCapability(c *models.Capability) error {
	triggers, err := encodeJSON(c.Triggers)
	if err != nil {
		return err
	}
	envKeys, err := encodeJSON(c.RequiredEnvKeys)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO capabilities (
			id, outcome_id, name, type, kind, description, triggers, path,
			required_env_keys, status, built_by_task_id, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.OutcomeID, c.Name, string(c.Type), string(c.Kind),
		nullString(c.Description), triggers, c.Path, envKeys, string(c.Status),
		nullString(c.BuiltByTaskID), formatTime(c.CreatedAt), formatTime(c.ModifiedAt),
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "insert capability", err)
	}
	return nil
}

// GetCapability fetches a single capability by id.
func (db *DB) GetCapability(id string) (*models.Capability, error) {
	row := db.QueryRow(capabilitySelectQuery+" WHERE id = ?", id)
	c, err := scanCapability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("capability %s not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan capability", err)
	}
	return c, nil
}

// UpdateCapability replaces a capability's mutable fields.
func (db *DB) UpdateCapability(c *models.Capability) error {
	triggers, err := encodeJSON(c.Triggers)
	if err != nil {
		return err
	}
	envKeys, err := encodeJSON(c.RequiredEnvKeys)
	if err != nil {
		return err
	}

	res, err := db.Exec(`
		UPDATE capabilities SET
			description = ?, triggers = ?, path = ?, required_env_keys = ?,
			status = ?, built_by_task_id = ?, modified_at = ?
		WHERE id = ?
	`,
		nullString(c.Description), triggers, c.Path, envKeys, string(c.Status),
		nullString(c.BuiltByTaskID), formatTime(c.ModifiedAt), c.ID,
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "update capability", err)
	}
	return checkUpdated(res, "capability", c.ID)
}

// ListCapabilitiesByOutcome returns every capability belonging to an
// outcome.
func (db *DB) ListCapabilitiesByOutcome(outcomeID string) ([]*models.Capability, error) {
	rows, err := db.Query(capabilitySelectQuery+" WHERE outcome_id = ? ORDER BY created_at ASC", outcomeID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list capabilities", err)
	}
	defer rows.Close()

	var out []*models.Capability
	for rows.Next() {
		c, err := scanCapability(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan capability row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCapabilityByRef fetches a capability by its outcome-scoped typed
// reference (type:name), used when checking whether a task's
// RequiredCapabilities are all ready.
func (db *DB) GetCapabilityByRef(outcomeID string, kind models.CapabilityType, name string) (*models.Capability, error) {
	row := db.QueryRow(capabilitySelectQuery+" WHERE outcome_id = ? AND type = ? AND name = ?",
		outcomeID, string(kind), name)
	c, err := scanCapability(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("capability %s not found for outcome %s", models.CapabilityRef(kind, name), outcomeID)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan capability", err)
	}
	return c, nil
}

const capabilitySelectQuery = `
	SELECT id, outcome_id, name, type, kind, description, triggers, path,
		required_env_keys, status, built_by_task_id, created_at, modified_at
	FROM capabilities`

func scanCapability(row rowScanner) (*models.Capability, error) {
	var c models.Capability
	var description, builtByTaskID sql.NullString
	var triggers, envKeys string
	var createdAt, modifiedAt string

	err := row.Scan(
		&c.ID, &c.OutcomeID, &c.Name, &c.Type, &c.Kind, &description, &triggers,
		&c.Path, &envKeys, &c.Status, &builtByTaskID, &createdAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Description = description.String
	c.BuiltByTaskID = builtByTaskID.String

	if err := decodeJSON(triggers, &c.Triggers); err != nil {
		return nil, err
	}
	if err := decodeJSON(envKeys, &c.RequiredEnvKeys); err != nil {
		return nil, err
	}

	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	c.ModifiedAt, err = parseTime(modifiedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}
