package store

import (
	"database/sql"
	"errors"

	"github.com/marcusdietz/ralph/internal/corerr"
	"github.com/marcusdietz/ralph/pkg/models"
)

// CreateEscalation inserts a new pending escalation.
func (db *DB) CreateEscalation(e *models.Escalation) error {
	question, err := encodeJSON(e.Question)
	if err != nil {
		return err
	}
	affected, err := encodeJSON(e.AffectedTasks)
	if err != nil {
		return err
	}

	var confidence sql.NullFloat64
	if e.AutoResolveConfidence != 0 {
		confidence = sql.NullFloat64{Float64: e.AutoResolveConfidence, Valid: true}
	}

	_, err = db.Exec(`
		INSERT INTO escalations (
			id, outcome_id, trigger_type, question, affected_tasks, status,
			selected_option_id, user_context, auto_resolve_confidence,
			incorporated, created_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.OutcomeID, e.TriggerType, question, affected, string(e.Status),
		nullString(e.SelectedOptionID), nullString(e.UserContext), confidence,
		boolToInt(e.Incorporated), formatTime(e.CreatedAt), nullTime(e.ResolvedAt),
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "insert escalation", err)
	}
	return nil
}

// GetEscalation fetches a single escalation by id.
func (db *DB) GetEscalation(id string) (*models.Escalation, error) {
	row := db.QueryRow(escalationSelectQuery+" WHERE id = ?", id)
	e, err := scanEscalation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, corerr.NotFoundf("escalation %s not found", id)
	}
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "scan escalation", err)
	}
	return e, nil
}

// UpdateEscalation replaces an escalation's resolution fields. Intended
// for answer/dismiss/auto_resolve transitions, all of which are terminal.
func (db *DB) UpdateEscalation(e *models.Escalation) error {
	var confidence sql.NullFloat64
	if e.AutoResolveConfidence != 0 {
		confidence = sql.NullFloat64{Float64: e.AutoResolveConfidence, Valid: true}
	}

	res, err := db.Exec(`
		UPDATE escalations SET
			status = ?, selected_option_id = ?, user_context = ?,
			auto_resolve_confidence = ?, incorporated = ?, resolved_at = ?
		WHERE id = ?
	`,
		string(e.Status), nullString(e.SelectedOptionID), nullString(e.UserContext),
		confidence, boolToInt(e.Incorporated), nullTime(e.ResolvedAt), e.ID,
	)
	if err != nil {
		return corerr.Wrap(corerr.Internal, "update escalation", err)
	}
	return checkUpdated(res, "escalation", e.ID)
}

// ListPendingEscalationsByOutcome returns every pending escalation for an
// outcome, used to compute which tasks are currently blocked.
func (db *DB) ListPendingEscalationsByOutcome(outcomeID string) ([]*models.Escalation, error) {
	rows, err := db.Query(
		escalationSelectQuery+" WHERE outcome_id = ? AND status = ? ORDER BY created_at ASC",
		outcomeID, string(models.EscalationStatusPending),
	)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list pending escalations", err)
	}
	defer rows.Close()
	return scanEscalations(rows)
}

// ListEscalationsByOutcome returns every escalation for an outcome
// regardless of status, used by the retrospective engine to cluster
// historical escalations.
func (db *DB) ListEscalationsByOutcome(outcomeID string) ([]*models.Escalation, error) {
	rows, err := db.Query(escalationSelectQuery+" WHERE outcome_id = ? ORDER BY created_at ASC", outcomeID)
	if err != nil {
		return nil, corerr.Wrap(corerr.Internal, "list escalations", err)
	}
	defer rows.Close()
	return scanEscalations(rows)
}

const escalationSelectQuery = `
	SELECT id, outcome_id, trigger_type, question, affected_tasks, status,
		selected_option_id, user_context, auto_resolve_confidence,
		incorporated, created_at, resolved_at
	FROM escalations`

func scanEscalations(rows *sql.Rows) ([]*models.Escalation, error) {
	var out []*models.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, corerr.Wrap(corerr.Internal, "scan escalation row", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEscalation(row rowScanner) (*models.Escalation, error) {
	var e models.Escalation
	var question, affected string
	var selectedOptionID, userContext sql.NullString
	var confidence sql.NullFloat64
	var incorporated int
	var createdAt string
	var resolvedAt sql.NullString

	err := row.Scan(
		&e.ID, &e.OutcomeID, &e.TriggerType, &question, &affected, &e.Status,
		&selectedOptionID, &userContext, &confidence,
		&incorporated, &createdAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	e.SelectedOptionID = selectedOptionID.String
	e.UserContext = userContext.String
	e.Incorporated = incorporated != 0
	if confidence.Valid {
		e.AutoResolveConfidence = confidence.Float64
	}

	if err := decodeJSON(question, &e.Question); err != nil {
		return nil, err
	}
	if err := decodeJSON(affected, &e.AffectedTasks); err != nil {
		return nil, err
	}

	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	e.ResolvedAt = parseNullableTime(resolvedAt)

	return &e, nil
}
