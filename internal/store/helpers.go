package store

import (
	"database/sql"

	"github.com/marcusdietz/ralph/internal/corerr"
)

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// checkUpdated returns a not_found error if the update/delete affected zero
// rows, so callers can distinguish "no such row" from a no-op write.
func checkUpdated(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return corerr.Wrap(corerr.Internal, "rows affected", err)
	}
	if n == 0 {
		return corerr.NotFoundf("%s %s not found", kind, id)
	}
	return nil
}
