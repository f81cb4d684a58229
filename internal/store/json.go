package store

import (
	"encoding/json"
	"fmt"

	"github.com/marcusdietz/ralph/internal/corerr"
)

// encodeJSON marshals v to a JSON string for storage in a TEXT column.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", corerr.Wrap(corerr.Internal, "marshal json column", err)
	}
	return string(b), nil
}

// decodeJSON unmarshals a JSON TEXT column into v. An empty string is
// treated as absent and left untouched.
func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return corerr.Wrap(corerr.Internal, fmt.Sprintf("unmarshal json column %q", s), err)
	}
	return nil
}
