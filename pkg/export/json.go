package export

import (
	"encoding/json"

	"github.com/Lucaterre/tsvlink/pkg/types"
)

// JSON renders the resolution slice indented. An empty set serializes
// as an empty array, never null.
func JSON(rows []types.Resolution) ([]byte, error) {
	if rows == nil {
		rows = []types.Resolution{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, &SerializationError{Format: FormatJSON, Reason: err.Error()}
	}
	return append(data, '\n'), nil
}
