package artifact

import (
	"encoding/json"
	"fmt"
	"io"
)

// DecodeGraph decodes a graph edge-list artifact.
func DecodeGraph(r io.Reader) (*GraphTables, error) {
	var g GraphTables
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return nil, fmt.Errorf("%w: graph json: %w", ErrDecode, err)
	}
	return &g, nil
}

// DecodeRecords decodes a records artifact.
func DecodeRecords(r io.Reader) (*RecordTables, error) {
	var t RecordTables
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("%w: records json: %w", ErrDecode, err)
	}
	return &t, nil
}
