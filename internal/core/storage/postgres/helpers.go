package postgres

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aevon-lab/aevon-topn/internal/segment"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanSegmentHeader scans a segments row into a segment.File without rows.
func scanSegmentHeader(row scanner) (*segment.File, error) {
	var f segment.File
	var columnsJSON []byte

	if err := row.Scan(&f.ID, &f.Version, &columnsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(columnsJSON, &f.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns of segment %q: %w", f.ID, err)
	}
	return &f, nil
}

// scanSegmentRow scans one segment_rows row.
// A NULL data column is an all-null row. Numbers decode as json.Number so
// longs beyond 2^53 keep every digit.
func scanSegmentRow(row scanner) (map[string]any, error) {
	var dataJSON []byte
	if err := row.Scan(&dataJSON); err != nil {
		return nil, err
	}
	data := map[string]any{}
	if len(dataJSON) == 0 {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader(dataJSON))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row data: %w", err)
	}
	return data, nil
}
