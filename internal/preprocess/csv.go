// Package preprocess turns raw dataset payloads into tabular data ready for
// the store. The Global Fund extracts are CSV; the first record is the
// header and ragged rows are normalized to the header width.
package preprocess

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Table is a parsed dataset: a header and its rows.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ParseCSV parses a CSV payload into a Table. Quoted fields and embedded
// newlines are handled by encoding/csv; rows shorter than the header are
// padded with empty strings and longer rows are truncated.
func ParseCSV(payload []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1 // upstream extracts occasionally carry ragged rows

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	columns := make([]string, len(records[0]))
	for i, col := range records[0] {
		columns[i] = strings.TrimSpace(col)
	}
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "") {
		return nil, fmt.Errorf("dataset has no columns")
	}

	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(record) {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}

	return &Table{
		Columns: columns,
		Rows:    rows,
	}, nil
}
