package dictionary

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
)

// Dictionary is a named, immutable table of rows loaded from a CSV file.
// Rows are projected through a column map at load time, so lookups at
// generation time are plain map reads. Dictionaries are shared read-only
// across all field generators and are never mutated after load.
type Dictionary struct {
	name    string
	columns []string
	rows    []map[string]string
}

// Name returns the dictionary name.
func (d *Dictionary) Name() string {
	return d.name
}

// Len returns the number of rows.
func (d *Dictionary) Len() int {
	return len(d.rows)
}

// Columns returns the configured column names, sorted.
func (d *Dictionary) Columns() []string {
	return d.columns
}

// HasColumn reports whether the named column was configured at load time.
func (d *Dictionary) HasColumn(column string) bool {
	for _, c := range d.columns {
		if c == column {
			return true
		}
	}
	return false
}

// Value returns the value of the named column in row i.
func (d *Dictionary) Value(i int, column string) (string, error) {
	if i < 0 || i >= len(d.rows) {
		return "", fmt.Errorf("row %d out of range for dictionary %q", i, d.name)
	}
	v, ok := d.rows[i][column]
	if !ok {
		return "", fmt.Errorf("column %q not found in dictionary %q", column, d.name)
	}
	return v, nil
}

// New builds a dictionary directly from rows. Used by tests and the
// in-process API; CSV files go through LoadCSV.
func New(name string, rows []map[string]string) *Dictionary {
	d := &Dictionary{name: name, rows: rows}
	seen := map[string]bool{}
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				d.columns = append(d.columns, col)
			}
		}
	}
	sort.Strings(d.columns)
	return d
}

// LoadCSV reads a CSV file and projects each row through the column map,
// which maps a column name to its zero-based index in the file. Short rows
// yield empty strings for out-of-range columns.
func LoadCSV(name, path string, columns map[string]int) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary %q: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	raw, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary %q: %w", name, err)
	}

	colNames := make([]string, 0, len(columns))
	for col := range columns {
		colNames = append(colNames, col)
	}
	sort.Strings(colNames)

	rows := make([]map[string]string, 0, len(raw))
	for _, rec := range raw {
		row := make(map[string]string, len(columns))
		for col, idx := range columns {
			if idx >= 0 && idx < len(rec) {
				row[col] = rec[idx]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Dictionary{name: name, columns: colNames, rows: rows}, nil
}
