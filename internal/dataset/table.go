package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Table is an in-memory, string-typed view of an uploaded CSV file.
// Columns keep the upload order; columns added later are appended.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// New creates an empty table with the given header.
func New(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: [][]string{}}
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of the first column with the given name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether a column with the given name exists.
func (t *Table) Has(name string) bool {
	return t.Index(name) >= 0
}

// Cell returns the value at row for the named column, or "" if the column is absent.
func (t *Table) Cell(row int, name string) string {
	idx := t.Index(name)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	return t.Rows[row][idx]
}

// SetCell overwrites a single cell of an existing column.
func (t *Table) SetCell(row int, name string, value string) {
	idx := t.Index(name)
	if idx < 0 {
		return
	}
	t.Rows[row][idx] = value
}

// SetColumn replaces the values of an existing column or appends a new one.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.Rows))
	}

	idx := t.Index(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return nil
	}

	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
	return nil
}

// Record returns a copy of one row keyed by column name.
// Duplicate column names keep their first value.
func (t *Table) Record(row int) map[string]string {
	rec := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		if _, seen := rec[c]; seen {
			continue
		}
		rec[c] = t.Rows[row][i]
	}
	return rec
}

// Floats parses the named column as numbers. Blank cells are reported in the
// missing mask with a zero value. A non-numeric cell yields a *ParseError.
func (t *Table) Floats(name string) ([]float64, []bool, error) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, nil, fmt.Errorf("column %q not found", name)
	}

	values := make([]float64, len(t.Rows))
	missing := make([]bool, len(t.Rows))
	for i, row := range t.Rows {
		raw := strings.TrimSpace(row[idx])
		if raw == "" {
			missing[i] = true
			continue
		}

		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, &ParseError{
				Row:    i + 1,
				Column: name,
				Msg:    fmt.Sprintf("value %q is not a number", row[idx]),
			}
		}
		values[i] = v
	}

	return values, missing, nil
}

// FormatNumber renders a value so that parsing it back yields the same float.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
