package models

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Table is the flat tabular export of a GlobalState: one row per quarter,
// one column per series id.
type Table struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of column id, or -1.
func (t *Table) ColumnIndex(id string) int {
	for i, c := range t.Columns {
		if c == id {
			return i
		}
	}
	return -1
}

// Column returns every value of column id.
func (t *Table) Column(id string) ([]float64, bool) {
	j := t.ColumnIndex(id)
	if j < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out, true
}

// Record returns row i keyed by column id.
func (t *Table) Record(i int) (map[string]float64, error) {
	if i < 0 {
		i += len(t.Rows)
	}
	if i < 0 || i >= len(t.Rows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", i, len(t.Rows))
	}
	out := make(map[string]float64, len(t.Columns))
	for j, c := range t.Columns {
		out[c] = t.Rows[i][j]
	}
	return out, nil
}

// Tail returns a table with the last n rows (all rows when n <= 0).
func (t *Table) Tail(n int) *Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return &Table{Columns: t.Columns, Rows: t.Rows[len(t.Rows)-n:]}
}

// WriteCSV writes a header of series ids followed by one line per quarter.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for j, v := range row {
			rec[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
