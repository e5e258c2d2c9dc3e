// Package batch drives extraction over a set of inputs and consolidates
// results into a single rectangular table.
package batch

import (
	"nfex/nfe"
)

// Column describes one output column.
type Column struct {
	Name string
	Kind nfe.Kind
}

// Row holds values aligned with table columns.
type Row []nfe.Value

// Table is the consolidated result: every row has exactly one value per
// column.
type Table struct {
	Columns []Column
	Rows    []Row
}

// IsEmpty is true when there is nothing to show.
func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Rows) == 0
}

// ColumnIndex returns position of named column or -1.
func (t *Table) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns cell by row number and column name.
func (t *Table) Value(row int, name string) (nfe.Value, bool) {
	i := t.ColumnIndex(name)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nfe.Absent(), false
	}
	return t.Rows[row][i], true
}

// Names returns column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// newTable fixes column order from the selection, then projects every record
// onto these columns. Columns a record does not have are filled with field
// default, and decimal columns are normalized table wide so text that slipped
// through becomes a number.
func newTable(sel *nfe.Selection, records []nfe.Record) *Table {
	fields := sel.Columns()

	t := &Table{
		Columns: make([]Column, len(fields)),
		Rows:    make([]Row, 0, len(records)),
	}
	for i, f := range fields {
		t.Columns[i] = Column{Name: f.Name, Kind: f.Kind}
	}

	for _, rec := range records {
		row := make(Row, len(t.Columns))
		for i, c := range t.Columns {
			v, ok := rec[c.Name]
			if !ok {
				v = c.Kind.Default()
			}
			row[i] = c.Kind.Normalize(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
