package aqi

import "time"

// Table is an uploaded tabular dataset: a header row plus string records,
// with the date column already parsed per row. A zero Date marks a row whose
// date text could not be parsed; such rows are dropped by FilterByDate.
type Table struct {
	Columns []string
	Records [][]string
	Dates   []time.Time
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Records)
}

// ColumnIndex returns the index of the named column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// FilterByDate returns a new table containing only rows whose date falls in
// [start, end] inclusive. Rows with an unparseable date are excluded. The
// receiver is not modified.
func (t *Table) FilterByDate(start, end time.Time) *Table {
	out := &Table{Columns: t.Columns}
	for i, d := range t.Dates {
		if d.IsZero() {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		out.Records = append(out.Records, t.Records[i])
		out.Dates = append(out.Dates, d)
	}
	return out
}
