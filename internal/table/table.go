// Package table is the in-memory model both jobs transform: an ordered list
// of positional rows sharing one column schema.
package table

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateColumn is returned when a header names the same column twice.
	ErrDuplicateColumn = errors.New("duplicate column")
	// ErrRowWidth is returned when a row does not match the table's column count.
	ErrRowWidth = errors.New("row width does not match columns")
)

// Row holds values aligned to Table.Columns.
//
// A nil value is the null marker (an empty CSV field). Non-null values are
// strings as read from CSV.
type Row struct {
	V    []any
	Line int // 1-based CSV record number in the source file, if known
}

// NewRow returns a Row of width n with all values null.
func NewRow(n int) *Row {
	return &Row{V: make([]any, n)}
}

// String returns the value at i as text, and false for null.
func (r *Row) String(i int) (string, bool) {
	if i < 0 || i >= len(r.V) || r.V[i] == nil {
		return "", false
	}
	switch v := r.V[i].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return fmt.Sprint(v), true
	}
}

// Table is an ordered sequence of rows sharing Columns.
//
// Row numbering is positional: after any filter or concatenation the rows are
// numbered 0..Len()-1 with no gaps.
type Table struct {
	Columns []string
	Rows    []*Row

	index map[string]int
}

// New returns an empty table. Column names must be unique.
func New(columns []string) (*Table, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		idx[c] = i
	}
	return &Table{
		Columns: append([]string(nil), columns...),
		index:   idx,
	}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of column name.
func (t *Table) Index(name string) (int, bool) {
	if t.index == nil {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.index[c] = i
		}
	}
	i, ok := t.index[name]
	return i, ok
}

// Append adds r to the end of the table.
func (t *Table) Append(r *Row) error {
	if len(r.V) != len(t.Columns) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrRowWidth, len(r.V), len(t.Columns))
	}
	t.Rows = append(t.Rows, r)
	return nil
}

// Filter returns a new table with the same columns holding the rows for which
// keep returns true, in their original order. Rows are shared, not copied.
func (t *Table) Filter(keep func(*Row) bool) *Table {
	out := &Table{
		Columns: t.Columns,
		Rows:    make([]*Row, 0, len(t.Rows)),
		index:   t.index,
	}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Records returns the rows as [][]any, suitable for database inserts.
func (t *Table) Records() [][]any {
	out := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.V
	}
	return out
}
