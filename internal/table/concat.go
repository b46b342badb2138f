package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch is returned by strict concatenation when a table's column
// set differs from the first table's.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaPolicy decides how tables with differing columns are concatenated.
type SchemaPolicy int

const (
	// SchemaUnion takes the union of columns in first-appearance order and
	// fills columns a source table lacks with null.
	SchemaUnion SchemaPolicy = iota
	// SchemaStrict requires every table to carry exactly the first table's
	// column set. Column order may differ; values are realigned.
	SchemaStrict
)

func (p SchemaPolicy) String() string {
	switch p {
	case SchemaUnion:
		return "union"
	case SchemaStrict:
		return "strict"
	default:
		return fmt.Sprintf("SchemaPolicy(%d)", int(p))
	}
}

// ParseSchemaPolicy parses "union" or "strict".
func ParseSchemaPolicy(s string) (SchemaPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "union":
		return SchemaUnion, nil
	case "strict":
		return SchemaStrict, nil
	default:
		return 0, fmt.Errorf("unknown schema policy %q (want union|strict)", s)
	}
}

// Concatenator appends tables one at a time so callers can release each
// source table before reading the next.
type Concatenator struct {
	policy SchemaPolicy
	out    *Table
}

// NewConcatenator returns an empty Concatenator.
func NewConcatenator(policy SchemaPolicy) *Concatenator {
	return &Concatenator{policy: policy}
}

// Add appends all rows of t. Under SchemaUnion, columns new to the combined
// table are appended and earlier rows are widened with null.
func (c *Concatenator) Add(t *Table) error {
	if c.out == nil {
		out, err := New(t.Columns)
		if err != nil {
			return err
		}
		c.out = out
	}

	mapping, err := c.align(t)
	if err != nil {
		return err
	}

	width := len(c.out.Columns)
	for _, r := range t.Rows {
		nr := &Row{V: make([]any, width), Line: r.Line}
		for src, dst := range mapping {
			nr.V[dst] = r.V[src]
		}
		c.out.Rows = append(c.out.Rows, nr)
	}
	return nil
}

// align maps each column of t to its position in the combined table.
func (c *Concatenator) align(t *Table) ([]int, error) {
	mapping := make([]int, len(t.Columns))

	if c.policy == SchemaStrict {
		if len(t.Columns) != len(c.out.Columns) {
			return nil, c.mismatch(t)
		}
		for i, col := range t.Columns {
			dst, ok := c.out.Index(col)
			if !ok {
				return nil, c.mismatch(t)
			}
			mapping[i] = dst
		}
		return mapping, nil
	}

	var added int
	for i, col := range t.Columns {
		dst, ok := c.out.Index(col)
		if !ok {
			dst = len(c.out.Columns)
			c.out.Columns = append(c.out.Columns, col)
			c.out.index[col] = dst
			added++
		}
		mapping[i] = dst
	}
	if added > 0 {
		width := len(c.out.Columns)
		for _, r := range c.out.Rows {
			for len(r.V) < width {
				r.V = append(r.V, nil)
			}
		}
	}
	return mapping, nil
}

func (c *Concatenator) mismatch(t *Table) error {
	return fmt.Errorf("%w: want columns [%s], got [%s]",
		ErrSchemaMismatch, strings.Join(c.out.Columns, ","), strings.Join(t.Columns, ","))
}

// Table returns the combined table, or an empty table with no columns if
// nothing was added.
func (c *Concatenator) Table() *Table {
	if c.out == nil {
		return &Table{index: map[string]int{}}
	}
	return c.out
}

// Concat concatenates tables in order under policy.
func Concat(policy SchemaPolicy, tables ...*Table) (*Table, error) {
	c := NewConcatenator(policy)
	for i, t := range tables {
		if err := c.Add(t); err != nil {
			return nil, fmt.Errorf("table %d: %w", i, err)
		}
	}
	return c.Table(), nil
}
