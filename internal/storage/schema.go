package storage

import (
	"fmt"
	"strings"
)

// Logical column types. Backends map them to native SQL types.
const (
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeText    = "text"
)

// TableSpec describes a destination table.
type TableSpec struct {
	Name    string       `json:"name"`
	Replace bool         `json:"replace"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnSpec is one column of a TableSpec. Every column is nullable.
type ColumnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"` // TypeInteger | TypeFloat | TypeBoolean | TypeText
}

// ColumnNames returns the column names of t in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the parts every backend relies on.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%s: no columns", t.Name)
	}
	for i, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("%s: column %d has no name", t.Name, i)
		}
		switch c.Type {
		case TypeInteger, TypeFloat, TypeBoolean, TypeText:
		default:
			return fmt.Errorf("%s: column %s: unsupported type %q", t.Name, c.Name, c.Type)
		}
	}
	return nil
}

// SplitQualifiedName splits "schema.table" into its parts. Names with no dot,
// or more than one, are returned whole as the table.
func SplitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
