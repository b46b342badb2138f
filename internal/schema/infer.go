// Package schema infers column types for a table and converts its text values
// to typed values for database loads.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"albumcsv/internal/storage"
	"albumcsv/internal/table"
)

// Infer returns one column spec per table column. A column takes the most
// specific type every non-null value parses as: integer, then boolean, then
// float, otherwise text. Columns with no non-null values are text.
func Infer(t *table.Table) []storage.ColumnSpec {
	out := make([]storage.ColumnSpec, len(t.Columns))
	for col, name := range t.Columns {
		out[col] = storage.ColumnSpec{Name: name, Type: inferColumn(t.Rows, col)}
	}
	return out
}

func inferColumn(rows []*table.Row, col int) string {
	var seen bool
	allInt := true
	allFloat := true
	allBool := true

	for _, r := range rows {
		s, ok := r.String(col)
		if !ok {
			continue
		}
		v := strings.TrimSpace(s)
		if v == "" {
			continue
		}
		seen = true

		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBoolLoose(v); !ok {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			break
		}
	}

	if !seen {
		return storage.TypeText
	}
	// Prefer more specific types.
	switch {
	case allInt:
		return storage.TypeInteger
	case allBool:
		return storage.TypeBoolean
	case allFloat:
		return storage.TypeFloat
	default:
		return storage.TypeText
	}
}

func parseBoolLoose(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

// Coerce converts v to the Go value stored for typ. nil and blank strings
// become nil; text values are returned unchanged.
func Coerce(typ string, v any) (any, error) {
	if v == nil || typ == storage.TypeText {
		return v, nil
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	switch typ {
	case storage.TypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("coerce %q to integer: %w", s, err)
		}
		return n, nil
	case storage.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("coerce %q to float: %w", s, err)
		}
		return f, nil
	case storage.TypeBoolean:
		b, ok := parseBoolLoose(s)
		if !ok {
			return nil, fmt.Errorf("coerce %q to boolean: invalid value", s)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
}

// CoerceRows returns typed copies of rows; the rows themselves are not
// modified. Errors name the source line of the offending row.
func CoerceRows(cols []storage.ColumnSpec, rows []*table.Row) ([][]any, error) {
	out := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(cols))
		for j, c := range cols {
			var v any
			if j < len(r.V) {
				v = r.V[j]
			}
			cv, err := Coerce(c.Type, v)
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", r.Line, c.Name, err)
			}
			vals[j] = cv
		}
		out[i] = vals
	}
	return out, nil
}
