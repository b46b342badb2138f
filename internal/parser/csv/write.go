package csv

import (
	"encoding/csv"
	"fmt"
	"io"

	"albumcsv/internal/table"
)

// WriteTable writes t as comma-separated CSV: one header record, then one
// record per row. Null values are written as empty fields.
//
// A record consisting of a single empty field is written as `""` so that a
// one-column table with a null value does not produce a blank line, which
// readers skip.
func WriteTable(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)

	if err := writeRecord(w, cw, t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, len(t.Columns))
	for _, r := range t.Rows {
		for i := range rec {
			s, _ := r.String(i)
			rec[i] = s
		}
		if err := writeRecord(w, cw, rec); err != nil {
			return fmt.Errorf("write line %d: %w", r.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeRecord(w io.Writer, cw *csv.Writer, rec []string) error {
	if len(rec) == 1 && rec[0] == "" {
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\"\"\n")
		return err
	}
	return cw.Write(rec)
}
