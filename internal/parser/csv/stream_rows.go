package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"albumcsv/internal/config"
	"albumcsv/internal/table"
)

var (
	// ErrNoHeader is returned for input without a header record.
	ErrNoHeader = errors.New("no header row")
	// ErrTooManyFields is returned when a record is wider than the header.
	ErrTooManyFields = errors.New("record has more fields than header")
)

// StreamRows parses a CSV stream whose first record is the header and calls
// emit once per data record, in file order.
//
// Options:
//
//	comma        field delimiter (default ",")
//	lazy_quotes  tolerate bare quotes inside fields (default false)
//	trim_space   trim edge whitespace from headers and values (default false)
//	header_map   rename header cells {"Album Title": "title"}
//	null_values  field values read as null (default [""])
//
// Records shorter than the header are padded with null. Records wider than the
// header fail with ErrTooManyFields. A UTF-8 BOM on the first header cell is
// dropped. Errors carry the 1-based line number of the offending record.
func StreamRows(
	ctx context.Context,
	src io.Reader,
	opt config.Options,
	header func(columns []string) error,
	emit func(*table.Row) error,
) error {
	comma := opt.Rune("comma", ',')
	trim := opt.Bool("trim_space", false)
	hm := opt.StringMap("header_map")
	nulls := nullSet(opt.StringSlice("null_values", []string{""}))

	cr := csv.NewReader(src)
	cr.Comma = comma
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err == io.EOF {
		return ErrNoHeader
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if trim && hasEdgeSpace(h) {
			h = strings.TrimSpace(h)
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		}
		columns[i] = h
	}
	if err := header(columns); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("csv read: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(columns) {
			return fmt.Errorf("line %d: %w (%d > %d)", line, ErrTooManyFields, len(rec), len(columns))
		}

		row := table.NewRow(len(columns))
		row.Line = line
		for i, v := range rec {
			if trim && hasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if _, isNull := nulls[v]; isNull {
				continue
			}
			row.V[i] = strings.Clone(v)
		}

		if err := emit(row); err != nil {
			return err
		}
	}
}

// ReadTable parses a whole CSV stream into a table.
func ReadTable(ctx context.Context, src io.Reader, opt config.Options) (*table.Table, error) {
	var t *table.Table
	err := StreamRows(ctx, src, opt,
		func(columns []string) error {
			var err error
			t, err = table.New(columns)
			return err
		},
		func(r *table.Row) error {
			return t.Append(r)
		},
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ReadFile opens path and parses it with ReadTable. Errors name the path.
func ReadFile(ctx context.Context, path string, opt config.Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadTable(ctx, f, opt)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return t, nil
}

func nullSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// hasEdgeSpace reports whether s starts or ends with ASCII whitespace, so the
// common case skips strings.TrimSpace entirely.
func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
