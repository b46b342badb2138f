// Package curate removes duplicate titles and non-studio releases from a
// table of albums.
package curate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"albumcsv/internal/config"
	"albumcsv/internal/fileutil"
	"albumcsv/internal/metrics"
	"albumcsv/internal/parser/csv"
	"albumcsv/internal/table"
)

// ErrMissingKeyColumn is returned when the table lacks the key column.
var ErrMissingKeyColumn = errors.New("missing key column")

func keyIndex(t *table.Table, key string) (int, error) {
	i, ok := t.Index(key)
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrMissingKeyColumn, key)
	}
	return i, nil
}

// Dedupe keeps the first row for each distinct key value, in table order.
//
// Rows with a null key are all kept: null is never equal to another null.
func Dedupe(t *table.Table, key string) (*table.Table, error) {
	ki, err := keyIndex(t, key)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, t.Len())
	return t.Filter(func(r *table.Row) bool {
		k, ok := r.String(ki)
		if !ok {
			return true
		}
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	}), nil
}

// Exclude drops rows whose key contains any pattern of ps, ignoring case.
//
// Rows with a null key do not match and are kept.
func Exclude(t *table.Table, key string, ps PatternSet) (*table.Table, error) {
	out, _, err := exclude(t, key, ps)
	return out, err
}

func exclude(t *table.Table, key string, ps PatternSet) (*table.Table, map[string]int, error) {
	ki, err := keyIndex(t, key)
	if err != nil {
		return nil, nil, err
	}
	hits := make(map[string]int, ps.Len())
	out := t.Filter(func(r *table.Row) bool {
		k, ok := r.String(ki)
		if !ok {
			return true
		}
		p, matched := ps.Match(k)
		if matched {
			hits[p]++
		}
		return !matched
	})
	return out, hits, nil
}

// Result summarizes a curate run.
type Result struct {
	Input  string
	Output string

	Read       int
	Duplicates int
	Excluded   int
	Written    int

	// Hits counts excluded rows per pattern (first matching pattern wins).
	Hits     map[string]int
	Patterns []string

	Table *table.Table
}

// Run reads cfg.Input, removes duplicate keys, drops pattern matches and
// writes the remaining rows to cfg.Output. Nothing is written on failure.
func Run(ctx context.Context, cfg config.Curate) (Result, error) {
	res := Result{Input: cfg.Input, Output: cfg.Output}
	ps := NewPatternSet(cfg.Patterns...)
	res.Patterns = ps.Patterns()

	done := metrics.Step("read")
	t, err := csv.ReadFile(ctx, cfg.Input, cfg.Parser.Options)
	done(err)
	if err != nil {
		return res, err
	}
	res.Read = t.Len()
	metrics.RecordRows("read", res.Read)

	if _, err := keyIndex(t, cfg.KeyColumn); err != nil {
		return res, fmt.Errorf("%s: %w", cfg.Input, err)
	}

	done = metrics.Step("dedupe")
	deduped, err := Dedupe(t, cfg.KeyColumn)
	done(err)
	if err != nil {
		return res, err
	}
	res.Duplicates = t.Len() - deduped.Len()
	metrics.RecordRows("duplicate", res.Duplicates)

	done = metrics.Step("exclude")
	kept, hits, err := exclude(deduped, cfg.KeyColumn, ps)
	done(err)
	if err != nil {
		return res, err
	}
	res.Excluded = deduped.Len() - kept.Len()
	res.Hits = hits
	metrics.RecordRows("excluded", res.Excluded)

	if err := ctx.Err(); err != nil {
		return res, err
	}

	done = metrics.Step("write")
	err = fileutil.WriteFileAtomic(cfg.Output, 0o644, func(w io.Writer) error {
		return csv.WriteTable(w, kept)
	})
	done(err)
	if err != nil {
		return res, fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	res.Written = kept.Len()
	res.Table = kept
	metrics.RecordRows("written", res.Written)

	return res, nil
}
