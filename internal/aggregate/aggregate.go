// Package aggregate concatenates every CSV file in a directory into one table.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"albumcsv/internal/config"
	"albumcsv/internal/fileutil"
	"albumcsv/internal/metrics"
	"albumcsv/internal/parser/csv"
	"albumcsv/internal/table"
)

// ErrNoInputFiles is returned when the input directory holds no CSV files.
var ErrNoInputFiles = errors.New("no csv files")

// ListCSVFiles returns the regular files in dir whose name ends in ".csv",
// sorted by name. The match is case-sensitive and subdirectories are not
// searched. Paths listed in skip (compared after filepath.Abs) are left out.
func ListCSVFiles(dir string, skip ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipped[abs] = struct{}{}
		}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if abs, err := filepath.Abs(p); err == nil {
			if _, ok := skipped[abs]; ok {
				continue
			}
		}
		// Symlinks are followed; anything that is not a file in the end is skipped.
		if e.Type()&os.ModeSymlink != 0 {
			fi, err := os.Stat(p)
			if err != nil || !fi.Mode().IsRegular() {
				continue
			}
		} else if !e.Type().IsRegular() {
			continue
		}
		files = append(files, p)
	}
	return files, nil
}

// FileCount is the number of data rows read from one input file.
type FileCount struct {
	Path    string
	Rows    int
	Columns int
}

// Result summarizes an aggregate run.
type Result struct {
	InputDir string
	Output   string
	Policy   table.SchemaPolicy

	Files   []FileCount
	Read    int
	Written int
	Columns []string

	Table *table.Table
}

// Run concatenates the CSV files of cfg.InputDir in name order and writes
// the combined table to cfg.Output. The output file is never read as input,
// even when it lives in the input directory. Nothing is written on failure.
func Run(ctx context.Context, cfg config.Aggregate) (Result, error) {
	res := Result{InputDir: cfg.InputDir, Output: cfg.Output}

	policy, err := table.ParseSchemaPolicy(cfg.SchemaPolicy)
	if err != nil {
		return res, err
	}
	res.Policy = policy

	files, err := ListCSVFiles(cfg.InputDir, cfg.Output)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("%w in %s", ErrNoInputFiles, cfg.InputDir)
	}

	cat := table.NewConcatenator(policy)
	for _, path := range files {
		done := metrics.Step("read")
		t, err := csv.ReadFile(ctx, path, cfg.Parser.Options)
		if err == nil {
			err = cat.Add(t)
			if err != nil {
				err = fmt.Errorf("%s: %w", path, err)
			}
		}
		done(err)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, FileCount{Path: path, Rows: t.Len(), Columns: len(t.Columns)})
		res.Read += t.Len()
		metrics.RecordFile()
		metrics.RecordRows("read", t.Len())
	}
	out := cat.Table()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	done := metrics.Step("write")
	err = fileutil.WriteFileAtomic(cfg.Output, 0o644, func(w io.Writer) error {
		return csv.WriteTable(w, out)
	})
	done(err)
	if err != nil {
		return res, fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	res.Written = out.Len()
	res.Columns = out.Columns
	res.Table = out
	metrics.RecordRows("written", res.Written)

	return res, nil
}
