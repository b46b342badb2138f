// Package export loads a job's output table into a database through the
// storage backends.
package export

import (
	"context"
	"fmt"

	"albumcsv/internal/config"
	"albumcsv/internal/metrics"
	"albumcsv/internal/schema"
	"albumcsv/internal/storage"
	"albumcsv/internal/table"
)

// Result reports what was loaded.
type Result struct {
	Kind    string
	Table   string
	Columns []storage.ColumnSpec
	Rows    int64
	Batches int
}

// Table replaces cfg.Table with the contents of t. Column types are inferred
// from the values; rows are inserted in batches of cfg.BatchSize.
//
// The drop, create and every batch run in one transaction: on any error the
// destination keeps its previous contents.
func Table(ctx context.Context, cfg config.Export, t *table.Table) (res Result, err error) {
	res = Result{Kind: cfg.Kind, Table: cfg.Table}
	if !cfg.Enabled() {
		return res, nil
	}

	done := metrics.Step("export")
	defer func() { done(err) }()

	repo, err := storage.New(ctx, storage.Config{Kind: cfg.Kind, DSN: cfg.ExpandDSN()})
	if err != nil {
		return res, fmt.Errorf("open %s: %w", cfg.Kind, err)
	}
	defer repo.Close()

	tx, err := repo.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	spec := storage.TableSpec{Name: cfg.Table, Replace: true, Columns: schema.Infer(t)}
	res.Columns = spec.Columns
	if err := tx.EnsureTable(ctx, spec); err != nil {
		return res, err
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = config.DefaultExportBatchSize
	}
	columns := spec.ColumnNames()
	var loaded int64
	var batches int
	for start := 0; start < len(t.Rows); start += batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+batch, len(t.Rows))
		rows, err := schema.CoerceRows(spec.Columns, t.Rows[start:end])
		if err != nil {
			return res, err
		}
		n, err := tx.InsertRows(ctx, spec.Name, columns, rows)
		if err != nil {
			return res, err
		}
		loaded += n
		batches++
	}
	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit %s: %w", cfg.Table, err)
	}

	res.Rows = loaded
	res.Batches = batches
	metrics.RecordRows("exported", int(res.Rows))
	return res, nil
}
