package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"albumcsv/internal/storage"
)

// maxParams stays below SQLITE_MAX_VARIABLE_NUMBER on older builds (999).
const maxParams = 999

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN (a path or "file:...?..." URI).
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// Begin starts a transaction. SQLite DDL is transactional, so a rolled back
// load leaves a replaced table as it was.
func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx over *sql.Tx.
type Tx struct {
	tx *sql.Tx
}

// EnsureTable creates the table if missing, dropping it first when
// spec.Replace is set.
func (t *Tx) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	dropSQL, createSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if dropSQL != "" {
		if _, err := t.tx.ExecContext(ctx, dropSQL); err != nil {
			return fmt.Errorf("drop table %s: %w", spec.Name, err)
		}
	}
	if _, err := t.tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows performs multi-row inserts chunked to stay under the bind
// parameter limit.
func (t *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("InsertRows: columns is empty")
	}

	per := max(1, maxParams/len(columns))
	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		q, args := buildInsertSQL(table, columns, rows[start:end])
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (t *Tx) Commit(context.Context) error { return t.tx.Commit() }
func (t *Tx) Rollback(context.Context) error { return t.tx.Rollback() }

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func tableIdent(name string) string {
	schema, table := storage.SplitQualifiedName(name)
	if schema == "" {
		return sqlIdent(table)
	}
	return sqlIdent(schema) + "." + sqlIdent(table)
}

func columnType(t string) string {
	switch t {
	case storage.TypeInteger:
		return "INTEGER"
	case storage.TypeFloat:
		return "REAL"
	case storage.TypeBoolean:
		// stored as 0/1
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// buildCreateSQL returns the optional DROP and the CREATE statement for spec.
func buildCreateSQL(spec storage.TableSpec) (dropSQL, createSQL string, err error) {
	if err := spec.Validate(); err != nil {
		return "", "", err
	}

	parts := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		parts = append(parts, sqlIdent(c.Name)+" "+columnType(c.Type))
	}

	name := tableIdent(spec.Name)
	if spec.Replace {
		dropSQL = "DROP TABLE IF EXISTS " + name + ";"
	}
	createSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", name, strings.Join(parts, ",\n  "))
	return dropSQL, createSQL, nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}
