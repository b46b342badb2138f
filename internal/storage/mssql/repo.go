package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"albumcsv/internal/storage"
)

// SQL Server caps a statement at 2100 parameters and a VALUES list at 1000
// rows.
const (
	maxParams       = 2000
	maxRowsPerValue = 1000
)

// Repo implements storage.Repository for Microsoft SQL Server.
type Repo struct {
	db dbConn
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and validates connectivity
// via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// Begin starts a transaction. SQL Server DDL is transactional, so DROP,
// CREATE and the inserts commit together.
func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mssql: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx over *sql.Tx.
type Tx struct {
	tx txConn
}

// EnsureTable creates the table when missing. With spec.Replace the table is
// dropped first.
func (t *Tx) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	stmts, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := t.tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("mssql: ensure table %s: %w", spec.Name, err)
		}
	}
	return nil
}

// InsertRows inserts rows with multi-row INSERT ... VALUES statements,
// chunked below the parameter and row limits.
func (t *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if table == "" {
		return 0, fmt.Errorf("InsertRows: table is empty")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("InsertRows: columns is empty")
	}

	var total int64
	for _, part := range chunkRows(rows, len(columns)) {
		q, args := buildBulkInsertSQL(table, columns, part)
		res, err := t.tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (t *Tx) Commit(context.Context) error { return t.tx.Commit() }
func (t *Tx) Rollback(context.Context) error { return t.tx.Rollback() }

// chunkRows splits rows so each chunk fits one INSERT statement.
func chunkRows(rows [][]any, width int) [][][]any {
	per := min(maxRowsPerValue, max(1, maxParams/max(1, width)))
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		out = append(out, rows[start:min(start+per, len(rows))])
	}
	return out
}

func columnType(t string) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeFloat:
		return "FLOAT"
	case storage.TypeBoolean:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}

// buildCreateSQL returns the optional DROP and the guarded CREATE for spec.
func buildCreateSQL(spec storage.TableSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		defs = append(defs, mssqlIdent(c.Name)+" "+columnType(c.Type)+" NULL")
	}

	var stmts []string
	if spec.Replace {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+mssqlTableIdent(spec.Name)+";")
	}
	stmts = append(stmts, wrapCreateIfMissing(spec.Name, strings.Join(defs, ", ")))
	return stmts, nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(mssqlTableIdent(tableName), "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.albums" -> [dbo].[albums]
func mssqlTableIdent(name string) string {
	schema, table := storage.SplitQualifiedName(name)
	if schema == "" {
		return mssqlIdent(table)
	}
	return mssqlIdent(schema) + "." + mssqlIdent(table)
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var (
	_ dbConn = (*sqlDB)(nil)
	_ txConn = (*sql.Tx)(nil)
)
