package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"albumcsv/internal/storage"
)

// txConn is the subset of pgx.Tx the repository uses.
type txConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// pool is what the repository needs from *pgxpool.Pool.
type pool interface {
	Begin(ctx context.Context) (txConn, error)
	Close()
}

type pgxPool struct {
	p *pgxpool.Pool
}

func (p pgxPool) Begin(ctx context.Context) (txConn, error) {
	tx, err := p.p.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (p pgxPool) Close() { p.p.Close() }

// Repo implements storage.Repository for Postgres. Rows are loaded with
// COPY FROM STDIN.
type Repo struct {
	pool pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pool for cfg.DSN and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	p, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return &Repo{pool: pgxPool{p: p}}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// Begin starts a transaction on a pooled connection. Postgres DDL is
// transactional, so DROP, CREATE and COPY commit together.
func (r *Repo) Begin(ctx context.Context) (storage.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx implements storage.Tx over pgx.Tx.
type Tx struct {
	tx txConn
}

// EnsureTable creates the schema (when qualified) and the table. With
// spec.Replace the table is dropped first.
func (t *Tx) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	stmts, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := t.tx.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensure table %s: %w", spec.Name, err)
		}
	}
	return nil
}

// InsertRows copies rows into table.
func (t *Tx) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("InsertRows: columns is empty")
	}
	n, err := t.tx.CopyFrom(ctx, tableIdentifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

func pgIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func tableIdentifier(name string) pgx.Identifier {
	schema, table := storage.SplitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

func columnType(t string) string {
	switch t {
	case storage.TypeInteger:
		return "bigint"
	case storage.TypeFloat:
		return "double precision"
	case storage.TypeBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// buildCreateSQL returns the DDL statements for spec in execution order:
// optional CREATE SCHEMA, optional DROP TABLE, CREATE TABLE.
func buildCreateSQL(spec storage.TableSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	var stmts []string
	if schema, _ := storage.SplitQualifiedName(spec.Name); schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schema)+";")
	}

	name := tableIdentifier(spec.Name).Sanitize()
	if spec.Replace {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+name+";")
	}

	defs := make([]string, 0, len(spec.Columns))
	for _, c := range spec.Columns {
		defs = append(defs, pgIdent(c.Name)+" "+columnType(c.Type))
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", name, strings.Join(defs, ",\n  ")))
	return stmts, nil
}
