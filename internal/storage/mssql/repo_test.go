package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"albumcsv/internal/storage"
)

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

type fakeTx struct {
	queries   []string
	argCounts []int
	failAt    int // 1-based exec to fail; 0 never

	committed  bool
	rolledBack bool
}

func (f *fakeTx) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.queries = append(f.queries, q)
	f.argCounts = append(f.argCounts, len(args))
	if f.failAt == len(f.queries) {
		return nil, errors.New("exec failed")
	}
	return fakeResult(strings.Count(q, "), (") + 1), nil
}

func (f *fakeTx) Commit() error { f.committed = true; return nil }
func (f *fakeTx) Rollback() error { f.rolledBack = true; return nil }

type fakeDB struct {
	tx *fakeTx
}

func (f *fakeDB) BeginTx(context.Context, *sql.TxOptions) (txConn, error) { return f.tx, nil }
func (f *fakeDB) Close() error { return nil }

func TestBuildBulkInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildBulkInsertSQL("dbo.albums", []string{"title", "year"}, [][]any{{"A", int64(1)}, {nil, int64(2)}})
	want := "INSERT INTO [dbo].[albums] ([title], [year]) VALUES (@p1, @p2), (@p3, @p4)"
	if q != want {
		t.Fatalf("sql=%q, want %q", q, want)
	}
	if len(args) != 4 || args[2] != nil {
		t.Fatalf("args=%v", args)
	}
}

func TestChunkRows_StaysUnderLimits(t *testing.T) {
	t.Parallel()

	rows := make([][]any, 2500)
	for _, width := range []int{1, 3, 7, 2500} {
		total := 0
		for _, part := range chunkRows(rows, width) {
			if len(part) > maxRowsPerValue {
				t.Fatalf("width=%d: chunk of %d rows exceeds %d", width, len(part), maxRowsPerValue)
			}
			if len(part) > 1 && len(part)*width > maxParams {
				t.Fatalf("width=%d: chunk uses %d params", width, len(part)*width)
			}
			total += len(part)
		}
		if total != len(rows) {
			t.Fatalf("width=%d: chunks cover %d rows, want %d", width, total, len(rows))
		}
	}
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	stmts, err := buildCreateSQL(storage.TableSpec{
		Name:    "dbo.studio_albums",
		Replace: true,
		Columns: []storage.ColumnSpec{
			{Name: "title", Type: storage.TypeText},
			{Name: "live]", Type: storage.TypeBoolean},
		},
	})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if len(stmts) != 2 || stmts[0] != "DROP TABLE IF EXISTS [dbo].[studio_albums];" {
		t.Fatalf("stmts=%q", stmts)
	}
	for _, want := range []string{"IF OBJECT_ID(N'[dbo].[studio_albums]', N'U') IS NULL", "[title] NVARCHAR(MAX) NULL", "[live]]] BIT NULL"} {
		if !strings.Contains(stmts[1], want) {
			t.Fatalf("create missing %q: %q", want, stmts[1])
		}
	}
}

func begin(t *testing.T, ftx *fakeTx) storage.Tx {
	t.Helper()
	r := &Repo{db: &fakeDB{tx: ftx}}
	tx, err := r.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return tx
}

func TestTx_LoadRunsInOneTx(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ftx := &fakeTx{}
	tx := begin(t, ftx)

	spec := storage.TableSpec{Name: "albums", Replace: true, Columns: []storage.ColumnSpec{
		{Name: "title", Type: storage.TypeText},
		{Name: "year", Type: storage.TypeInteger},
	}}
	if err := tx.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	rows := make([][]any, 1500)
	for i := range rows {
		rows[i] = []any{"t", int64(i)}
	}
	n, err := tx.InsertRows(ctx, spec.Name, spec.ColumnNames(), rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 1500 {
		t.Fatalf("n=%d, want 1500", n)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// drop, create, then two chunked inserts
	if len(ftx.queries) != 4 || !strings.HasPrefix(ftx.queries[0], "DROP TABLE") || !strings.Contains(ftx.queries[1], "CREATE TABLE [albums]") {
		t.Fatalf("queries=%q", ftx.queries)
	}
	if ftx.argCounts[2] != 2000 || ftx.argCounts[3] != 1000 {
		t.Fatalf("args=%v", ftx.argCounts)
	}
	if !ftx.committed || ftx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v", ftx.committed, ftx.rolledBack)
	}
}

func TestTx_InsertErrorNamesTable(t *testing.T) {
	t.Parallel()

	ftx := &fakeTx{failAt: 2}
	tx := begin(t, ftx)

	rows := make([][]any, 1500)
	for i := range rows {
		rows[i] = []any{"t", int64(i)}
	}
	n, err := tx.InsertRows(context.Background(), "albums", []string{"title", "year"}, rows)
	if err == nil || !strings.Contains(err.Error(), "albums") {
		t.Fatalf("err=%v", err)
	}
	if n != 1000 {
		t.Fatalf("n=%d, want the first chunk only", n)
	}
	if ftx.committed {
		t.Fatalf("InsertRows must not commit")
	}
}
