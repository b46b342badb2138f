package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"albumcsv/internal/storage"
)

func openTemp(t *testing.T) *Repo {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "albums.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo.(*Repo)
}

var albumSpec = storage.TableSpec{
	Name: "studio_albums",
	Columns: []storage.ColumnSpec{
		{Name: "title", Type: storage.TypeText},
		{Name: "year", Type: storage.TypeInteger},
		{Name: "rating", Type: storage.TypeFloat},
	},
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	drop, create, err := buildCreateSQL(albumSpec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if drop != "" {
		t.Fatalf("drop=%q, want empty without Replace", drop)
	}
	for _, want := range []string{`CREATE TABLE IF NOT EXISTS "studio_albums"`, `"title" TEXT`, `"year" INTEGER`, `"rating" REAL`} {
		if !strings.Contains(create, want) {
			t.Fatalf("create SQL missing %q: %q", want, create)
		}
	}

	spec := albumSpec
	spec.Replace = true
	drop, _, _ = buildCreateSQL(spec)
	if drop != `DROP TABLE IF EXISTS "studio_albums";` {
		t.Fatalf("drop=%q", drop)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := buildInsertSQL("main.albums", []string{"title", `odd"name`}, [][]any{{"A", 1}, {nil, 2}})
	want := `INSERT INTO "main"."albums" ("title", "odd""name") VALUES (?,?), (?,?)`
	if q != want {
		t.Fatalf("sql=%q, want %q", q, want)
	}
	if !reflect.DeepEqual(args, []any{"A", 1, nil, 2}) {
		t.Fatalf("args=%v", args)
	}
}

func begin(t *testing.T, repo *Repo) storage.Tx {
	t.Helper()
	tx, err := repo.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	return tx
}

func countRows(t *testing.T, repo *Repo) int {
	t.Helper()
	var n int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM studio_albums`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestTx_EnsureAndInsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTemp(t)
	tx := begin(t, repo)

	if err := tx.EnsureTable(ctx, albumSpec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// second call is a no-op
	if err := tx.EnsureTable(ctx, albumSpec); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}

	// enough rows to need several chunks
	rows := make([][]any, 0, 700)
	for i := 0; i < 700; i++ {
		rows = append(rows, []any{"t", int64(i), nil})
	}
	n, err := tx.InsertRows(ctx, albumSpec.Name, albumSpec.ColumnNames(), rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 700 {
		t.Fatalf("inserted=%d, want 700", n)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	var count int
	var nulls int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(rating IS NULL) FROM studio_albums`).Scan(&count, &nulls); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 700 || nulls != 700 {
		t.Fatalf("count=%d nulls=%d, want 700/700", count, nulls)
	}
}

func TestTx_ReplaceDropsExistingRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTemp(t)

	spec := albumSpec
	spec.Replace = true
	for i := 0; i < 2; i++ {
		tx := begin(t, repo)
		if err := tx.EnsureTable(ctx, spec); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
		if _, err := tx.InsertRows(ctx, spec.Name, spec.ColumnNames(), [][]any{{"A", int64(1), 4.5}}); err != nil {
			t.Fatalf("InsertRows: %v", err)
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	var title string
	var year int64
	var rating sql.NullFloat64
	rows, err := repo.db.QueryContext(ctx, `SELECT title, year, rating FROM studio_albums`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var seen int
	for rows.Next() {
		if err := rows.Scan(&title, &year, &rating); err != nil {
			t.Fatalf("scan: %v", err)
		}
		seen++
	}
	if seen != 1 || title != "A" || year != 1 || rating.Float64 != 4.5 {
		t.Fatalf("seen=%d row=(%q,%d,%v)", seen, title, year, rating)
	}
}

func TestTx_RollbackRestoresReplacedTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openTemp(t)

	spec := albumSpec
	spec.Replace = true

	tx := begin(t, repo)
	if err := tx.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := tx.InsertRows(ctx, spec.Name, spec.ColumnNames(), [][]any{{"A", int64(1), nil}, {"B", int64(2), nil}, {"C", int64(3), nil}}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx = begin(t, repo)
	if err := tx.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := tx.InsertRows(ctx, spec.Name, spec.ColumnNames(), [][]any{{"D", int64(4), nil}}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if n := countRows(t, repo); n != 3 {
		t.Fatalf("rows=%d after rollback, want the 3 committed rows", n)
	}
}

func TestTx_InsertRowsEmpty(t *testing.T) {
	t.Parallel()

	tx := begin(t, openTemp(t))
	defer func() { _ = tx.Rollback(context.Background()) }()
	n, err := tx.InsertRows(context.Background(), "anything", []string{"a"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v, want 0,nil", n, err)
	}
}
