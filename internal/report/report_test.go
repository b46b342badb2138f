package report

import (
	"bytes"
	"strings"
	"testing"

	"albumcsv/internal/aggregate"
	"albumcsv/internal/curate"
	"albumcsv/internal/export"
	"albumcsv/internal/storage"
	"albumcsv/internal/table"
)

func TestRenderTable_EmptyHeaders(t *testing.T) {
	t.Parallel()

	if got := renderTable("x", nil, [][]string{{"a"}}, nil, nil); got != "" {
		t.Fatalf("renderTable with no headers=%q, want empty", got)
	}
}

func TestRenderTable_TitleIsNotWrapped(t *testing.T) {
	t.Parallel()

	title := "a-title-much-wider-than-the-table-body"
	out := renderTable(title, []string{"A"}, [][]string{{"x"}}, nil, nil)
	first, rest, ok := strings.Cut(out, "\n")
	if !ok || first != title {
		t.Fatalf("first line=%q, want %q:\n%s", first, title, out)
	}
	if strings.Contains(rest, "title") {
		t.Fatalf("title repeated inside table:\n%s", out)
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Aggregate(&buf, aggregate.Result{
		InputDir: "working_data",
		Output:   "metal-music.csv",
		Policy:   table.SchemaUnion,
		Files: []aggregate.FileCount{
			{Path: "working_data/a.csv", Rows: 12, Columns: 3},
			{Path: "working_data/b.csv", Rows: 30, Columns: 4},
		},
		Written: 42,
		Columns: []string{"title", "year", "band", "genre"},
	})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"working_data -> metal-music.csv (union)", "a.csv", "b.csv", "12", "30", "42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "working_data/a.csv") {
		t.Fatalf("summary should show base names:\n%s", out)
	}
}

func TestCurate_OrdersHitsByCount(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Curate(&buf, curate.Result{
		Input: "in.csv", Output: "out.csv",
		Read: 10, Duplicates: 2, Excluded: 5, Written: 3,
		Patterns: []string{"live", "best", "edition"},
		Hits:     map[string]int{"best": 1, "edition": 1, "live": 3},
	})
	if err != nil {
		t.Fatalf("Curate: %v", err)
	}
	out := buf.String()
	live := strings.Index(out, "live")
	best := strings.Index(out, "best")
	edition := strings.Index(out, "edition")
	if live < 0 || best < 0 || edition < 0 {
		t.Fatalf("missing patterns:\n%s", out)
	}
	if !(live < best && best < edition) {
		t.Fatalf("patterns not ordered by hits then config order:\n%s", out)
	}
}

func TestCurate_NoHitsSkipsPatternTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Curate(&buf, curate.Result{Read: 1, Written: 1}); err != nil {
		t.Fatalf("Curate: %v", err)
	}
	if strings.Contains(buf.String(), "excluded by pattern") {
		t.Fatalf("unexpected pattern table:\n%s", buf.String())
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := Export(&buf, export.Result{
		Kind: "sqlite", Table: "studio_albums", Rows: 7, Batches: 1,
		Columns: []storage.ColumnSpec{{Name: "year", Type: storage.TypeInteger}},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	for _, want := range []string{"sqlite studio_albums: 7 rows in 1 batches", "year", "integer"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("summary missing %q:\n%s", want, buf.String())
		}
	}
}
