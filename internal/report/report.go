// Package report renders end-of-run summaries as terminal tables.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"albumcsv/internal/aggregate"
	"albumcsv/internal/curate"
	"albumcsv/internal/export"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(title string, headers []string, rows [][]string, footer []string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		tw.AppendRow(toRow(row, columns))
	}
	if len(footer) > 0 {
		tw.AppendFooter(toRow(footer, columns))
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	if title == "" {
		return tw.Render()
	}
	return title + "\n" + tw.Render()
}

func toRow(cells []string, columns int) table.Row {
	r := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		if i < len(cells) {
			r[i] = cells[i]
		} else {
			r[i] = ""
		}
	}
	return r
}

func itoa(n int) string { return strconv.Itoa(n) }

// Aggregate writes the per-file row counts of an aggregate run.
func Aggregate(w io.Writer, res aggregate.Result) error {
	rows := make([][]string, 0, len(res.Files))
	for _, f := range res.Files {
		rows = append(rows, []string{filepath.Base(f.Path), itoa(f.Columns), itoa(f.Rows)})
	}
	title := fmt.Sprintf("%s -> %s (%s)", res.InputDir, res.Output, res.Policy)
	out := renderTable(title,
		[]string{"File", "Columns", "Rows"},
		rows,
		[]string{"Total", itoa(len(res.Columns)), itoa(res.Written)},
		[]columnAlignment{alignLeft, alignRight, alignRight},
	)
	_, err := fmt.Fprintln(w, out)
	return err
}

// Curate writes the row counts and per-pattern hits of a curate run.
func Curate(w io.Writer, res curate.Result) error {
	counts := renderTable(fmt.Sprintf("%s -> %s", res.Input, res.Output),
		[]string{"Step", "Rows"},
		[][]string{
			{"read", itoa(res.Read)},
			{"duplicate", itoa(res.Duplicates)},
			{"excluded", itoa(res.Excluded)},
			{"written", itoa(res.Written)},
		},
		nil,
		[]columnAlignment{alignLeft, alignRight},
	)
	if _, err := fmt.Fprintln(w, counts); err != nil {
		return err
	}
	if len(res.Hits) == 0 {
		return nil
	}

	order := make(map[string]int, len(res.Patterns))
	for i, p := range res.Patterns {
		order[p] = i
	}
	hits := make([]string, 0, len(res.Hits))
	for p := range res.Hits {
		hits = append(hits, p)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if res.Hits[hits[i]] != res.Hits[hits[j]] {
			return res.Hits[hits[i]] > res.Hits[hits[j]]
		}
		return order[hits[i]] < order[hits[j]]
	})

	rows := make([][]string, 0, len(hits))
	for _, p := range hits {
		rows = append(rows, []string{p, itoa(res.Hits[p])})
	}
	_, err := fmt.Fprintln(w, renderTable("excluded by pattern",
		[]string{"Pattern", "Rows"}, rows, nil,
		[]columnAlignment{alignLeft, alignRight}))
	return err
}

// Export writes the column types and row count of a database export.
func Export(w io.Writer, res export.Result) error {
	rows := make([][]string, 0, len(res.Columns))
	for _, c := range res.Columns {
		rows = append(rows, []string{c.Name, c.Type})
	}
	out := renderTable(fmt.Sprintf("%s %s: %d rows in %d batches", res.Kind, res.Table, res.Rows, res.Batches),
		[]string{"Column", "Type"}, rows, nil, nil)
	_, err := fmt.Fprintln(w, out)
	return err
}
