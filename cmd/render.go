package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"lang2sql/internal/store"
)

// renderResult writes a statement result to w in the requested format.
// Formats: table (default), json, csv, md.
func renderResult(w io.Writer, result *store.Result, format string) error {
	if !result.Read {
		_, _ = fmt.Fprintf(w, "%d row(s) affected\n", result.RowsAffected)
		return nil
	}

	switch format {
	case "json":
		return renderJSON(w, result)
	case "csv":
		newResultTable(w, result).RenderCSV()
		return nil
	case "md", "markdown":
		newResultTable(w, result).RenderMarkdown()
		return nil
	default:
		return renderTable(w, result)
	}
}

// newResultTable builds a go-pretty writer holding the result's header and
// rows, ready for any of the library's output renderers.
func newResultTable(w io.Writer, result *store.Result) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	headerRow := make(table.Row, len(result.Columns))
	for i, col := range result.Columns {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, r := range result.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}
	return t
}

func renderTable(w io.Writer, result *store.Result) error {
	if len(result.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := newResultTable(w, result)
	t.SetStyle(table.StyleLight)
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
	return nil
}

func renderJSON(w io.Writer, result *store.Result) error {
	rows := make([]map[string]any, len(result.Rows))
	for i, r := range result.Rows {
		row := make(map[string]any, len(result.Columns))
		for j, col := range result.Columns {
			row[col] = r[j]
		}
		rows[i] = row
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
