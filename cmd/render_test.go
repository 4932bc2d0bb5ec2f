package cmd

import (
	"strings"
	"testing"

	"lang2sql/internal/store"
)

func sampleResult() *store.Result {
	return &store.Result{
		Read:    true,
		Columns: []string{"name", "age"},
		Rows: [][]any{
			{"Alice", int64(34)},
			{"Bob", nil},
		},
	}
}

func TestRenderResultFormats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"table", []string{"name", "Alice", "(2 rows)"}},
		{"csv", []string{"name,age", "Alice"}},
		{"md", []string{"| name | age |", "| Alice |"}},
		{"json", []string{`"name": "Alice"`, `"age": null`}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var b strings.Builder
			if err := renderResult(&b, sampleResult(), tt.format); err != nil {
				t.Fatalf("renderResult(%q): %v", tt.format, err)
			}
			for _, want := range tt.want {
				if !strings.Contains(b.String(), want) {
					t.Errorf("%s output missing %q:\n%s", tt.format, want, b.String())
				}
			}
		})
	}
}

func TestRenderResultWrite(t *testing.T) {
	var b strings.Builder
	result := &store.Result{RowsAffected: 3}
	if err := renderResult(&b, result, "table"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "3 row(s) affected") {
		t.Errorf("output = %q", b.String())
	}
}

func TestFormatValueNull(t *testing.T) {
	if got := formatValue(nil); got != "NULL" {
		t.Errorf("formatValue(nil) = %q", got)
	}
}
