package agent

import (
	"testing"
)

func TestIsReadOnly(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"select", "SELECT * FROM t", true},
		{"cte", "WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"describe", "DESCRIBE t", true},
		{"pragma", "PRAGMA table_info(t)", true},
		{"insert", "INSERT INTO t VALUES (1)", false},
		{"delete", "DELETE FROM t", false},
		{"drop", "DROP TABLE t", false},
		{"stacked statements", "SELECT 1; DROP TABLE t", false},
		{"empty", "   ", false},
		{"case insensitive", "select name from t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isReadOnly(tt.sql); got != tt.want {
				t.Errorf("isReadOnly(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}

func TestNewAskAgentRequiresKeyAndFile(t *testing.T) {
	if _, err := NewAskAgent(nil); err == nil {
		t.Fatal("want error without API key")
	}
	if _, err := NewAskAgent(nil, WithAPIKey("")); err == nil {
		t.Fatal("want error for empty API key option")
	}
}
