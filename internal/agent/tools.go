package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/fantasy"

	"lang2sql/internal/store"
)

const defaultToolRowLimit = 200

// DataFileTools builds the agent's tool set over one open data file: a
// schema inspector and a read-only query runner. Writes are refused so an
// exploratory session can never mutate the user's file.
func DataFileTools(file *store.DataFile, rowLimit int) []fantasy.Tool {
	if rowLimit <= 0 {
		rowLimit = defaultToolRowLimit
	}
	return []fantasy.Tool{
		schemaTool(file),
		runSQLTool(file, rowLimit),
	}
}

func schemaTool(file *store.DataFile) fantasy.Tool {
	toolFunc := func(ctx context.Context, params map[string]interface{}) (string, error) {
		schema, err := file.Schema(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to read schema: %v", err)
		}
		return schema.Describe(), nil
	}

	paramSchema := map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}

	return fantasy.NewAgentTool(
		"schema",
		"List every table in the database with its columns and their types",
		toolFunc,
		fantasy.WithParameters(paramSchema),
	)
}

func runSQLTool(file *store.DataFile, rowLimit int) fantasy.Tool {
	toolFunc := func(ctx context.Context, params map[string]interface{}) (string, error) {
		sqlText, ok := params["sql"].(string)
		if !ok || strings.TrimSpace(sqlText) == "" {
			return "", fmt.Errorf("sql parameter is required")
		}
		if !isReadOnly(sqlText) {
			return "", fmt.Errorf("only read statements are allowed here")
		}

		result, err := file.Query(ctx, sqlText)
		if err != nil {
			return "", fmt.Errorf("query failed: %v", err)
		}
		if len(result.Rows) > rowLimit {
			result.Rows = result.Rows[:rowLimit]
		}

		jsonBytes, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode result as JSON: %v", err)
		}
		return string(jsonBytes), nil
	}

	paramSchema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sql": map[string]interface{}{
				"type":        "string",
				"description": "A single read-only SQL statement (SELECT, WITH, DESCRIBE, ...)",
			},
		},
		"required": []string{"sql"},
	}

	return fantasy.NewAgentTool(
		"run_sql",
		"Run one read-only SQL statement against the database and return the rows as JSON",
		toolFunc,
		fantasy.WithParameters(paramSchema),
	)
}

var readOnlyKeywords = map[string]bool{
	"select":   true,
	"with":     true,
	"show":     true,
	"describe": true,
	"desc":     true,
	"pragma":   true,
	"explain":  true,
}

func isReadOnly(sqlText string) bool {
	fields := strings.Fields(strings.ToLower(sqlText))
	if len(fields) == 0 {
		return false
	}
	return readOnlyKeywords[fields[0]] && !strings.Contains(sqlText, ";")
}
