package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

func init() {
	RegisterEngine(FormatDuckDB, func() Engine { return &duckdbEngine{} })
}

// duckdbEngine backs .duckdb uploads and ingests CSV and Excel uploads into
// a fresh DuckDB file.
type duckdbEngine struct{}

func (e *duckdbEngine) Name() string { return "duckdb" }

func (e *duckdbEngine) FileExt() string { return "duckdb" }

func (e *duckdbEngine) Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	// Opening is lazy; force a round-trip so a corrupt upload fails here
	// rather than on the first statement.
	if _, err := db.Exec("SELECT 1"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("not a valid duckdb file: %w", err)
	}
	return db, nil
}

func (e *duckdbEngine) Ingest(ctx context.Context, db *sql.DB, table, srcPath string, format Format) error {
	switch format {
	case FormatCSV:
		_, err := db.ExecContext(ctx, fmt.Sprintf(
			"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s', header=true)",
			table, srcPath,
		))
		if err != nil {
			return fmt.Errorf("failed to read CSV: %w", err)
		}
		return nil

	case FormatExcel:
		// The excel extension is optional the same way the FTS extension
		// is elsewhere: try loading, fall back to installing first.
		if _, err := db.ExecContext(ctx, "LOAD excel;"); err != nil {
			if _, err := db.ExecContext(ctx, "INSTALL excel; LOAD excel;"); err != nil {
				return fmt.Errorf("excel support not available: %w", err)
			}
		}
		_, err := db.ExecContext(ctx, fmt.Sprintf(
			"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_xlsx('%s')",
			table, srcPath,
		))
		if err != nil {
			return fmt.Errorf("failed to read Excel file: %w", err)
		}
		return nil
	}
	return fmt.Errorf("duckdb engine cannot ingest format %q", format)
}

func (e *duckdbEngine) Schema(ctx context.Context, db *sql.DB) (Schema, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var schema Schema
	for rows.Next() {
		var table, column, colType string
		if err := rows.Scan(&table, &column, &colType); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		if len(schema) == 0 || schema[len(schema)-1].Name != table {
			schema = append(schema, Table{Name: table})
		}
		last := &schema[len(schema)-1]
		last.Columns = append(last.Columns, Column{Name: column, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}
	return schema, nil
}

func (e *duckdbEngine) Flush(ctx context.Context, db *sql.DB) error {
	// Forces the WAL into the database file so the bytes on disk are the
	// complete database.
	if _, err := db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

var _ Engine = (*duckdbEngine)(nil)
