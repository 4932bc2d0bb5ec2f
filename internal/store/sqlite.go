package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

func init() {
	RegisterEngine(FormatSQLite, func() Engine { return &sqliteEngine{} })
}

// sqliteEngine backs .db/.sqlite/.sqlite3 uploads, the format family the
// original application produced.
type sqliteEngine struct{}

func (e *sqliteEngine) Name() string { return "sqlite" }

func (e *sqliteEngine) FileExt() string { return "db" }

func (e *sqliteEngine) Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single writer owns the file for the session's lifetime.
	db.SetMaxOpenConns(1)
	// Reading sqlite_master validates the header and page structure.
	if _, err := db.Exec("SELECT count(*) FROM sqlite_master"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("not a valid sqlite file: %w", err)
	}
	return db, nil
}

func (e *sqliteEngine) Ingest(ctx context.Context, db *sql.DB, table, srcPath string, format Format) error {
	return fmt.Errorf("sqlite engine cannot ingest format %q", format)
}

func (e *sqliteEngine) Schema(ctx context.Context, db *sql.DB) (Schema, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	schema := make(Schema, 0, len(names))
	for _, name := range names {
		table, err := e.tableInfo(ctx, db, name)
		if err != nil {
			return nil, err
		}
		schema = append(schema, table)
	}
	return schema, nil
}

func (e *sqliteEngine) tableInfo(ctx context.Context, db *sql.DB, name string) (Table, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return Table{}, fmt.Errorf("failed to get columns for %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	table := Table{Name: name}
	for rows.Next() {
		// PRAGMA table_info returns: cid, name, type, notnull, dflt_value, pk
		var cid, notNull, pk int
		var colName, colType string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return Table{}, fmt.Errorf("failed to scan column for %s: %w", name, err)
		}
		if colType == "" {
			colType = "ANY"
		}
		table.Columns = append(table.Columns, Column{Name: colName, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("error iterating columns for %s: %w", name, err)
	}
	return table, nil
}

func (e *sqliteEngine) Flush(ctx context.Context, db *sql.DB) error {
	// In the default journal mode committed writes are already in the main
	// file; the checkpoint only matters if the file arrived in WAL mode.
	_, _ = db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return nil
}

var _ Engine = (*sqliteEngine)(nil)
