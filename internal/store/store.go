// Package store wraps an embedded database file and exposes the operations
// the chat pipeline needs: loading uploaded bytes, schema introspection,
// statement execution, and serialization back to downloadable bytes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Format identifies how uploaded bytes are interpreted.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatExcel  Format = "excel"
	FormatDuckDB Format = "duckdb"
	FormatSQLite Format = "sqlite"
)

// Column is one column of a table with its declared or inferred type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is an ordered sequence of columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Schema is the ordered list of tables currently present in a data file.
// It is derived, read-only, and recomputed after every mutation.
type Schema []Table

// TableNames returns the table names in schema order.
func (s Schema) TableNames() []string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = t.Name
	}
	return names
}

// Table returns the named table and whether it exists.
func (s Schema) Table(name string) (Table, bool) {
	for _, t := range s {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Describe renders the schema as one line per table, the shape the
// translator embeds into its prompt and the sidebar shows as a summary.
func (s Schema) Describe() string {
	var b strings.Builder
	for _, t := range s {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
		}
		fmt.Fprintf(&b, "Table `%s` has columns: %s.\n", t.Name, strings.Join(cols, ", "))
	}
	return b.String()
}

// Result is the outcome of executing statement text. Read statements carry
// columns and rows; write statements carry the affected-row count.
type Result struct {
	Read         bool     `json:"read"`
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
}

// RowCount returns the number of result rows for reads and the affected-row
// count for writes.
func (r *Result) RowCount() int64 {
	if r.Read {
		return int64(len(r.Rows))
	}
	return r.RowsAffected
}

// DataFile is an open embedded database backed by a file on disk. It is
// owned by exactly one session and mutated in place by write statements.
type DataFile struct {
	path   string
	format Format
	engine Engine
	db     *sql.DB
}

// Engine adapts one embedded database engine to the DataFile operations.
// Engines register themselves in init, keyed by the formats they back.
type Engine interface {
	// Name is the engine identifier ("duckdb", "sqlite").
	Name() string
	// Open opens and validates the database file at path.
	Open(path string) (*sql.DB, error)
	// Ingest creates table from a raw source file (CSV or Excel). Engines
	// that only back database-file formats may reject this.
	Ingest(ctx context.Context, db *sql.DB, table, srcPath string, format Format) error
	// Schema introspects the current tables and columns.
	Schema(ctx context.Context, db *sql.DB) (Schema, error)
	// Flush makes the on-disk file reflect all committed writes.
	Flush(ctx context.Context, db *sql.DB) error
	// FileExt is the extension used when serving the file for download.
	FileExt() string
}

var engines = map[Format]func() Engine{}

// RegisterEngine binds a format to an engine constructor. Called from the
// engine files' init functions.
func RegisterEngine(format Format, newEngine func() Engine) {
	engines[format] = newEngine
}

// SupportedExtensions lists the upload extensions Load accepts, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extFormats))
	for ext := range extFormats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

var extFormats = map[string]Format{
	".csv":     FormatCSV,
	".xls":     FormatExcel,
	".xlsx":    FormatExcel,
	".db":      FormatSQLite,
	".sqlite":  FormatSQLite,
	".sqlite3": FormatSQLite,
	".duckdb":  FormatDuckDB,
}

// DetectFormat maps an uploaded filename to a Format.
func DetectFormat(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	format, ok := extFormats[ext]
	if !ok {
		return "", &FormatError{Filename: filename, Reason: fmt.Sprintf("unsupported file extension %q", ext)}
	}
	return format, nil
}

// Load parses uploaded bytes into a DataFile rooted in dir. Tabular uploads
// (CSV, Excel) are ingested into a fresh DuckDB file named after the upload;
// database-file uploads are written out and opened directly. Every call gets
// its own scratch subdirectory of dir, so loading a replacement upload never
// touches a previously loaded file, open or not. A FormatError reports bytes
// that cannot be parsed as the detected format.
func Load(data []byte, filename string, dir string) (*DataFile, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	newEngine, ok := engines[engineFormat(format)]
	if !ok {
		return nil, &FormatError{Filename: filename, Reason: fmt.Sprintf("no engine registered for format %q", format)}
	}
	engine := newEngine()

	loadDir, err := os.MkdirTemp(dir, "load-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}

	switch format {
	case FormatSQLite, FormatDuckDB:
		path := filepath.Join(loadDir, "data."+engine.FileExt())
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write uploaded file: %w", err)
		}
		db, err := engine.Open(path)
		if err != nil {
			_ = os.RemoveAll(loadDir)
			return nil, &FormatError{Filename: filename, Reason: err.Error()}
		}
		return &DataFile{path: path, format: format, engine: engine, db: db}, nil

	case FormatCSV, FormatExcel:
		srcPath := filepath.Join(loadDir, "upload"+strings.ToLower(filepath.Ext(filename)))
		if err := os.WriteFile(srcPath, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write uploaded file: %w", err)
		}
		defer func() { _ = os.Remove(srcPath) }()

		path := filepath.Join(loadDir, "data."+engine.FileExt())
		db, err := engine.Open(path)
		if err != nil {
			_ = os.RemoveAll(loadDir)
			return nil, fmt.Errorf("failed to create database: %w", err)
		}

		table := tableNameFromFilename(filename)
		if err := engine.Ingest(context.Background(), db, table, srcPath, format); err != nil {
			_ = db.Close()
			_ = os.RemoveAll(loadDir)
			return nil, &FormatError{Filename: filename, Reason: err.Error()}
		}
		return &DataFile{path: path, format: format, engine: engine, db: db}, nil
	}

	_ = os.RemoveAll(loadDir)
	return nil, &FormatError{Filename: filename, Reason: fmt.Sprintf("unhandled format %q", format)}
}

// engineFormat maps upload formats to the format key an engine registered
// under. Tabular uploads are ingested by the DuckDB engine.
func engineFormat(f Format) Format {
	switch f {
	case FormatCSV, FormatExcel:
		return FormatDuckDB
	default:
		return f
	}
}

var tableNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// tableNameFromFilename derives the ingested table's name from the uploaded
// file's base name, the way the original upload flow names CSV tables.
func tableNameFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := tableNameCleaner.ReplaceAllString(base, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "data"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	return strings.ToLower(name)
}

// Format returns the format tag the file was loaded from.
func (f *DataFile) Format() Format { return f.format }

// Path returns the on-disk location of the database file.
func (f *DataFile) Path() string { return f.path }

// DownloadName is the filename to suggest when serving the file.
func (f *DataFile) DownloadName() string {
	return "updated_database." + f.engine.FileExt()
}

// Schema introspects the tables and columns currently in the file.
func (f *DataFile) Schema(ctx context.Context) (Schema, error) {
	return f.engine.Schema(ctx, f.db)
}

// Execute runs statement text against the file. The text may contain several
// statements separated by semicolons; all run inside one transaction so a
// failure leaves the file unchanged. The returned Result is the last read
// result, or the summed affected-row count when no statement returned rows.
// Callers must not retry a failed execution automatically.
func (f *DataFile) Execute(ctx context.Context, sqlText string) (*Result, error) {
	statements := splitStatements(sqlText)
	if len(statements) == 0 {
		return nil, &ExecutionError{Query: sqlText, Message: "empty statement"}
	}

	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &ExecutionError{Query: sqlText, Message: err.Error()}
	}

	result := &Result{}
	for _, stmt := range statements {
		if isReadStatement(stmt) {
			res, err := queryRows(ctx, tx, stmt)
			if err != nil {
				_ = tx.Rollback()
				return nil, &ExecutionError{Query: stmt, Message: err.Error()}
			}
			result = res
		} else {
			res, err := tx.ExecContext(ctx, stmt)
			if err != nil {
				_ = tx.Rollback()
				return nil, &ExecutionError{Query: stmt, Message: err.Error()}
			}
			affected, err := res.RowsAffected()
			if err != nil {
				affected = 0
			}
			result.Read = false
			result.Columns = nil
			result.Rows = nil
			result.RowsAffected += affected
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, &ExecutionError{Query: sqlText, Message: err.Error()}
	}
	return result, nil
}

// Query runs a single read statement outside the transactional Execute path.
// Used for previews and the read-only agent tool.
func (f *DataFile) Query(ctx context.Context, sqlText string) (*Result, error) {
	res, err := queryRows(ctx, f.db, sqlText)
	if err != nil {
		return nil, &ExecutionError{Query: sqlText, Message: err.Error()}
	}
	return res, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRows(ctx context.Context, q queryer, stmt string) (*Result, error) {
	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Read: true, Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Serialize returns the current byte representation of the file. The bytes
// round-trip through Load to an equivalent DataFile.
func (f *DataFile) Serialize(ctx context.Context) ([]byte, error) {
	if err := f.engine.Flush(ctx, f.db); err != nil {
		return nil, fmt.Errorf("failed to flush database: %w", err)
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read database file: %w", err)
	}
	return data, nil
}

// Close releases the underlying connection. The on-disk file remains for
// the owning session to delete.
func (f *DataFile) Close() error {
	return f.db.Close()
}

var readKeywords = map[string]bool{
	"select":   true,
	"with":     true,
	"show":     true,
	"describe": true,
	"desc":     true,
	"pragma":   true,
	"explain":  true,
	"values":   true,
}

// isReadStatement reports whether stmt is expected to return rows. Keyword
// based, same trade-off as deciding Query vs Exec anywhere in database/sql.
func isReadStatement(stmt string) bool {
	fields := strings.Fields(strings.ToLower(stmt))
	if len(fields) == 0 {
		return false
	}
	return readKeywords[fields[0]]
}

// splitStatements splits on semicolons and drops empty fragments. Semicolons
// inside string literals are not handled; generated statements do not carry
// them in practice.
func splitStatements(sqlText string) []string {
	parts := strings.Split(sqlText, ";")
	statements := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}
