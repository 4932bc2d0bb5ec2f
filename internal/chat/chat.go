// Package chat runs the message pipeline: translate the user's text into a
// statement, execute it against the session's data file, and fold the outcome
// into the conversation history. One message in, exactly one history entry
// out, success or failure.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"lang2sql/internal/metrics"
	"lang2sql/internal/session"
	"lang2sql/internal/store"
	"lang2sql/internal/translator"
)

// DefaultRowLimit caps how many rows a reply carries back to the view.
const DefaultRowLimit = 500

// previewLimit bounds the table preview attached after a write.
const previewLimit = 100

var timeNow = time.Now

// Translator converts a prompt plus the current schema into one statement.
type Translator interface {
	Translate(ctx context.Context, prompt string, schema store.Schema) (translator.Statement, error)
}

// Orchestrator wires the translator to a session's data file.
type Orchestrator struct {
	translator Translator
	rowLimit   int
	logger     *slog.Logger
}

// New creates an orchestrator. rowLimit <= 0 selects DefaultRowLimit and a
// nil logger discards pipeline logs.
func New(t Translator, rowLimit int, logger *slog.Logger) *Orchestrator {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{translator: t, rowLimit: rowLimit, logger: logger}
}

// HandleMessage runs one prompt through the pipeline and records the outcome
// on the session. Translation and execution failures are not errors here:
// they come back as a failed entry with a human-readable message, and the
// file is left exactly as it was. The returned error covers only misuse,
// currently just a session with no data file.
func (o *Orchestrator) HandleMessage(ctx context.Context, sess *session.Session, prompt string) (session.HistoryEntry, error) {
	file := sess.File()
	if file == nil {
		return session.HistoryEntry{}, fmt.Errorf("no data file loaded")
	}
	metrics.ObserveMessage()

	entry := session.HistoryEntry{Time: timeNow(), Prompt: prompt}

	stmt, err := o.translator.Translate(ctx, prompt, sess.Schema())
	if err != nil {
		o.logger.Warn("translation failed", "session", sess.ID, "error", err)
		metrics.ObserveTranslationFailure()
		entry.Failed = true
		entry.Message = fmt.Sprintf("Sorry, I could not turn that into a query. %v", err)
		sess.Record(entry)
		return entry, nil
	}
	entry.SQL = stmt.SQL
	entry.Kind = string(stmt.Kind)
	entry.Explanation = stmt.Explanation

	result, err := file.Execute(ctx, stmt.SQL)
	if err != nil {
		o.logger.Warn("execution failed", "session", sess.ID, "sql", stmt.SQL, "error", err)
		metrics.ObserveExecutionFailure()
		entry.Failed = true
		entry.Message = fmt.Sprintf("The generated query failed: %v", err)
		sess.Record(entry)
		return entry, nil
	}
	metrics.ObserveStatement(entry.Kind)
	o.logger.Info("statement executed",
		"session", sess.ID, "kind", entry.Kind, "rows", result.RowCount())

	// Refresh unconditionally: a semicolon batch can mutate the file even
	// when its last statement is a read.
	if schema, err := file.Schema(ctx); err == nil {
		sess.SetSchema(schema)
	} else {
		o.logger.Warn("schema refresh failed", "session", sess.ID, "error", err)
	}

	if result.Read {
		entry.RowCount = int(result.RowCount())
		entry.Result = o.capRows(result)
		entry.Message = fmt.Sprintf("Returned %d row(s).", entry.RowCount)
		if len(entry.Result.Rows) < entry.RowCount {
			entry.Message = fmt.Sprintf("Returned %d row(s), showing the first %d.",
				entry.RowCount, len(entry.Result.Rows))
		}
	} else {
		entry.RowCount = int(result.RowsAffected)
		entry.Message = fmt.Sprintf("Done. %d row(s) affected.", result.RowsAffected)
		entry.Result = o.writePreview(ctx, file, stmt.SQL)
	}

	sess.Record(entry)
	return entry, nil
}

// capRows bounds a read result for display without losing the true count.
func (o *Orchestrator) capRows(result *store.Result) *store.Result {
	if len(result.Rows) <= o.rowLimit {
		return result
	}
	capped := *result
	capped.Rows = result.Rows[:o.rowLimit]
	return &capped
}

// writePreview fetches the first rows of the table a write touched so the
// user can see the effect. Best effort, a failed preview is just omitted.
func (o *Orchestrator) writePreview(ctx context.Context, file *store.DataFile, sqlText string) *store.Result {
	table, ok := extractTableName(sqlText)
	if !ok {
		return nil
	}
	preview, err := file.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, previewLimit))
	if err != nil {
		o.logger.Debug("write preview failed", "table", table, "error", err)
		return nil
	}
	return preview
}

var tableNamePattern = regexp.MustCompile(`(?i)(?:from|into|update|table)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)

// extractTableName pulls the first table name a statement mentions. Good
// enough for previews; it does not try to understand joins or subqueries.
func extractTableName(sqlText string) (string, bool) {
	m := tableNamePattern.FindStringSubmatch(sqlText)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}
