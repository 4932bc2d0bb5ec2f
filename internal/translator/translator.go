// Package translator turns natural-language questions into SQL statements by
// calling the Anthropic Messages API with the current database schema as
// context. The model's output is untrusted input: it is shape-checked before
// anyone is allowed to execute it.
package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"lang2sql/internal/store"
)

const (
	// DefaultModel is used when the configuration does not name one.
	DefaultModel     = string(anthropic.ModelClaudeHaiku4_5_20251001)
	defaultMaxTokens = 2000
)

// StatementKind classifies a generated statement for display and history.
type StatementKind string

const (
	KindRead  StatementKind = "read"
	KindWrite StatementKind = "write"
)

// Statement is a single validated SQL statement the model produced.
type Statement struct {
	SQL         string        `json:"sql"`
	Kind        StatementKind `json:"kind"`
	Explanation string        `json:"explanation,omitempty"`
}

// TranslationError reports an unreachable service, an API failure, or model
// output that does not resemble a statement.
type TranslationError struct {
	Reason string
	Err    error
}

func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("translation failed: %s", e.Reason)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Translator converts prompts into statements via the Anthropic API.
type Translator struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// Option configures a Translator.
type Option func(*Translator)

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(t *Translator) {
		if model != "" {
			t.model = anthropic.Model(model)
		}
	}
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(t *Translator) {
		if n > 0 {
			t.maxTokens = n
		}
	}
}

// New creates a Translator. The API key is required.
func New(apiKey string, opts ...Option) (*Translator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	t := &Translator{
		client:    &client,
		model:     anthropic.Model(DefaultModel),
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Translate sends the user's text plus the schema to the model and returns
// the single statement it produced. There is no retry; the caller decides
// whether to offer the user another attempt.
func (t *Translator) Translate(ctx context.Context, prompt string, schema store.Schema) (Statement, error) {
	params := anthropic.MessageNewParams{
		Model:     t.model,
		MaxTokens: t.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: buildSystemPrompt(schema)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	message, err := t.client.Messages.New(ctx, params)
	if err != nil {
		return Statement{}, &TranslationError{Reason: "Claude API error", Err: err}
	}

	responseText := ""
	for _, block := range message.Content {
		if textBlock, ok := block.AsAny().(anthropic.TextBlock); ok {
			responseText += textBlock.Text
		}
	}
	if responseText == "" {
		return Statement{}, &TranslationError{Reason: "empty response from Claude"}
	}

	return ParseResponse(responseText)
}

// responseEnvelope is the JSON shape the system prompt asks the model for.
type responseEnvelope struct {
	StatementKind string `json:"statement_kind"`
	Explanation   string `json:"explanation"`
	SQL           string `json:"sql"`
}

// ParseResponse extracts a statement from raw model output. It tolerates a
// markdown-fenced JSON envelope or bare SQL, then shape-checks the result.
// This is a best-effort filter, not a parser.
func ParseResponse(text string) (Statement, error) {
	body := stripFences(strings.TrimSpace(text))

	stmt := Statement{SQL: body}
	var envelope responseEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.SQL != "" {
		stmt.SQL = strings.TrimSpace(stripFences(envelope.SQL))
		stmt.Explanation = strings.TrimSpace(envelope.Explanation)
	}

	if err := validateStatement(stmt.SQL); err != nil {
		return Statement{}, err
	}
	stmt.SQL = strings.TrimSuffix(strings.TrimSpace(stmt.SQL), ";")
	stmt.Kind = classify(stmt.SQL)
	return stmt, nil
}

// stripFences removes a ```json / ```sql / ``` wrapper if present.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	body := strings.TrimPrefix(text, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

var statementKeywords = map[string]StatementKind{
	"select":   KindRead,
	"with":     KindRead,
	"show":     KindRead,
	"describe": KindRead,
	"pragma":   KindRead,
	"explain":  KindRead,
	"insert":   KindWrite,
	"update":   KindWrite,
	"delete":   KindWrite,
	"create":   KindWrite,
	"drop":     KindWrite,
	"alter":    KindWrite,
	"replace":  KindWrite,
	"truncate": KindWrite,
}

// validateStatement rejects output that clearly is not a statement: empty
// text, or text whose leading keyword is not in the allowlist.
func validateStatement(sqlText string) error {
	fields := strings.Fields(strings.ToLower(sqlText))
	if len(fields) == 0 {
		return &TranslationError{Reason: "model returned empty statement"}
	}
	if _, ok := statementKeywords[fields[0]]; !ok {
		return &TranslationError{Reason: fmt.Sprintf("model output does not look like a statement (starts with %q)", fields[0])}
	}
	return nil
}

func classify(sqlText string) StatementKind {
	fields := strings.Fields(strings.ToLower(sqlText))
	if len(fields) == 0 {
		return KindRead
	}
	if kind, ok := statementKeywords[fields[0]]; ok {
		return kind
	}
	return KindRead
}

// buildSystemPrompt embeds the schema, one line per table, plus the few-shot
// examples that anchor the response envelope.
func buildSystemPrompt(schema store.Schema) string {
	return fmt.Sprintf(`You are an expert at writing SQL queries.

The SQL database has the following schema:

%s
**Task:** Convert the user's message into a single SQL statement against this schema.

**Response Format (JSON only):**

{
  "statement_kind": "read" or "write",
  "explanation": "One sentence describing what the statement does",
  "sql": "The SQL statement"
}

**Guidelines:**
- Return exactly one statement.
- Use only tables and columns from the schema above.
- The engine accepts standard SQL (DuckDB / SQLite).

**Examples:**

"Delete all customers from Germany."
{"statement_kind": "write", "explanation": "Removes customers whose country is Germany", "sql": "DELETE FROM Customer WHERE Country = 'Germany'"}

"Add a new genre called Synthwave."
{"statement_kind": "write", "explanation": "Inserts a genre named Synthwave", "sql": "INSERT INTO Genre (Name) VALUES ('Synthwave')"}

"How many orders were placed this year?"
{"statement_kind": "read", "explanation": "Counts orders with a date in the current year", "sql": "SELECT COUNT(*) FROM Orders WHERE strftime('%%Y', OrderDate) = strftime('%%Y', 'now')"}

Return ONLY the JSON, no other text. Do not include markdown fences.`, schema.Describe())
}
