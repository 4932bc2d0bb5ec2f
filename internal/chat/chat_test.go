package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lang2sql/internal/session"
	"lang2sql/internal/store"
	"lang2sql/internal/translator"
)

const peopleCSV = "name,age,city\nAlice,34,Oslo\nBob,58,Lima\nCara,29,Oslo\n"

type fakeTranslator struct {
	stmt translator.Statement
	err  error

	gotPrompt string
	gotSchema store.Schema
}

func (f *fakeTranslator) Translate(_ context.Context, prompt string, schema store.Schema) (translator.Statement, error) {
	f.gotPrompt = prompt
	f.gotSchema = schema
	return f.stmt, f.err
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	m, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.CloseAll)
	sess, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}
	file, err := store.Load([]byte(peopleCSV), "people.csv", sess.Dir())
	if err != nil {
		t.Fatal(err)
	}
	schema, err := file.Schema(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	sess.Start(file, schema)
	return sess
}

func TestHandleMessageRead(t *testing.T) {
	sess := newTestSession(t)
	fake := &fakeTranslator{stmt: translator.Statement{
		SQL:  "SELECT name FROM people ORDER BY name",
		Kind: translator.KindRead,
	}}
	o := New(fake, 0, nil)

	entry, err := o.HandleMessage(context.Background(), sess, "list everyone")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if entry.Failed {
		t.Fatalf("entry failed: %s", entry.Message)
	}
	if entry.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", entry.RowCount)
	}
	if entry.Result == nil || len(entry.Result.Rows) != 3 {
		t.Fatalf("Result = %+v, want 3 rows", entry.Result)
	}
	if fake.gotPrompt != "list everyone" {
		t.Errorf("translator got prompt %q", fake.gotPrompt)
	}
	if len(fake.gotSchema) == 0 {
		t.Error("translator got empty schema")
	}
	if got := len(sess.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
}

func TestHandleMessageRowLimit(t *testing.T) {
	sess := newTestSession(t)
	fake := &fakeTranslator{stmt: translator.Statement{
		SQL:  "SELECT * FROM people",
		Kind: translator.KindRead,
	}}
	o := New(fake, 2, nil)

	entry, err := o.HandleMessage(context.Background(), sess, "show all")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if entry.RowCount != 3 {
		t.Errorf("RowCount = %d, want true count 3", entry.RowCount)
	}
	if len(entry.Result.Rows) != 2 {
		t.Errorf("displayed rows = %d, want 2", len(entry.Result.Rows))
	}
	if !strings.Contains(entry.Message, "showing the first 2") {
		t.Errorf("message = %q, want truncation notice", entry.Message)
	}
}

func TestHandleMessageWrite(t *testing.T) {
	sess := newTestSession(t)
	fake := &fakeTranslator{stmt: translator.Statement{
		SQL:  "DELETE FROM people WHERE city = 'Oslo'",
		Kind: translator.KindWrite,
	}}
	o := New(fake, 0, nil)

	entry, err := o.HandleMessage(context.Background(), sess, "remove the Oslo rows")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if entry.Failed {
		t.Fatalf("entry failed: %s", entry.Message)
	}
	if entry.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2 affected", entry.RowCount)
	}
	if !strings.Contains(entry.Message, "2 row(s) affected") {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.Result == nil || len(entry.Result.Rows) != 1 {
		t.Fatalf("write preview = %+v, want the 1 remaining row", entry.Result)
	}
}

func TestHandleMessageRefreshesSchemaAfterMixedBatch(t *testing.T) {
	sess := newTestSession(t)
	// The batch mutates the file even though its last statement is a read.
	fake := &fakeTranslator{stmt: translator.Statement{
		SQL:  "DROP TABLE people; SELECT 1 AS ok",
		Kind: translator.KindRead,
	}}
	o := New(fake, 0, nil)

	entry, err := o.HandleMessage(context.Background(), sess, "drop it and confirm")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if entry.Failed {
		t.Fatalf("entry failed: %s", entry.Message)
	}
	if _, ok := sess.Schema().Table("people"); ok {
		t.Errorf("cached schema still lists the dropped table: %v", sess.Schema().TableNames())
	}
}

func TestHandleMessageTranslationFailure(t *testing.T) {
	sess := newTestSession(t)
	fake := &fakeTranslator{err: &translator.TranslationError{Reason: "model returned empty statement"}}
	o := New(fake, 0, nil)

	entry, err := o.HandleMessage(context.Background(), sess, "???")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !entry.Failed {
		t.Fatal("entry should be marked failed")
	}
	if entry.SQL != "" {
		t.Errorf("SQL = %q, want empty on translation failure", entry.SQL)
	}
	if got := len(sess.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
}

func TestHandleMessageExecutionFailure(t *testing.T) {
	sess := newTestSession(t)
	fake := &fakeTranslator{stmt: translator.Statement{
		SQL:  "SELECT * FROM no_such_table",
		Kind: translator.KindRead,
	}}
	o := New(fake, 0, nil)

	entry, err := o.HandleMessage(context.Background(), sess, "query a ghost")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !entry.Failed {
		t.Fatal("entry should be marked failed")
	}
	if entry.SQL == "" {
		t.Error("failed execution should still record the generated SQL")
	}
	if got := len(sess.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}

	// The data file still works after a failed statement.
	result, qerr := sess.File().Query(context.Background(), "SELECT COUNT(*) FROM people")
	if qerr != nil {
		t.Fatalf("file unusable after failure: %v", qerr)
	}
	if result.RowCount() != 1 {
		t.Errorf("count query rows = %d", result.RowCount())
	}
}

func TestHandleMessageNoFile(t *testing.T) {
	m, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.CloseAll)
	sess, err := m.Create()
	if err != nil {
		t.Fatal(err)
	}

	o := New(&fakeTranslator{}, 0, nil)
	if _, err := o.HandleMessage(context.Background(), sess, "anything"); err == nil {
		t.Fatal("want error when no data file is loaded")
	} else if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected error kind: %v", err)
	}
}

func TestExtractTableName(t *testing.T) {
	tests := []struct {
		sql    string
		want   string
		wantOK bool
	}{
		{"SELECT * FROM people WHERE age > 1", "people", true},
		{"INSERT INTO people (name) VALUES ('x')", "people", true},
		{"UPDATE People SET age = 0", "people", true},
		{"CREATE TABLE pets (name TEXT)", "pets", true},
		{"VACUUM", "", false},
	}
	for _, tt := range tests {
		got, ok := extractTableName(tt.sql)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("extractTableName(%q) = %q, %v; want %q, %v", tt.sql, got, ok, tt.want, tt.wantOK)
		}
	}
}
