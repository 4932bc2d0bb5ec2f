package main

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"lang2sql/internal/chat"
	"lang2sql/internal/session"
	"lang2sql/internal/store"
	"lang2sql/internal/translator"
)

func setupTestSession(t *testing.T) *session.Session {
	t.Helper()
	manager, err := session.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(manager.CloseAll)
	s, err := manager.Create()
	if err != nil {
		t.Fatal(err)
	}
	file, err := store.Load([]byte("name,age\nAlice,34\n"), "people.csv", s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	schema, err := file.Schema(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s.Start(file, schema)
	return s
}

// TestInitialModel tests the initial model creation
func TestInitialModel(t *testing.T) {
	s := setupTestSession(t)
	orch := chat.New(&stubTranslator{}, 0, nil)

	m := initialModel(orch, s)

	if m.currentView != chatView {
		t.Errorf("Expected initial view to be chatView, got %v", m.currentView)
	}

	if !m.chatInput.Focused() {
		t.Error("Expected chat input to be focused initially")
	}

	if m.thinking {
		t.Error("Expected thinking to be false initially")
	}

	if m.err != nil {
		t.Errorf("Expected no error initially, got %v", m.err)
	}
}

// TestChatViewKeyHandling tests key handling in the chat view
func TestChatViewKeyHandling(t *testing.T) {
	s := setupTestSession(t)
	orch := chat.New(&stubTranslator{stmt: translator.Statement{
		SQL:  "SELECT * FROM people",
		Kind: translator.KindRead,
	}}, 0, nil)

	m := initialModel(orch, s)
	m.width = 80
	m.height = 24

	// Enter with an empty input does nothing
	newModel, cmd := m.handleChatViewKeys(tea.KeyMsg{Type: tea.KeyEnter})
	m = newModel.(model)
	if cmd != nil {
		t.Error("Enter with empty input should not produce a command")
	}

	// Enter with text sends the message
	m.chatInput.SetValue("list everyone")
	newModel, cmd = m.handleChatViewKeys(tea.KeyMsg{Type: tea.KeyEnter})
	m = newModel.(model)
	if cmd == nil {
		t.Fatal("Enter with text should produce a send command")
	}
	if !m.thinking {
		t.Error("Expected thinking after sending")
	}
	if m.chatInput.Value() != "" {
		t.Error("Expected input to be cleared after sending")
	}

	// Running the command produces a reply that lands in the model
	msg := cmd()
	reply, ok := msg.(replyMsg)
	if !ok {
		t.Fatalf("command returned %T, want replyMsg", msg)
	}
	if reply.err != nil {
		t.Fatalf("reply error: %v", reply.err)
	}
	updated, _ := m.Update(reply)
	m = updated.(model)
	if m.thinking {
		t.Error("Expected thinking to clear after reply")
	}
	if m.lastSQL != "SELECT * FROM people" {
		t.Errorf("lastSQL = %q", m.lastSQL)
	}
}

// TestSavePromptKeys tests the save prompt view
func TestSavePromptKeys(t *testing.T) {
	s := setupTestSession(t)
	m := initialModel(chat.New(&stubTranslator{}, 0, nil), s)

	// Ctrl+W opens the save prompt pre-filled with the download name
	newModel, _ := m.handleChatViewKeys(tea.KeyMsg{Type: tea.KeyCtrlW})
	m = newModel.(model)
	if m.currentView != savePromptView {
		t.Fatal("Ctrl+W should open the save prompt")
	}
	if m.saveInput.Value() != "updated_database.duckdb" {
		t.Errorf("save input = %q", m.saveInput.Value())
	}

	// Esc cancels back to the chat
	newModel, _ = m.handleSavePromptKeys(tea.KeyMsg{Type: tea.KeyEsc})
	m = newModel.(model)
	if m.currentView != chatView {
		t.Error("Esc should return to the chat view")
	}
}

// TestBuildTranscript tests transcript rendering
func TestBuildTranscript(t *testing.T) {
	history := []session.HistoryEntry{
		{
			Prompt:  "how many rows?",
			SQL:     "SELECT COUNT(*) FROM t",
			Kind:    "read",
			Message: "Returned 1 row(s).",
			Result: &store.Result{
				Read:    true,
				Columns: []string{"count"},
				Rows:    [][]any{{int64(3)}},
			},
		},
		{
			Prompt:  "break something",
			Failed:  true,
			Message: "The generated query failed: no such table",
		},
	}

	transcript := buildTranscript(history)

	for _, want := range []string{
		"**You:** how many rows?",
		"SELECT COUNT(*) FROM t",
		"| count |",
		"| 3 |",
		"The generated query failed",
	} {
		if !strings.Contains(transcript, want) {
			t.Errorf("transcript missing %q:\n%s", want, transcript)
		}
	}
}

func TestResultMarkdownTableNullAndEmpty(t *testing.T) {
	empty := &store.Result{Read: true, Columns: []string{"a"}}
	if got := resultMarkdownTable(empty); !strings.Contains(got, "(0 rows)") {
		t.Errorf("empty result = %q", got)
	}

	withNull := &store.Result{
		Read:    true,
		Columns: []string{"a", "b"},
		Rows:    [][]any{{nil, "x"}},
	}
	if got := resultMarkdownTable(withNull); !strings.Contains(got, "NULL") {
		t.Errorf("null cell not rendered: %q", got)
	}
}
