package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"lang2sql/internal/chat"
	"lang2sql/internal/config"
	"lang2sql/internal/session"
	"lang2sql/internal/store"
)

// renderMarkdown renders markdown content with glamour for terminal display
func renderMarkdown(content string, width int) (string, error) {
	// Account for borders, padding, and glamour's internal gutter
	const glamourGutter = 2
	const borderWidth = 4 // 2 for border characters, 2 for padding

	renderWidth := width - borderWidth - glamourGutter
	if renderWidth < 40 {
		renderWidth = 40 // Minimum width for readable content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(renderWidth),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return "", err
	}

	return rendered, nil
}

type view int

const (
	chatView view = iota
	savePromptView
)

type model struct {
	orch          *chat.Orchestrator
	sess          *session.Session
	currentView   view
	chatInput     textinput.Model
	saveInput     textinput.Model
	viewport      viewport.Model
	width         int
	height        int
	err           error
	thinking      bool
	saveSuccess   string
	viewportReady bool
	lastSQL       string
}

type replyMsg struct {
	entry session.HistoryEntry
	err   error
}

type saveFileMsg struct {
	filename string
	err      error
}

func sendMessage(orch *chat.Orchestrator, sess *session.Session, prompt string) tea.Cmd {
	return func() tea.Msg {
		entry, err := orch.HandleMessage(context.Background(), sess, prompt)
		return replyMsg{entry: entry, err: err}
	}
}

func saveDatabase(sess *session.Session, filename string) tea.Cmd {
	return func() tea.Msg {
		file := sess.File()
		if file == nil {
			return saveFileMsg{err: fmt.Errorf("no data file loaded")}
		}
		data, err := file.Serialize(context.Background())
		if err != nil {
			return saveFileMsg{err: err}
		}
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return saveFileMsg{err: err}
		}
		return saveFileMsg{filename: filename}
	}
}

func initialModel(orch *chat.Orchestrator, sess *session.Session) model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question about your data..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	si := textinput.New()
	si.Placeholder = "Enter filename (e.g., updated_database.db)"
	si.CharLimit = 200
	si.Width = 60

	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	return model{
		orch:        orch,
		sess:        sess,
		currentView: chatView,
		chatInput:   ti,
		saveInput:   si,
		viewport:    vp,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Reserve lines for the header, input box, status, and help text
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 9
		m.viewportReady = true
		m.updateChatViewport()
		return m, nil

	case tea.KeyMsg:
		if m.currentView == savePromptView {
			return m.handleSavePromptKeys(msg)
		}
		return m.handleChatViewKeys(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case replyMsg:
		m.thinking = false
		if msg.err != nil {
			m.err = msg.err
			if logger != nil {
				logger.Error("Chat message failed", "error", msg.err)
			}
			return m, nil
		}
		m.err = nil
		if msg.entry.SQL != "" {
			m.lastSQL = msg.entry.SQL
		}
		m.updateChatViewport()
		m.viewport.GotoBottom()
		return m, nil

	case saveFileMsg:
		m.currentView = chatView
		if msg.err != nil {
			m.err = fmt.Errorf("save failed: %w", msg.err)
			if logger != nil {
				logger.Error("Failed to save database", "error", msg.err)
			}
			return m, nil
		}
		m.saveSuccess = fmt.Sprintf("Saved to: %s", msg.filename)
		m.saveInput.SetValue("")
		if logger != nil {
			logger.Info("Database saved", "filename", msg.filename)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) handleChatViewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyEnter:
		prompt := strings.TrimSpace(m.chatInput.Value())
		if prompt == "" || m.thinking {
			return m, nil
		}
		m.thinking = true
		m.err = nil
		m.saveSuccess = ""
		m.chatInput.SetValue("")
		return m, sendMessage(m.orch, m.sess, prompt)

	case tea.KeyCtrlY:
		// Copy last generated SQL
		if m.lastSQL != "" {
			_ = clipboard.WriteAll(m.lastSQL)
		}
		return m, nil

	case tea.KeyCtrlW:
		// Save updated database to file
		if m.sess.File() != nil {
			m.currentView = savePromptView
			m.saveInput.Focus()
			m.err = nil
			m.saveSuccess = ""
			m.saveInput.SetValue(m.sess.File().DownloadName())
			return m, textinput.Blink
		}
		return m, nil

	// Scrolling keys
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown, tea.KeyHome, tea.KeyEnd:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) handleSavePromptKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.currentView = chatView
		m.saveInput.SetValue("")
		return m, nil

	case tea.KeyEnter:
		filename := m.saveInput.Value()
		if filename == "" {
			m.err = fmt.Errorf("filename cannot be empty")
			return m, nil
		}
		return m, saveDatabase(m.sess, filename)
	}

	var cmd tea.Cmd
	m.saveInput, cmd = m.saveInput.Update(msg)
	return m, cmd
}

// updateChatViewport rebuilds the transcript and loads it into the viewport.
func (m *model) updateChatViewport() {
	if !m.viewportReady {
		return
	}
	content := buildTranscript(m.sess.History())
	if content == "" {
		content = "_Ask a question to get started._"
	}
	rendered, err := renderMarkdown(content, m.viewport.Width)
	if err != nil {
		rendered = content
	}
	m.viewport.SetContent(rendered)
}

// buildTranscript renders the conversation as markdown.
func buildTranscript(history []session.HistoryEntry) string {
	var b strings.Builder
	for _, e := range history {
		fmt.Fprintf(&b, "**You:** %s\n\n", e.Prompt)
		if e.SQL != "" {
			fmt.Fprintf(&b, "```sql\n%s\n```\n\n", e.SQL)
		}
		if e.Explanation != "" {
			fmt.Fprintf(&b, "_%s_\n\n", e.Explanation)
		}
		if e.Message != "" {
			fmt.Fprintf(&b, "%s\n\n", e.Message)
		}
		if e.Result != nil {
			b.WriteString(resultMarkdownTable(e.Result))
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

// resultMarkdownTable renders a result as a markdown table for glamour.
func resultMarkdownTable(result *store.Result) string {
	if len(result.Rows) == 0 {
		return "_(0 rows)_\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "| %s |\n", strings.Join(result.Columns, " | "))
	seps := make([]string, len(result.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	fmt.Fprintf(&b, "| %s |\n", strings.Join(seps, " | "))
	for _, r := range result.Rows {
		values := make([]string, len(r))
		for i, v := range r {
			if v == nil {
				values[i] = "NULL"
			} else {
				values[i] = fmt.Sprintf("%v", v)
			}
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(values, " | "))
	}
	return b.String()
}

func (m model) View() string {
	if m.currentView == savePromptView {
		return m.savePromptRender()
	}
	return m.chatViewRender()
}

func (m model) chatViewRender() string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		MarginBottom(1)

	b.WriteString(headerStyle.Render("💬 Lang2SQL Chat"))
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	inputStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	b.WriteString(inputStyle.Render(m.chatInput.View()))
	b.WriteString("\n")

	if m.thinking {
		b.WriteString("Thinking...\n")
	}

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v\n", m.err)))
	}

	if m.saveSuccess != "" {
		successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
		b.WriteString(successStyle.Render(m.saveSuccess))
		b.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		MarginTop(1)

	help := "\nEnter: Send | Ctrl+Y: Copy last SQL | Ctrl+W: Save database | Esc/Ctrl+C: Quit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m model) savePromptRender() string {
	var b strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		MarginBottom(1)

	b.WriteString(headerStyle.Render("💾 Save Database"))
	b.WriteString("\n\n")

	inputStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	b.WriteString(inputStyle.Render(m.saveInput.View()))
	b.WriteString("\n")

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v\n", m.err)))
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		MarginTop(1)

	b.WriteString(helpStyle.Render("\nEnter: Save | Esc: Cancel"))

	return b.String()
}

// launchTUI loads the data file and starts the interactive chat program.
func launchTUI(cfgFile string, dataPath string) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to setup logger: %v\n", err)
	}

	if dataPath == "" {
		fmt.Fprintln(os.Stderr, "Error: a data file is required (use --file)")
		os.Exit(1)
	}
	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: ANTHROPIC_API_KEY environment variable not set")
		os.Exit(1)
	}

	data, err := os.ReadFile(dataPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", dataPath, err)
		os.Exit(1)
	}

	manager, err := session.NewManager(cfg.WorkDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session manager: %v\n", err)
		os.Exit(1)
	}
	defer manager.CloseAll()

	sess, err := manager.Create()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating session: %v\n", err)
		os.Exit(1)
	}

	file, err := store.Load(data, dataPath, sess.Dir())
	if err != nil {
		if logger != nil {
			logger.Error("Failed to load data file", "error", err, "path", dataPath)
		}
		fmt.Fprintf(os.Stderr, "Error loading data file: %v\n", err)
		os.Exit(1)
	}

	schema, err := file.Schema(context.Background())
	if err != nil {
		file.Close()
		fmt.Fprintf(os.Stderr, "Error reading schema: %v\n", err)
		os.Exit(1)
	}
	sess.Start(file, schema)

	trans, err := newTranslator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating translator: %v\n", err)
		os.Exit(1)
	}
	orch := chat.New(trans, cfg.RowLimit, logger)

	fmt.Println("\n💬 Lang2SQL Configuration:")
	fmt.Printf("   • Data file: %s (%d tables)\n", dataPath, len(schema))
	fmt.Println("   • Claude API: ✓ Available")
	fmt.Println()

	p := tea.NewProgram(
		initialModel(orch, sess),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
