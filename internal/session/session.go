// Package session tracks per-conversation state: the loaded data file, its
// current schema, and the message history. Sessions are explicit objects
// handed to the orchestrator, never package-level state.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"lang2sql/internal/store"
)

// HistoryEntry records one user message and its outcome. Every message adds
// exactly one entry, whether the pipeline succeeded or failed.
type HistoryEntry struct {
	Time        time.Time     `json:"time"`
	Prompt      string        `json:"prompt"`
	SQL         string        `json:"sql,omitempty"`
	Kind        string        `json:"kind,omitempty"`
	Explanation string        `json:"explanation,omitempty"`
	RowCount    int           `json:"row_count"`
	Failed      bool          `json:"failed"`
	Message     string        `json:"message,omitempty"`
	Result      *store.Result `json:"result,omitempty"`
}

// Session is one user's conversation with one data file.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	dir     string
	file    *store.DataFile
	schema  store.Schema
	history []HistoryEntry
}

// Start attaches a freshly loaded data file, replacing any previous one and
// clearing the history.
func (s *Session) Start(file *store.DataFile, schema store.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Close()
	}
	s.file = file
	s.schema = schema
	s.history = nil
}

// File returns the attached data file, or nil before any upload.
func (s *Session) File() *store.DataFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// Schema returns the schema as of the last refresh.
func (s *Session) Schema() store.Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// SetSchema replaces the cached schema after a write statement.
func (s *Session) SetSchema(schema store.Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = schema
}

// Record appends one history entry.
func (s *Session) Record(entry HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, entry)
}

// History returns a copy of the conversation so far, oldest first.
func (s *Session) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Dir is the session's private scratch directory.
func (s *Session) Dir() string { return s.dir }

// Close releases the data file and removes the scratch directory.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.file != nil {
		err = s.file.Close()
		s.file = nil
	}
	if s.dir != "" {
		if rmErr := os.RemoveAll(s.dir); err == nil {
			err = rmErr
		}
	}
	return err
}

// Manager owns the live sessions and their scratch directories.
type Manager struct {
	workDir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager rooted at workDir. The directory is created
// if it does not exist.
func NewManager(workDir string) (*Manager, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session work dir: %w", err)
	}
	return &Manager{
		workDir:  workDir,
		sessions: make(map[string]*Session),
	}, nil
}

// Create allocates a new session with its own scratch directory.
func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.workDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		dir:       dir,
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the session with the given ID, if it is still live.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the existing session or allocates a new one when the
// ID is unknown or empty, as happens on a first visit or after a restart.
func (m *Manager) GetOrCreate(id string) (*Session, error) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, nil
		}
	}
	return m.Create()
}

// Remove closes a session and forgets it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// CloseAll tears down every live session, used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
