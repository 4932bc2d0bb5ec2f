package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/sessions"

	"lang2sql/internal/chat"
	"lang2sql/internal/config"
	sess "lang2sql/internal/session"
	"lang2sql/internal/store"
	"lang2sql/internal/translator"
)

// stubTranslator returns a fixed statement without calling any API.
type stubTranslator struct {
	stmt translator.Statement
	err  error
}

func (s *stubTranslator) Translate(_ context.Context, _ string, _ store.Schema) (translator.Statement, error) {
	return s.stmt, s.err
}

func newTestHandler(t *testing.T, stub *stubTranslator) *WebHandler {
	t.Helper()
	manager, err := sess.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(manager.CloseAll)

	cfg := &config.Config{
		MaxUploadBytes: config.DefaultMaxUploadBytes,
		RowLimit:       config.DefaultRowLimit,
	}
	cookies := sessions.NewCookieStore([]byte("test-secret"))
	return NewWebHandler(manager, chat.New(stub, 0, nil), cookies, cfg)
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("datafile", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

// uploadCSV pushes a small CSV through the upload handler and returns the
// session cookie for follow-up requests.
func uploadCSV(t *testing.T, h *WebHandler) []*http.Cookie {
	t.Helper()
	body, contentType := multipartUpload(t, "people.csv", "name,age\nAlice,34\nBob,58\n")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("upload status = %d, body: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("upload did not set a session cookie")
	}
	return cookies
}

func TestChatPageWithoutFile(t *testing.T) {
	h := newTestHandler(t, &stubTranslator{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ChatPage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Upload a CSV") {
		t.Error("empty-session page should prompt for an upload")
	}
}

func TestUploadThenChat(t *testing.T) {
	h := newTestHandler(t, &stubTranslator{stmt: translator.Statement{
		SQL:  "SELECT name FROM people ORDER BY name",
		Kind: translator.KindRead,
	}})

	cookies := uploadCSV(t, h)

	form := strings.NewReader("message=list+everyone")
	req := httptest.NewRequest(http.MethodPost, "/chat", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("chat status = %d, body: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "list everyone") {
		t.Error("response should echo the prompt")
	}
	if !strings.Contains(body, "SELECT name FROM people") {
		t.Error("response should show the generated SQL")
	}
	if !strings.Contains(body, "Alice") {
		t.Error("response should include result rows")
	}
}

func TestReuploadReplacesData(t *testing.T) {
	h := newTestHandler(t, &stubTranslator{})
	cookies := uploadCSV(t, h)

	body, contentType := multipartUpload(t, "cities.csv", "city\nOslo\n")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("re-upload status = %d, body: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/schema", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.SchemaPartial(rec, req)

	schemaBody := rec.Body.String()
	if !strings.Contains(schemaBody, "cities") {
		t.Errorf("schema missing the replacement table: %s", schemaBody)
	}
	if strings.Contains(schemaBody, "people") {
		t.Errorf("schema still lists the replaced upload's table: %s", schemaBody)
	}
}

func TestChatWithoutFileConflicts(t *testing.T) {
	h := newTestHandler(t, &stubTranslator{})

	form := strings.NewReader("message=anything")
	req := httptest.NewRequest(http.MethodPost, "/chat", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestUploadRejectsUnknownFormat(t *testing.T) {
	h := newTestHandler(t, &stubTranslator{})

	body, contentType := multipartUpload(t, "notes.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "notes.txt") {
		t.Error("error page should name the rejected file")
	}
}

func TestDownloadWithoutFile(t *testing.T) {
	h := newTestHandler(t, &stubTranslator{})

	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadAfterUpload(t *testing.T) {
	h := newTestHandler(t, &stubTranslator{})
	cookies := uploadCSV(t, h)

	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.Download(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("download body is empty")
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "updated_database.duckdb") {
		t.Errorf("Content-Disposition = %q", disposition)
	}
}

func TestAPIChatFlow(t *testing.T) {
	manager, err := sess.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(manager.CloseAll)

	stub := &stubTranslator{stmt: translator.Statement{
		SQL:  "SELECT COUNT(*) AS n FROM people",
		Kind: translator.KindRead,
	}}
	api := &APIHandler{
		Manager:      manager,
		Orchestrator: chat.New(stub, 0, nil),
		Cookies:      sessions.NewCookieStore([]byte("test-secret")),
		Config:       &config.Config{MaxUploadBytes: config.DefaultMaxUploadBytes},
	}

	body, contentType := multipartUpload(t, "people.csv", "name,age\nAlice,34\n")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	api.Upload(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("api upload status = %d, body: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()

	chatBody := strings.NewReader(`{"message": "how many people?"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/chat", chatBody)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	api.Chat(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("api chat status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var entry sess.HistoryEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decoding entry: %v", err)
	}
	if entry.Failed {
		t.Fatalf("entry failed: %s", entry.Message)
	}
	if entry.RowCount != 1 {
		t.Errorf("RowCount = %d, want 1", entry.RowCount)
	}
}
