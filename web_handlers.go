package main

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gorilla/sessions"

	"lang2sql/internal/chat"
	"lang2sql/internal/config"
	"lang2sql/internal/metrics"
	sess "lang2sql/internal/session"
	"lang2sql/internal/store"
)

// WebHandler handles HTML requests
type WebHandler struct {
	Manager      *sess.Manager
	Orchestrator *chat.Orchestrator
	Cookies      *sessions.CookieStore
	Config       *config.Config
	templates    *template.Template
}

// templateFuncs are helpers available to all templates.
var templateFuncs = template.FuncMap{
	// display renders a result cell, showing NULL for missing values.
	"display": func(v any) string {
		if v == nil {
			return "NULL"
		}
		return fmt.Sprintf("%v", v)
	},
}

// NewWebHandler creates a new WebHandler with parsed templates
func NewWebHandler(manager *sess.Manager, orchestrator *chat.Orchestrator, cookies *sessions.CookieStore, cfg *config.Config) *WebHandler {
	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseGlob("templates/*.html"))
	template.Must(tmpl.ParseGlob("templates/partials/*.html"))
	return &WebHandler{
		Manager:      manager,
		Orchestrator: orchestrator,
		Cookies:      cookies,
		Config:       cfg,
		templates:    tmpl,
	}
}

// currentSession resolves the browser's session from its cookie, creating a
// fresh session (and setting the cookie) when none exists.
func (h *WebHandler) currentSession(w http.ResponseWriter, r *http.Request) (*sess.Session, error) {
	cookie, _ := h.Cookies.Get(r, sessionCookie)
	id, _ := cookie.Values["id"].(string)

	s, err := h.Manager.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if s.ID != id {
		cookie.Values["id"] = s.ID
		if err := cookie.Save(r, w); err != nil {
			if logger != nil {
				logger.Warn("Failed to save session cookie", "error", err)
			}
		}
	}
	return s, nil
}

// pageData assembles everything the chat page needs.
func (h *WebHandler) pageData(s *sess.Session) map[string]interface{} {
	var schemaTables store.Schema
	fileLoaded := false
	downloadName := ""
	if f := s.File(); f != nil {
		fileLoaded = true
		downloadName = f.DownloadName()
		schemaTables = s.Schema()
	}
	return map[string]interface{}{
		"Title":        "Lang2SQL",
		"FileLoaded":   fileLoaded,
		"DownloadName": downloadName,
		"Schema":       schemaTables,
		"History":      s.History(),
	}
}

// ChatPage renders the main chat page
func (h *WebHandler) ChatPage(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		h.serverError(w, err)
		return
	}

	if err := h.templates.ExecuteTemplate(w, "chat.html", h.pageData(s)); err != nil {
		h.templateError(w, err)
	}
}

// Upload receives a data file and attaches it to the session
func (h *WebHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		h.serverError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.Config.MaxUploadBytes); err != nil {
		http.Error(w, "File too large or malformed upload", http.StatusRequestEntityTooLarge)
		return
	}

	upload, header, err := r.FormFile("datafile")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer upload.Close()

	data, err := io.ReadAll(upload)
	if err != nil {
		h.serverError(w, err)
		return
	}

	format, _ := store.DetectFormat(header.Filename)
	file, err := store.Load(data, header.Filename, s.Dir())
	if err != nil {
		metrics.ObserveUpload(string(format), false)
		var formatErr *store.FormatError
		if errors.As(err, &formatErr) {
			h.renderUploadError(w, formatErr.Error())
			return
		}
		h.serverError(w, err)
		return
	}

	schema, err := file.Schema(r.Context())
	if err != nil {
		file.Close()
		metrics.ObserveUpload(string(file.Format()), false)
		h.renderUploadError(w, "Could not read the schema of the uploaded file")
		return
	}

	s.Start(file, schema)
	metrics.ObserveUpload(string(file.Format()), true)
	if logger != nil {
		logger.Info("File uploaded", "session", s.ID, "filename", header.Filename, "tables", len(schema))
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Chat handles one user message and returns the updated conversation partial
func (h *WebHandler) Chat(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		h.serverError(w, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	message := r.FormValue("message")
	if message == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}
	if s.File() == nil {
		http.Error(w, "Upload a data file first", http.StatusConflict)
		return
	}

	if _, err := h.Orchestrator.HandleMessage(r.Context(), s, message); err != nil {
		h.serverError(w, err)
		return
	}

	data := map[string]interface{}{
		"History": s.History(),
	}
	if err := h.templates.ExecuteTemplate(w, "messages.html", data); err != nil {
		h.templateError(w, err)
	}
}

// Download serves the current state of the database as a file
func (h *WebHandler) Download(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		h.serverError(w, err)
		return
	}

	file := s.File()
	if file == nil {
		http.Error(w, "No data file loaded", http.StatusNotFound)
		return
	}

	data, err := file.Serialize(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}

	metrics.ObserveDownload()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.DownloadName()+`"`)
	_, _ = w.Write(data)
}

// SchemaPartial returns the schema sidebar partial
func (h *WebHandler) SchemaPartial(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		h.serverError(w, err)
		return
	}

	data := map[string]interface{}{
		"Schema": s.Schema(),
	}
	if err := h.templates.ExecuteTemplate(w, "schema.html", data); err != nil {
		h.templateError(w, err)
	}
}

// HistoryPartial returns the conversation partial
func (h *WebHandler) HistoryPartial(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		h.serverError(w, err)
		return
	}

	data := map[string]interface{}{
		"History": s.History(),
	}
	if err := h.templates.ExecuteTemplate(w, "messages.html", data); err != nil {
		h.templateError(w, err)
	}
}

// Reset discards the session's file and history
func (h *WebHandler) Reset(w http.ResponseWriter, r *http.Request) {
	cookie, _ := h.Cookies.Get(r, sessionCookie)
	if id, ok := cookie.Values["id"].(string); ok && id != "" {
		if err := h.Manager.Remove(id); err != nil && logger != nil {
			logger.Warn("Failed to remove session", "session", id, "error", err)
		}
	}
	delete(cookie.Values, "id")
	_ = cookie.Save(r, w)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *WebHandler) renderUploadError(w http.ResponseWriter, message string) {
	w.WriteHeader(http.StatusUnprocessableEntity)
	data := map[string]interface{}{
		"Title": "Lang2SQL",
		"Error": message,
	}
	if err := h.templates.ExecuteTemplate(w, "chat.html", data); err != nil {
		h.templateError(w, err)
	}
}

func (h *WebHandler) serverError(w http.ResponseWriter, err error) {
	if logger != nil {
		logger.Error("Request failed", "error", err)
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (h *WebHandler) templateError(w http.ResponseWriter, err error) {
	if logger != nil {
		logger.Error("Template error", "error", err)
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
