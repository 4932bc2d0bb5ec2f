package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/sessions"

	"lang2sql/internal/chat"
	"lang2sql/internal/config"
	"lang2sql/internal/metrics"
	sess "lang2sql/internal/session"
	"lang2sql/internal/store"
)

// APIHandler handles JSON API requests
type APIHandler struct {
	Manager      *sess.Manager
	Orchestrator *chat.Orchestrator
	Cookies      *sessions.CookieStore
	Config       *config.Config
}

func (h *APIHandler) currentSession(w http.ResponseWriter, r *http.Request) (*sess.Session, error) {
	cookie, _ := h.Cookies.Get(r, sessionCookie)
	id, _ := cookie.Values["id"].(string)

	s, err := h.Manager.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if s.ID != id {
		cookie.Values["id"] = s.ID
		_ = cookie.Save(r, w)
	}
	return s, nil
}

// Upload handles API file uploads
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.Config.MaxUploadBytes); err != nil {
		respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "File too large or malformed upload"})
		return
	}

	upload, header, err := r.FormFile("datafile")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing file field"})
		return
	}
	defer upload.Close()

	data, err := io.ReadAll(upload)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	format, _ := store.DetectFormat(header.Filename)
	file, err := store.Load(data, header.Filename, s.Dir())
	if err != nil {
		metrics.ObserveUpload(string(format), false)
		var formatErr *store.FormatError
		if errors.As(err, &formatErr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": formatErr.Error()})
			return
		}
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	schema, err := file.Schema(r.Context())
	if err != nil {
		file.Close()
		metrics.ObserveUpload(string(file.Format()), false)
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Could not read the schema of the uploaded file"})
		return
	}

	s.Start(file, schema)
	metrics.ObserveUpload(string(file.Format()), true)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session": s.ID,
		"format":  file.Format(),
		"schema":  schema,
	})
}

// Chat handles one API chat message
func (h *APIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "A non-empty message is required"})
		return
	}
	if s.File() == nil {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "Upload a data file first"})
		return
	}

	entry, err := h.Orchestrator.HandleMessage(r.Context(), s, req.Message)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// Schema returns the current schema as JSON
func (h *APIHandler) Schema(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	if s.File() == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "No data file loaded"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"schema": s.Schema(),
	})
}

// History returns the conversation so far as JSON
func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.History(),
		"count":   len(s.History()),
	})
}

// Download serves the current database bytes
func (h *APIHandler) Download(w http.ResponseWriter, r *http.Request) {
	s, err := h.currentSession(w, r)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	file := s.File()
	if file == nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "No data file loaded"})
		return
	}

	data, err := file.Serialize(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	metrics.ObserveDownload()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+file.DownloadName()+`"`)
	_, _ = w.Write(data)
}

// Reset discards the session
func (h *APIHandler) Reset(w http.ResponseWriter, r *http.Request) {
	cookie, _ := h.Cookies.Get(r, sessionCookie)
	if id, ok := cookie.Values["id"].(string); ok && id != "" {
		_ = h.Manager.Remove(id)
	}
	delete(cookie.Values, "id")
	_ = cookie.Save(r, w)

	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// respondJSON is a helper function to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		if logger != nil {
			logger.Error("JSON encoding error", "error", err)
		}
	}
}
