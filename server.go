package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lang2sql/internal/chat"
	"lang2sql/internal/config"
	"lang2sql/internal/metrics"
	"lang2sql/internal/session"
)

// sessionCookie is the name of the cookie carrying the session ID.
const sessionCookie = "lang2sql_session"

// startServer initializes and starts the HTTP server
func startServer(cfg *config.Config) error {
	if err := setupLogger(cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to setup logger: %v\n", err)
	}

	manager, err := session.NewManager(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	defer manager.CloseAll()

	trans, err := newTranslator(cfg)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}

	orchestrator := chat.New(trans, cfg.RowLimit, logger)

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
	}
	cookies := sessions.NewCookieStore([]byte(secret))
	cookies.MaxAge(0)
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(metrics.Middleware)

	// Web handlers (HTML responses)
	webHandler := NewWebHandler(manager, orchestrator, cookies, cfg)
	r.Get("/", webHandler.ChatPage)
	r.Post("/upload", webHandler.Upload)
	r.Post("/chat", webHandler.Chat)
	r.Get("/download", webHandler.Download)
	r.Get("/schema", webHandler.SchemaPartial)
	r.Get("/history", webHandler.HistoryPartial)
	r.Post("/reset", webHandler.Reset)

	// API handlers (JSON responses)
	apiHandler := &APIHandler{Manager: manager, Orchestrator: orchestrator, Cookies: cookies, Config: cfg}
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", apiHandler.Upload)
		r.Post("/chat", apiHandler.Chat)
		r.Get("/schema", apiHandler.Schema)
		r.Get("/history", apiHandler.History)
		r.Get("/download", apiHandler.Download)
		r.Post("/reset", apiHandler.Reset)
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	log.Printf("Starting server on http://localhost%s", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, r)
}

// randomSecret generates a cookie signing key for the common case where no
// session_secret is configured. Sessions then die with the process.
func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
