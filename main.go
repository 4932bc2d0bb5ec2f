package main

import (
	"fmt"
	"log/slog"
	"os"

	"lang2sql/cmd"
	"lang2sql/internal/config"
	"lang2sql/internal/translator"
)

var logger *slog.Logger

// setupLogger creates and configures the application logger
func setupLogger(logPath string) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	handler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true, // Include file:line information
	})

	logger = slog.New(handler)
	logger.Info("Application started", "version", "1.0")

	return nil
}

// newTranslator builds the configured prompt translator.
func newTranslator(cfg *config.Config) (*translator.Translator, error) {
	return translator.New(cfg.APIKey,
		translator.WithModel(cfg.Model),
		translator.WithMaxTokens(cfg.MaxTokens),
	)
}

func main() {
	// Set up cmd package callbacks
	cmd.LaunchTUI = launchTUI
	cmd.StartServer = startServer

	// Execute the CLI
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
