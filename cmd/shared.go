package cmd

import (
	"fmt"
	"os"

	"lang2sql/internal/config"
	"lang2sql/internal/store"
)

// These variables are set by the main package so the TUI and web server can
// live there without an import cycle.
var (
	LaunchTUI   func(cfgFile string, dataPath string)
	StartServer func(cfg *config.Config) error
)

// HandleError prints error and exits
func HandleError(err error, message string) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}

// loadConfig loads the service configuration honoring the --config flag.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		HandleError(err, "Failed to load configuration")
	}
	return cfg
}

// openDataFile loads the --file argument into a scratch directory and
// returns the open file plus a cleanup. The original on disk is never
// touched; --out writes changes back explicitly.
func openDataFile() (*store.DataFile, func(), error) {
	if dataPath == "" {
		return nil, nil, fmt.Errorf("a data file is required (use --file)")
	}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", dataPath, err)
	}
	dir, err := os.MkdirTemp("", "lang2sql-*")
	if err != nil {
		return nil, nil, err
	}
	file, err := store.Load(data, dataPath, dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, nil, err
	}
	cleanup := func() {
		file.Close()
		os.RemoveAll(dir)
	}
	return file, cleanup, nil
}
