// Package config loads service configuration from defaults, an optional
// lang2sql.yaml file, and LANG2SQL_-prefixed environment variables, in that
// order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults applied before any file or environment override.
const (
	DefaultAddr           = ":8080"
	DefaultMaxTokens      = 2000
	DefaultRowLimit       = 500
	DefaultMaxUploadBytes = 100 << 20
	DefaultWorkDir        = "lang2sql-sessions"
	DefaultLogFile        = "lang2sql.log"
)

// Config is the full service configuration.
type Config struct {
	// Addr is the host:port the web server listens on.
	Addr string `koanf:"addr"`

	// Model overrides the Claude model used for translation.
	Model string `koanf:"model"`

	// MaxTokens bounds the model's response length.
	MaxTokens int64 `koanf:"max_tokens"`

	// APIKey is the Anthropic API key. ANTHROPIC_API_KEY is honored when
	// neither the file nor LANG2SQL_API_KEY sets it.
	APIKey string `koanf:"api_key"`

	// WorkDir holds per-session scratch directories.
	WorkDir string `koanf:"work_dir"`

	// RowLimit caps rows returned to the view per query.
	RowLimit int `koanf:"row_limit"`

	// MaxUploadBytes caps the size of an uploaded data file.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// SessionSecret signs the session cookie. A random secret is generated
	// when empty, which invalidates cookies across restarts.
	SessionSecret string `koanf:"session_secret"`

	// LogFile receives the JSON log stream.
	LogFile string `koanf:"log_file"`
}

// findConfigFile returns the config file to use.
// Priority: explicit path > lang2sql.yaml > lang2sql.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"lang2sql.yaml", "lang2sql.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load builds the configuration. cfgFile may be empty, in which case
// lang2sql.yaml in the working directory is used if present.
func Load(cfgFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"addr":             DefaultAddr,
		"max_tokens":       DefaultMaxTokens,
		"row_limit":        DefaultRowLimit,
		"max_upload_bytes": DefaultMaxUploadBytes,
		"work_dir":         DefaultWorkDir,
		"log_file":         DefaultLogFile,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Transform: LANG2SQL_MAX_TOKENS -> max_tokens
	if err := k.Load(env.Provider("LANG2SQL_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LANG2SQL_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	return &cfg, nil
}
