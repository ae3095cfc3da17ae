// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/util"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CSF_"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete assistant configuration.
type Config struct {
	API       APIConfig       `toml:"api" json:"api"`
	Assistant AssistantConfig `toml:"assistant" json:"assistant"`
	Mutation  MutationConfig  `toml:"mutation" json:"mutation"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Prefs     PrefsConfig     `toml:"prefs" json:"prefs"`
	DevServer DevServerConfig `toml:"devserver" json:"devserver"`
}

// APIConfig locates the assessment service.
type APIConfig struct {
	// BaseURL is the service root, e.g. http://localhost:8787.
	BaseURL string `toml:"base_url" json:"base_url"`

	// TimeoutSecs bounds item mutation requests. Streams have no timeout.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`

	// MaxRetries is the number of attempts for an item mutation.
	MaxRetries int `toml:"max_retries" json:"max_retries"`

	// RequestsPerSec paces item mutation attempts. Zero disables pacing.
	RequestsPerSec float64 `toml:"requests_per_sec" json:"requests_per_sec"`
	Burst          int     `toml:"burst" json:"burst"`
}

// AssistantConfig controls the conversational panel.
type AssistantConfig struct {
	// HistoryTurns is how many prior turns are sent with a request.
	HistoryTurns int `toml:"history_turns" json:"history_turns"`

	// DefaultMode is used when no remembered preference exists.
	DefaultMode string `toml:"default_mode" json:"default_mode"`

	// AssistedGreeting seeds an empty assisted conversation.
	AssistedGreeting string `toml:"assisted_greeting" json:"assisted_greeting"`
}

// MutationConfig controls optimistic item edits.
type MutationConfig struct {
	// NotesDebounceMs is the quiet period before a notes edit is persisted.
	NotesDebounceMs int `toml:"notes_debounce_ms" json:"notes_debounce_ms"`

	// AllowNotAssessed adds "not_assessed" to the accepted statuses.
	AllowNotAssessed bool `toml:"allow_not_assessed" json:"allow_not_assessed"`

	// NoticeTTLSecs is how long a failure notice stays visible.
	NoticeTTLSecs int `toml:"notice_ttl_secs" json:"notice_ttl_secs"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Pretty bool   `toml:"pretty" json:"pretty"`
	File   string `toml:"file" json:"file"`
}

// PrefsConfig locates the remembered preferences file.
type PrefsConfig struct {
	Path string `toml:"path" json:"path"`
}

// DevServerConfig controls the local development service.
type DevServerConfig struct {
	Addr string `toml:"addr" json:"addr"`

	// MetricsAddr serves /metrics on a separate listener. Empty disables it.
	MetricsAddr string `toml:"metrics_addr" json:"metrics_addr"`

	// DBPath is the SQLite item database. Empty uses the config directory.
	DBPath string `toml:"db_path" json:"db_path"`

	// TokenDelayMs spaces streamed answer fragments.
	TokenDelayMs int `toml:"token_delay_ms" json:"token_delay_ms"`

	// FailEvery makes every Nth item mutation fail. Zero disables.
	FailEvery int `toml:"fail_every" json:"fail_every"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultAssistedGreeting is the canned opening of the assisted conversation.
const DefaultAssistedGreeting = "Hi! I can answer questions about this assessment in depth. What would you like to know?"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8787",
			TimeoutSecs:    30,
			MaxRetries:     3,
			RequestsPerSec: 5,
			Burst:          10,
		},
		Assistant: AssistantConfig{
			HistoryTurns:     10,
			DefaultMode:      string(model.ModeQuick),
			AssistedGreeting: DefaultAssistedGreeting,
		},
		Mutation: MutationConfig{
			NotesDebounceMs: 500,
			NoticeTTLSecs:   5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		DevServer: DevServerConfig{
			Addr:         "localhost:8787",
			MetricsAddr:  "localhost:9187",
			TokenDelayMs: 25,
		},
	}
}

// NotesDebounce returns the notes quiet period as a duration.
func (c *Config) NotesDebounce() time.Duration {
	return time.Duration(c.Mutation.NotesDebounceMs) * time.Millisecond
}

// NoticeTTL returns the notice lifetime as a duration.
func (c *Config) NoticeTTL() time.Duration {
	return time.Duration(c.Mutation.NoticeTTLSecs) * time.Second
}

// Timeout returns the mutation request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// Statuses returns the accepted status set.
func (c *Config) Statuses() model.StatusSet {
	return model.NewStatusSet(c.Mutation.AllowNotAssessed)
}

// =============================================================================
// PATH FUNCTIONS
// =============================================================================

// ConfigDir returns the configuration directory (~/.csf-assist).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".csf-assist"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DefaultDevServerDBPath returns ~/.csf-assist/devserver.db.
func DefaultDevServerDBPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "csf-assist-devserver.db")
	}
	return filepath.Join(dir, "devserver.db")
}

// DefaultPrefsPath returns where preferences live when none is configured.
func DefaultPrefsPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "csf-assist-prefs.json")
	}
	return filepath.Join(dir, "prefs.json")
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.csf-assist/config.toml if present, overlays a .env file from
// the working directory and applies environment overrides. A missing config
// file is not an error.
func Load() (*Config, error) {
	path, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		return finish(cfg)
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file. Files ending in
// .json are decoded as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON file %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file %s: %w", path, err)
		}
	}
	fillDefaults(cfg)
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	// A missing .env is the normal case.
	_ = LoadDotEnv(".env")
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	return godotenv.Load(path)
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = defaults.API.TimeoutSecs
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = defaults.API.MaxRetries
	}
	if cfg.API.Burst == 0 {
		cfg.API.Burst = defaults.API.Burst
	}

	if cfg.Assistant.HistoryTurns == 0 {
		cfg.Assistant.HistoryTurns = defaults.Assistant.HistoryTurns
	}
	if cfg.Assistant.DefaultMode == "" {
		cfg.Assistant.DefaultMode = defaults.Assistant.DefaultMode
	}
	if cfg.Assistant.AssistedGreeting == "" {
		cfg.Assistant.AssistedGreeting = defaults.Assistant.AssistedGreeting
	}

	if cfg.Mutation.NotesDebounceMs == 0 {
		cfg.Mutation.NotesDebounceMs = defaults.Mutation.NotesDebounceMs
	}
	if cfg.Mutation.NoticeTTLSecs == 0 {
		cfg.Mutation.NoticeTTLSecs = defaults.Mutation.NoticeTTLSecs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}

	if cfg.DevServer.Addr == "" {
		cfg.DevServer.Addr = defaults.DevServer.Addr
	}
	if cfg.DevServer.TokenDelayMs == 0 {
		cfg.DevServer.TokenDelayMs = defaults.DevServer.TokenDelayMs
	}
}

// =============================================================================
// SAVE
// =============================================================================

// SaveTOML writes the configuration to path atomically.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0600)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks ranges and formats and returns ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "api.base_url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host", c.API.BaseURL),
		})
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "api.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.API.TimeoutSecs),
		})
	}
	if c.API.MaxRetries < 1 || c.API.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "api.max_retries",
			Message: fmt.Sprintf("must be between 1 and 10, got %d", c.API.MaxRetries),
		})
	}
	if c.API.RequestsPerSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "api.requests_per_sec",
			Message: fmt.Sprintf("must not be negative, got %g", c.API.RequestsPerSec),
		})
	}

	if c.Assistant.HistoryTurns < 0 || c.Assistant.HistoryTurns > 100 {
		errs = append(errs, ValidationError{
			Field:   "assistant.history_turns",
			Message: fmt.Sprintf("must be between 0 and 100, got %d", c.Assistant.HistoryTurns),
		})
	}
	if _, err := model.ParseMode(c.Assistant.DefaultMode); err != nil {
		errs = append(errs, ValidationError{
			Field:   "assistant.default_mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: quick, assisted", c.Assistant.DefaultMode),
		})
	}

	if c.Mutation.NotesDebounceMs < 50 || c.Mutation.NotesDebounceMs > 10000 {
		errs = append(errs, ValidationError{
			Field:   "mutation.notes_debounce_ms",
			Message: fmt.Sprintf("must be between 50 and 10000, got %d", c.Mutation.NotesDebounceMs),
		})
	}
	if c.Mutation.NoticeTTLSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "mutation.notice_ttl_secs",
			Message: "must be positive",
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "disabled", "off", "none":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid level '%s'", c.Logging.Level),
		})
	}

	if c.DevServer.TokenDelayMs < 0 || c.DevServer.TokenDelayMs > 5000 {
		errs = append(errs, ValidationError{
			Field:   "devserver.token_delay_ms",
			Message: fmt.Sprintf("must be between 0 and 5000, got %d", c.DevServer.TokenDelayMs),
		})
	}
	if c.DevServer.FailEvery < 0 {
		errs = append(errs, ValidationError{
			Field:   "devserver.fail_every",
			Message: fmt.Sprintf("must not be negative, got %d", c.DevServer.FailEvery),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - CSF_API_URL: overrides api.base_url
//   - CSF_API_TIMEOUT: overrides api.timeout_secs
//   - CSF_MODE: overrides assistant.default_mode
//   - CSF_NOTES_DEBOUNCE_MS: overrides mutation.notes_debounce_ms
//   - CSF_ALLOW_NOT_ASSESSED: "1" or "true" enables not_assessed
//   - CSF_LOG_LEVEL: overrides logging.level
//   - CSF_PREFS_PATH: overrides prefs.path
//   - CSF_DEVSERVER_ADDR: overrides devserver.addr
//   - CSF_DEVSERVER_METRICS_ADDR: overrides devserver.metrics_addr
//   - CSF_DEVSERVER_DB: overrides devserver.db_path
//   - CSF_DEVSERVER_FAIL_EVERY: overrides devserver.fail_every
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv(EnvPrefix + "API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if n, ok := envInt(EnvPrefix + "API_TIMEOUT"); ok {
		c.API.TimeoutSecs = n
	}
	if v := os.Getenv(EnvPrefix + "MODE"); v != "" {
		c.Assistant.DefaultMode = v
	}
	if n, ok := envInt(EnvPrefix + "NOTES_DEBOUNCE_MS"); ok {
		c.Mutation.NotesDebounceMs = n
	}
	if v := os.Getenv(EnvPrefix + "ALLOW_NOT_ASSESSED"); v != "" {
		c.Mutation.AllowNotAssessed = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "PREFS_PATH"); v != "" {
		c.Prefs.Path = v
	}
	if v := os.Getenv(EnvPrefix + "DEVSERVER_ADDR"); v != "" {
		c.DevServer.Addr = v
	}
	if v, ok := os.LookupEnv(EnvPrefix + "DEVSERVER_METRICS_ADDR"); ok {
		c.DevServer.MetricsAddr = v
	}
	if v := os.Getenv(EnvPrefix + "DEVSERVER_DB"); v != "" {
		c.DevServer.DBPath = v
	}
	if n, ok := envInt(EnvPrefix + "DEVSERVER_FAIL_EVERY"); ok {
		c.DevServer.FailEvery = n
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsValidationError reports whether err carries configuration validation errors.
func IsValidationError(err error) bool {
	var verrs ValidateErrors
	return errors.As(err, &verrs)
}
