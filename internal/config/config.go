// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for golem.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.golem/config.toml
//   - ~/.golem/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete golem configuration.
type Config struct {
	// Version is the config schema version, bumped on breaking changes.
	Version string `toml:"version" json:"version"`

	// Hive connection configuration
	Hive HiveConfig `toml:"hive" json:"hive"`

	// Context budget configuration
	Context ContextConfig `toml:"context" json:"context"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Tool-calling configuration
	Tools ToolsConfig `toml:"tools" json:"tools"`

	// Conversation storage configuration
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Notes vault configuration
	Vault VaultConfig `toml:"vault" json:"vault"`

	// Relay server configuration (golem serve)
	Server ServerConfig `toml:"server" json:"server"`
}

// HiveConfig describes the hive server golem talks to.
type HiveConfig struct {
	// URL is the base URL of the hive's OpenAI-compatible API.
	URL string `toml:"url" json:"url"`
	// APIKey is sent as a bearer token when non-empty. Most self-hosted
	// hives run without auth; relays and shared boxes set one.
	APIKey string `toml:"api_key" json:"api_key"`
	// Model is the default model requested when none is chosen explicitly.
	Model string `toml:"model" json:"model"`
	// RequestTimeoutSecs bounds a single non-streaming request.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs"`
	// MaxRetries is the retry budget for retryable failures (429/5xx).
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// RateLimitRPS throttles outbound requests; 0 disables the limiter.
	RateLimitRPS float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
	// RateLimitBurst is the limiter burst size when RateLimitRPS is set.
	RateLimitBurst int `toml:"rate_limit_burst" json:"rate_limit_burst"`
}

// ContextConfig bounds the in-memory conversation.
type ContextConfig struct {
	// MaxHistoryChars is the character budget for the whole conversation.
	MaxHistoryChars int `toml:"max_history_chars" json:"max_history_chars"`
	// MaxMessageChars caps individual settled messages.
	MaxMessageChars int `toml:"max_message_chars" json:"max_message_chars"`
	// MinRecentMessages is the recent window structural pruning never drops.
	MinRecentMessages int `toml:"min_recent_messages" json:"min_recent_messages"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme" json:"theme"`
	// ShowReasoning expands reasoning blocks in the chat view by default.
	ShowReasoning bool `toml:"show_reasoning" json:"show_reasoning"`
	// Markdown renders assistant messages through the markdown renderer.
	Markdown bool `toml:"markdown" json:"markdown"`
	// ShowTokens displays token estimates in the status bar.
	ShowTokens bool `toml:"show_tokens" json:"show_tokens"`
	// CompactMode uses a more compact UI layout.
	CompactMode bool `toml:"compact_mode" json:"compact_mode"`
}

// ToolsConfig controls the tool-calling loop.
type ToolsConfig struct {
	// Enabled turns the tool loop on.
	Enabled bool `toml:"enabled" json:"enabled"`
	// ConfirmMode is the shell confirmation policy: "always", "smart", "never".
	// "smart" prompts only for commands flagged as dangerous.
	ConfirmMode string `toml:"confirm_mode" json:"confirm_mode"`
	// ShellTimeoutSecs bounds a single run_command invocation.
	ShellTimeoutSecs int `toml:"shell_timeout_secs" json:"shell_timeout_secs"`
	// MaxSteps caps tool-call rounds per user turn.
	MaxSteps int `toml:"max_steps" json:"max_steps"`
}

// StorageConfig controls conversation persistence.
type StorageConfig struct {
	// Dir is the conversation store directory (empty = ~/.golem/conversations).
	Dir string `toml:"dir" json:"dir"`
	// Encrypt enables at-rest encryption of saved conversations.
	// SECURITY: Conversations can contain pasted secrets; encryption uses
	// AES-256-GCM with a passphrase-derived key.
	Encrypt bool `toml:"encrypt" json:"encrypt"`
	// AutosaveIntervalSecs is the autosave period; 0 disables autosave.
	AutosaveIntervalSecs int `toml:"autosave_interval_secs" json:"autosave_interval_secs"`
}

// VaultConfig points golem at a markdown notes vault.
type VaultConfig struct {
	// Path is the vault root directory (empty = vault integration disabled).
	Path string `toml:"path" json:"path"`
	// DailyDir is the daily-notes subdirectory inside the vault.
	DailyDir string `toml:"daily_dir" json:"daily_dir"`
}

// ServerConfig configures the local relay (golem serve).
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr" json:"addr"`
	// AuthToken, when set, is required as a bearer token on every request.
	AuthToken string `toml:"auth_token" json:"auth_token"`
	// RateLimitRPS throttles inbound requests per client.
	RateLimitRPS float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
	// RateLimitBurst is the inbound limiter burst size.
	RateLimitBurst int `toml:"rate_limit_burst" json:"rate_limit_burst"`
	// AllowedOrigins lists origins allowed by the CORS middleware.
	AllowedOrigins []string `toml:"allowed_origins" json:"allowed_origins"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "0.3.0",

		Hive: HiveConfig{
			URL:                "http://localhost:8090/v1",
			APIKey:             "",
			Model:              "llama3.1:8b",
			RequestTimeoutSecs: 120,
			MaxRetries:         3,
			RateLimitRPS:       0, // disabled
			RateLimitBurst:     0,
		},

		Context: ContextConfig{
			MaxHistoryChars:   24000,
			MaxMessageChars:   3000,
			MinRecentMessages: 6,
		},

		UI: UIConfig{
			Theme:         "dark",
			ShowReasoning: true,
			Markdown:      true,
			ShowTokens:    true,
			CompactMode:   false,
		},

		Tools: ToolsConfig{
			Enabled:          false,
			ConfirmMode:      "smart",
			ShellTimeoutSecs: 30,
			MaxSteps:         8,
		},

		Storage: StorageConfig{
			Dir:                  "", // ~/.golem/conversations
			Encrypt:              false,
			AutosaveIntervalSecs: 60,
		},

		Vault: VaultConfig{
			Path:     "", // disabled
			DailyDir: "daily",
		},

		Server: ServerConfig{
			Addr:           "127.0.0.1:8091",
			AuthToken:      "",
			RateLimitRPS:   5,
			RateLimitBurst: 10,
			AllowedOrigins: nil,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the golem configuration directory path.
func ConfigDir() (string, error) {
	return util.ConfigDir()
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect
// API keys and server tokens.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finishLoad(cfg)
			}
		}
	}

	cfg, err = finishLoad(cfg)
	if err != nil {
		return nil, err
	}

	// Return defaults (with any load error for informational purposes)
	return cfg, loadErr
}

// finishLoad applies env overrides, migration, defaults, and validation in
// the order every load path shares.
func finishLoad(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON loads configuration from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. Used by the --config flag.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finishLoad(cfg)
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Ensure permissions are correct even if the file already existed.
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# golem configuration file")
	fmt.Fprintln(file, "# Generated by golem - edit with care")
	fmt.Fprintln(file, "#")
	fmt.Fprintln(file, "# Documentation: https://github.com/jeranaias/golem-tui")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the configuration to a JSON file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Config, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
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
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Hive settings
	if c.Hive.URL != "" {
		u, err := url.Parse(c.Hive.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "hive.url",
				Message: fmt.Sprintf("invalid URL '%s', must include scheme and host", c.Hive.URL),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   "hive.url",
				Message: fmt.Sprintf("unsupported scheme '%s', must be http or https", u.Scheme),
			})
		}
	}
	if c.Hive.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "hive.request_timeout_secs",
			Message: "must be non-negative",
		})
	}
	if c.Hive.MaxRetries < 0 || c.Hive.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "hive.max_retries",
			Message: fmt.Sprintf("must be 0-10, got %d", c.Hive.MaxRetries),
		})
	}
	if c.Hive.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{
			Field:   "hive.rate_limit_rps",
			Message: "must be non-negative",
		})
	}

	// Context settings. The budget must be able to hold at least the
	// per-message cap or truncation can never satisfy pruning.
	if c.Context.MaxHistoryChars <= 0 {
		errs = append(errs, ValidationError{
			Field:   "context.max_history_chars",
			Message: "must be positive",
		})
	}
	if c.Context.MaxMessageChars <= 0 {
		errs = append(errs, ValidationError{
			Field:   "context.max_message_chars",
			Message: "must be positive",
		})
	}
	if c.Context.MaxMessageChars > 0 && c.Context.MaxHistoryChars > 0 &&
		c.Context.MaxMessageChars > c.Context.MaxHistoryChars {
		errs = append(errs, ValidationError{
			Field:   "context.max_message_chars",
			Message: "cannot exceed max_history_chars",
		})
	}
	if c.Context.MinRecentMessages < 1 {
		errs = append(errs, ValidationError{
			Field:   "context.min_recent_messages",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Context.MinRecentMessages),
		})
	}

	// UI settings
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	// Tools settings
	validConfirmModes := map[string]bool{"always": true, "smart": true, "never": true}
	if !validConfirmModes[strings.ToLower(c.Tools.ConfirmMode)] {
		errs = append(errs, ValidationError{
			Field:   "tools.confirm_mode",
			Message: fmt.Sprintf("invalid mode '%s', must be one of: always, smart, never", c.Tools.ConfirmMode),
		})
	}
	if c.Tools.ShellTimeoutSecs < 1 || c.Tools.ShellTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "tools.shell_timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Tools.ShellTimeoutSecs),
		})
	}
	if c.Tools.MaxSteps < 1 || c.Tools.MaxSteps > 32 {
		errs = append(errs, ValidationError{
			Field:   "tools.max_steps",
			Message: fmt.Sprintf("must be 1-32, got %d", c.Tools.MaxSteps),
		})
	}

	// Storage settings
	if c.Storage.AutosaveIntervalSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "storage.autosave_interval_secs",
			Message: "must be non-negative (0 disables autosave)",
		})
	}

	// Server settings
	if c.Server.Addr == "" {
		errs = append(errs, ValidationError{
			Field:   "server.addr",
			Message: "must not be empty",
		})
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_rps",
			Message: "must be non-negative",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults sets default values for any missing or zero-value
// configuration fields.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}

	// Hive defaults
	if c.Hive.URL == "" {
		c.Hive.URL = defaults.Hive.URL
	}
	if c.Hive.Model == "" {
		c.Hive.Model = defaults.Hive.Model
	}
	if c.Hive.RequestTimeoutSecs == 0 {
		c.Hive.RequestTimeoutSecs = defaults.Hive.RequestTimeoutSecs
	}
	if c.Hive.MaxRetries == 0 {
		c.Hive.MaxRetries = defaults.Hive.MaxRetries
	}
	if c.Hive.RateLimitRPS > 0 && c.Hive.RateLimitBurst == 0 {
		c.Hive.RateLimitBurst = 1
	}

	// Context defaults
	if c.Context.MaxHistoryChars == 0 {
		c.Context.MaxHistoryChars = defaults.Context.MaxHistoryChars
	}
	if c.Context.MaxMessageChars == 0 {
		c.Context.MaxMessageChars = defaults.Context.MaxMessageChars
	}
	if c.Context.MinRecentMessages == 0 {
		c.Context.MinRecentMessages = defaults.Context.MinRecentMessages
	}

	// UI defaults
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}

	// Tools defaults
	if c.Tools.ConfirmMode == "" {
		c.Tools.ConfirmMode = defaults.Tools.ConfirmMode
	}
	if c.Tools.ShellTimeoutSecs == 0 {
		c.Tools.ShellTimeoutSecs = defaults.Tools.ShellTimeoutSecs
	}
	if c.Tools.MaxSteps == 0 {
		c.Tools.MaxSteps = defaults.Tools.MaxSteps
	}

	// Vault defaults
	if c.Vault.DailyDir == "" {
		c.Vault.DailyDir = defaults.Vault.DailyDir
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = defaults.Server.RateLimitRPS
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = defaults.Server.RateLimitBurst
	}
}

// Migrate handles migration from old configuration formats to new ones.
func (c *Config) Migrate() error {
	// Older releases used "ask" for the shell confirmation policy.
	if strings.ToLower(c.Tools.ConfirmMode) == "ask" {
		c.Tools.ConfirmMode = "always"
	}

	// A trailing slash on the hive URL doubled up path separators in
	// request URLs; strip it on the way in.
	c.Hive.URL = strings.TrimSuffix(c.Hive.URL, "/")

	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - GOLEM_HIVE_URL: overrides hive.url
//   - GOLEM_API_KEY: overrides hive.api_key
//   - GOLEM_MODEL: overrides hive.model
//   - GOLEM_VAULT: overrides vault.path
//   - GOLEM_SERVER_TOKEN: overrides server.auth_token
func (c *Config) ApplyEnvOverrides() {
	if hiveURL := os.Getenv("GOLEM_HIVE_URL"); hiveURL != "" {
		c.Hive.URL = hiveURL
	}

	// SECURITY: Env var beats the file so keys can stay out of config files
	// on shared machines entirely.
	if key := os.Getenv("GOLEM_API_KEY"); key != "" {
		c.Hive.APIKey = key
	}

	if model := os.Getenv("GOLEM_MODEL"); model != "" {
		c.Hive.Model = model
	}

	if vault := os.Getenv("GOLEM_VAULT"); vault != "" {
		c.Vault.Path = vault
	}

	if token := os.Getenv("GOLEM_SERVER_TOKEN"); token != "" {
		c.Server.AuthToken = token
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "hive.model").
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			return field.Interface(), nil
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return nil, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return nil, fmt.Errorf("invalid key: %s", key)
}

// Set sets a configuration value using dot notation (e.g., "hive.model").
func (c *Config) Set(key string, value interface{}) error {
	parts := strings.Split(key, ".")
	if len(parts) == 0 {
		return errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})

		if !field.IsValid() {
			return fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}

		if i == len(parts)-1 {
			if !field.CanSet() {
				return fmt.Errorf("cannot set field: %s", key)
			}
			return setFieldValue(field, value)
		}

		if field.Kind() == reflect.Struct {
			v = field
		} else {
			return fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
	}

	return fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}

	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type
// conversion. String input converts to the field's type so /config set
// works from text.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Float64:
			floatVal, err := strconv.ParseFloat(strVal, 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(floatVal)
			return nil
		case reflect.Bool:
			boolVal := strVal == "1" || strings.ToLower(strVal) == "true" || strings.ToLower(strVal) == "yes"
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			// Comma-separated list for []string fields (allowed_origins).
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if trimmed := strings.TrimSpace(item); trimmed != "" {
						items = append(items, trimmed)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}

	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"hive.url",
		"hive.api_key",
		"hive.model",
		"hive.request_timeout_secs",
		"hive.max_retries",
		"hive.rate_limit_rps",
		"hive.rate_limit_burst",
		"context.max_history_chars",
		"context.max_message_chars",
		"context.min_recent_messages",
		"ui.theme",
		"ui.show_reasoning",
		"ui.markdown",
		"ui.show_tokens",
		"ui.compact_mode",
		"tools.enabled",
		"tools.confirm_mode",
		"tools.shell_timeout_secs",
		"tools.max_steps",
		"storage.dir",
		"storage.encrypt",
		"storage.autosave_interval_secs",
		"vault.path",
		"vault.daily_dir",
		"server.addr",
		"server.auth_token",
		"server.rate_limit_rps",
		"server.rate_limit_burst",
		"server.allowed_origins",
	}
}

// Merge merges another config into this one, overwriting only non-zero
// values. Used when layering a --config file over the home config.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Version != "" {
		c.Version = other.Version
	}

	// Hive
	if other.Hive.URL != "" {
		c.Hive.URL = other.Hive.URL
	}
	if other.Hive.APIKey != "" {
		c.Hive.APIKey = other.Hive.APIKey
	}
	if other.Hive.Model != "" {
		c.Hive.Model = other.Hive.Model
	}
	if other.Hive.RequestTimeoutSecs != 0 {
		c.Hive.RequestTimeoutSecs = other.Hive.RequestTimeoutSecs
	}
	if other.Hive.MaxRetries != 0 {
		c.Hive.MaxRetries = other.Hive.MaxRetries
	}
	if other.Hive.RateLimitRPS != 0 {
		c.Hive.RateLimitRPS = other.Hive.RateLimitRPS
	}

	// Context
	if other.Context.MaxHistoryChars != 0 {
		c.Context.MaxHistoryChars = other.Context.MaxHistoryChars
	}
	if other.Context.MaxMessageChars != 0 {
		c.Context.MaxMessageChars = other.Context.MaxMessageChars
	}
	if other.Context.MinRecentMessages != 0 {
		c.Context.MinRecentMessages = other.Context.MinRecentMessages
	}

	// UI
	if other.UI.Theme != "" {
		c.UI.Theme = other.UI.Theme
	}
	if other.UI.ShowReasoning {
		c.UI.ShowReasoning = true
	}
	if other.UI.Markdown {
		c.UI.Markdown = true
	}
	if other.UI.ShowTokens {
		c.UI.ShowTokens = true
	}
	if other.UI.CompactMode {
		c.UI.CompactMode = true
	}

	// Tools
	if other.Tools.Enabled {
		c.Tools.Enabled = true
	}
	if other.Tools.ConfirmMode != "" {
		c.Tools.ConfirmMode = other.Tools.ConfirmMode
	}
	if other.Tools.ShellTimeoutSecs != 0 {
		c.Tools.ShellTimeoutSecs = other.Tools.ShellTimeoutSecs
	}
	if other.Tools.MaxSteps != 0 {
		c.Tools.MaxSteps = other.Tools.MaxSteps
	}

	// Storage
	if other.Storage.Dir != "" {
		c.Storage.Dir = other.Storage.Dir
	}
	if other.Storage.Encrypt {
		c.Storage.Encrypt = true
	}
	if other.Storage.AutosaveIntervalSecs != 0 {
		c.Storage.AutosaveIntervalSecs = other.Storage.AutosaveIntervalSecs
	}

	// Vault
	if other.Vault.Path != "" {
		c.Vault.Path = other.Vault.Path
	}
	if other.Vault.DailyDir != "" {
		c.Vault.DailyDir = other.Vault.DailyDir
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.AuthToken != "" {
		c.Server.AuthToken = other.Server.AuthToken
	}
	if other.Server.RateLimitRPS != 0 {
		c.Server.RateLimitRPS = other.Server.RateLimitRPS
	}
	if other.Server.RateLimitBurst != 0 {
		c.Server.RateLimitBurst = other.Server.RateLimitBurst
	}
	if len(other.Server.AllowedOrigins) > 0 {
		c.Server.AllowedOrigins = append([]string(nil), other.Server.AllowedOrigins...)
	}
}

// Clone creates a deep copy of the configuration.
// SECURITY: Deep copy prevents unintended mutation of the original config
// through shared slice references; a shallow copy would let changes to
// AllowedOrigins affect the running server's CORS policy.
func (c *Config) Clone() *Config {
	clone := *c

	if c.Server.AllowedOrigins != nil {
		clone.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	}

	return &clone
}

// String returns a string representation of the config for debugging.
// SECURITY: Redacts sensitive fields (API keys, server tokens) to prevent
// accidental exposure in logs, error messages, or debug output.
func (c *Config) String() string {
	safe := c.Clone()

	if safe.Hive.APIKey != "" {
		safe.Hive.APIKey = "[REDACTED]"
	}
	if safe.Server.AuthToken != "" {
		safe.Server.AuthToken = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			// Use defaults rather than failing startup.
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
// This should only be used in tests to reset state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
