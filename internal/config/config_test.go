// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Hive.URL != "http://localhost:8090/v1" {
		t.Errorf("Hive.URL = %q", cfg.Hive.URL)
	}
	if cfg.Hive.Model == "" {
		t.Error("default model should not be empty")
	}
	if cfg.Context.MaxHistoryChars != 24000 || cfg.Context.MaxMessageChars != 3000 || cfg.Context.MinRecentMessages != 6 {
		t.Errorf("context defaults = %+v", cfg.Context)
	}
	if cfg.Tools.ConfirmMode != "smart" {
		t.Errorf("Tools.ConfirmMode = %q", cfg.Tools.ConfirmMode)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad hive url",
			mutate:  func(c *Config) { c.Hive.URL = "not a url" },
			wantErr: "hive.url",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.Hive.URL = "ftp://hive:21" },
			wantErr: "hive.url",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Hive.MaxRetries = -1 },
			wantErr: "hive.max_retries",
		},
		{
			name:    "message cap above history budget",
			mutate:  func(c *Config) { c.Context.MaxMessageChars = 50000 },
			wantErr: "context.max_message_chars",
		},
		{
			name:    "zero recent window",
			mutate:  func(c *Config) { c.Context.MinRecentMessages = 0 },
			wantErr: "context.min_recent_messages",
		},
		{
			name:    "bad theme",
			mutate:  func(c *Config) { c.UI.Theme = "solarized" },
			wantErr: "ui.theme",
		},
		{
			name:    "bad confirm mode",
			mutate:  func(c *Config) { c.Tools.ConfirmMode = "sometimes" },
			wantErr: "tools.confirm_mode",
		},
		{
			name:    "shell timeout out of range",
			mutate:  func(c *Config) { c.Tools.ShellTimeoutSecs = 0 },
			wantErr: "tools.shell_timeout_secs",
		},
		{
			name:    "empty server addr",
			mutate:  func(c *Config) { c.Server.Addr = "" },
			wantErr: "server.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSetDefaults_FillsZeroFields(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	if cfg.Hive.URL == "" || cfg.Hive.Model == "" {
		t.Errorf("hive defaults not filled: %+v", cfg.Hive)
	}
	if cfg.Context.MaxHistoryChars == 0 {
		t.Error("context defaults not filled")
	}
	if cfg.Tools.ConfirmMode == "" {
		t.Error("tools defaults not filled")
	}

	// Explicit values survive.
	cfg2 := &Config{}
	cfg2.Hive.Model = "qwen3:14b"
	cfg2.SetDefaults()
	if cfg2.Hive.Model != "qwen3:14b" {
		t.Errorf("explicit model overwritten: %q", cfg2.Hive.Model)
	}
}

func TestMigrate(t *testing.T) {
	cfg := Default()
	cfg.Tools.ConfirmMode = "ask"
	cfg.Hive.URL = "http://localhost:8090/v1/"

	if err := cfg.Migrate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Tools.ConfirmMode != "always" {
		t.Errorf("legacy 'ask' mode = %q, want 'always'", cfg.Tools.ConfirmMode)
	}
	if cfg.Hive.URL != "http://localhost:8090/v1" {
		t.Errorf("trailing slash not stripped: %q", cfg.Hive.URL)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GOLEM_HIVE_URL", "http://10.0.0.5:8090/v1")
	t.Setenv("GOLEM_API_KEY", "secret-key")
	t.Setenv("GOLEM_MODEL", "deepseek-r1:14b")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Hive.URL != "http://10.0.0.5:8090/v1" {
		t.Errorf("Hive.URL = %q", cfg.Hive.URL)
	}
	if cfg.Hive.APIKey != "secret-key" {
		t.Errorf("Hive.APIKey = %q", cfg.Hive.APIKey)
	}
	if cfg.Hive.Model != "deepseek-r1:14b" {
		t.Errorf("Hive.Model = %q", cfg.Hive.Model)
	}
}

func TestSaveAndLoadTOML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Hive.Model = "qwq:32b"
	cfg.Context.MaxHistoryChars = 48000
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	// SECURITY: saved config must be owner-only.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 0600", perm)
	}

	loaded := Default()
	if err := LoadTOML(loaded, path); err != nil {
		t.Fatalf("LoadTOML: %v", err)
	}
	if loaded.Hive.Model != "qwq:32b" {
		t.Errorf("Hive.Model = %q", loaded.Hive.Model)
	}
	if loaded.Context.MaxHistoryChars != 48000 {
		t.Errorf("MaxHistoryChars = %d", loaded.Context.MaxHistoryChars)
	}
	if len(loaded.Server.AllowedOrigins) != 1 || loaded.Server.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("AllowedOrigins = %v", loaded.Server.AllowedOrigins)
	}
}

func TestSaveAndLoadJSON_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Hive.APIKey = "round-trip-key"

	if err := SaveJSON(cfg, path); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	loaded := Default()
	if err := LoadJSON(loaded, path); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if loaded.Hive.APIKey != "round-trip-key" {
		t.Errorf("Hive.APIKey = %q", loaded.Hive.APIKey)
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	// Neutralize ambient overrides so the file is the only input.
	t.Setenv("GOLEM_HIVE_URL", "")
	t.Setenv("GOLEM_API_KEY", "")
	t.Setenv("GOLEM_MODEL", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	partial := "[hive]\nmodel = \"qwen3:14b\"\n\n[context]\nmax_history_chars = 12000\n"
	if err := os.WriteFile(path, []byte(partial), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Hive.Model != "qwen3:14b" {
		t.Errorf("Hive.Model = %q", cfg.Hive.Model)
	}
	if cfg.Context.MaxHistoryChars != 12000 {
		t.Errorf("MaxHistoryChars = %d", cfg.Context.MaxHistoryChars)
	}
	// Unspecified sections fall back to defaults.
	if cfg.Hive.URL != Default().Hive.URL {
		t.Errorf("Hive.URL = %q, want default", cfg.Hive.URL)
	}
	if cfg.Tools.ConfirmMode != "smart" {
		t.Errorf("Tools.ConfirmMode = %q, want default", cfg.Tools.ConfirmMode)
	}
}

func TestGetSet_DotNotation(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("hive.model")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if val != cfg.Hive.Model {
		t.Errorf("Get(hive.model) = %v", val)
	}

	if err := cfg.Set("hive.model", "deepseek-r1:7b"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if cfg.Hive.Model != "deepseek-r1:7b" {
		t.Errorf("Hive.Model = %q after Set", cfg.Hive.Model)
	}

	// String-to-int conversion for /config set from text.
	if err := cfg.Set("context.max_history_chars", "30000"); err != nil {
		t.Fatalf("Set int: %v", err)
	}
	if cfg.Context.MaxHistoryChars != 30000 {
		t.Errorf("MaxHistoryChars = %d", cfg.Context.MaxHistoryChars)
	}

	// String-to-bool conversion.
	if err := cfg.Set("tools.enabled", "true"); err != nil {
		t.Fatalf("Set bool: %v", err)
	}
	if !cfg.Tools.Enabled {
		t.Error("Tools.Enabled = false after Set")
	}

	// Comma list for []string fields.
	if err := cfg.Set("server.allowed_origins", "http://a.local, http://b.local"); err != nil {
		t.Fatalf("Set slice: %v", err)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}

	if _, err := cfg.Get("hive.no_such_field"); err == nil {
		t.Error("Get of unknown field should error")
	}
	if err := cfg.Set("no.such.key", "x"); err == nil {
		t.Error("Set of unknown field should error")
	}
}

func TestGetAllKeys_ResolveThroughGet(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("key %q does not resolve: %v", key, err)
		}
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	overlay := &Config{}
	overlay.Hive.Model = "qwq:32b"
	overlay.Context.MaxHistoryChars = 99000
	overlay.Server.AllowedOrigins = []string{"http://x.local"}

	base.Merge(overlay)

	if base.Hive.Model != "qwq:32b" {
		t.Errorf("Hive.Model = %q", base.Hive.Model)
	}
	if base.Context.MaxHistoryChars != 99000 {
		t.Errorf("MaxHistoryChars = %d", base.Context.MaxHistoryChars)
	}
	// Zero fields in the overlay leave base values alone.
	if base.Hive.URL != Default().Hive.URL {
		t.Errorf("Hive.URL = %q, want untouched", base.Hive.URL)
	}
	if len(base.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", base.Server.AllowedOrigins)
	}
}

func TestClone_IndependentCopy(t *testing.T) {
	cfg := Default()
	cfg.Server.AllowedOrigins = []string{"http://a.local"}

	clone := cfg.Clone()
	clone.Hive.Model = "changed"
	clone.Server.AllowedOrigins[0] = "http://evil.local"

	if cfg.Hive.Model == "changed" {
		t.Error("clone shares struct fields with original")
	}
	if cfg.Server.AllowedOrigins[0] != "http://a.local" {
		t.Error("clone shares AllowedOrigins slice with original")
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Hive.APIKey = "very-secret-key"
	cfg.Server.AuthToken = "relay-token"

	out := cfg.String()
	if strings.Contains(out, "very-secret-key") || strings.Contains(out, "relay-token") {
		t.Error("String() leaked a secret")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("String() did not mark redacted fields")
	}

	// Redaction must not mutate the original.
	if cfg.Hive.APIKey != "very-secret-key" {
		t.Error("String() mutated the config")
	}
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and
// ReloadGlobal() can be safely called concurrently without race conditions.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()

	var wg sync.WaitGroup

	// 50 writers using SetGlobal, 50 readers using Global
	for i := 0; i < 50; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}

	wg.Wait()
}

func TestConfig_GlobalInitialization(t *testing.T) {
	ResetGlobalForTesting()

	cfg := Global()
	if cfg == nil {
		t.Fatal("Global() returned nil")
	}
	if cfg.Version == "" {
		t.Error("config version should not be empty")
	}
	if cfg.Hive.URL == "" {
		t.Error("hive URL should not be empty")
	}
}
