// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared setup for the CLI commands.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/jeranaias/golem-tui/internal/config"
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/storage"
	"github.com/jeranaias/golem-tui/internal/ui/styles"
	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	warnStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	errStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true)
)

// =============================================================================
// SETUP
// =============================================================================

// LoadConfig loads configuration and applies command-line overrides.
func LoadConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if args.URL != "" {
		cfg.Hive.URL = args.URL
	}
	if args.Model != "" {
		cfg.Hive.Model = args.Model
	}
	return cfg, nil
}

// NewHiveClient builds the hive client from config.
func NewHiveClient(cfg *config.Config) *hive.Client {
	client := hive.NewClient(cfg.Hive.URL, cfg.Hive.APIKey).
		WithModel(cfg.Hive.Model).
		WithMaxRetries(cfg.Hive.MaxRetries)
	if cfg.Hive.RequestTimeoutSecs > 0 {
		client = client.WithTimeout(time.Duration(cfg.Hive.RequestTimeoutSecs) * time.Second)
	}
	if cfg.Hive.RateLimitRPS > 0 {
		client = client.WithRateLimit(cfg.Hive.RateLimitRPS, cfg.Hive.RateLimitBurst)
	}
	return client
}

// OpenStore opens the conversation store per config, enabling at-rest
// encryption when configured. The passphrase comes from GOLEM_PASSPHRASE or
// an interactive prompt.
func OpenStore(cfg *config.Config) (*storage.Store, error) {
	var store *storage.Store
	var err error
	if cfg.Storage.Dir != "" {
		store, err = storage.NewStoreWithDir(util.ExpandHome(cfg.Storage.Dir))
	} else {
		store, err = storage.NewStore()
	}
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Encrypt {
		pass := os.Getenv("GOLEM_PASSPHRASE")
		if pass == "" {
			pass, err = promptPassphrase()
			if err != nil {
				return nil, err
			}
		}
		if err := store.EnableEncryption(pass); err != nil {
			return nil, fmt.Errorf("enable encryption: %w", err)
		}
	}
	return store, nil
}

// promptPassphrase reads a passphrase without echo.
func promptPassphrase() (string, error) {
	if !IsTTY() {
		return "", fmt.Errorf("storage encryption enabled but stdin is not a terminal; set GOLEM_PASSPHRASE")
	}
	fmt.Fprint(os.Stderr, "Passphrase: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(b), nil
}

// Fatal prints an error and exits.
func Fatal(format string, a ...interface{}) {
	msg := fmt.Sprintf(format, a...)
	if ColorsEnabled() {
		msg = errStyle.Render(msg)
	}
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func info(quiet bool, format string, a ...interface{}) {
	if quiet {
		return
	}
	msg := fmt.Sprintf(format, a...)
	if ColorsEnabled() {
		msg = infoStyle.Render(msg)
	}
	fmt.Fprintln(os.Stderr, msg)
}
