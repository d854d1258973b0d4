// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for golem.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - HiveConfig: Hive server connection settings
//   - ContextConfig: Conversation budget settings
//   - ToolsConfig: Tool-calling loop settings
//   - ServerConfig: Relay server (golem serve) settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (GOLEM_*)
//   - ~/.golem/config.toml
//   - ~/.golem/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	model := cfg.Hive.Model
//	budget := cfg.Context.MaxHistoryChars
//
// Hot reload (TUI keeps settings fresh while running):
//
//	config.Watch(ctx, func(cfg *config.Config) {
//	    program.Send(configReloadedMsg{cfg})
//	})
package config
