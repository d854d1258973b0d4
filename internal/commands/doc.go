// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the TUI.
//
// This package handles parsing and executing slash commands in the chat
// interface, providing autocomplete and command registration.
//
// # Key Types
//
//   - Registry: Command registry with all available commands
//   - Context: Injected services handlers operate on
//   - ParseResult: Parsed command with name and arguments
//   - Completer: Tab completion for commands and arguments
//
// # Built-in Commands
//
//   - /help: Show available commands
//   - /model, /models: Switch or list hive models
//   - /save, /load, /sessions, /export: Conversation persistence
//   - /remember, /recall, /facts, /vault: Long-term memory
//   - /reason, /tools, /config, /stats: Settings and introspection
//
// # Usage
//
// Parse and execute a command:
//
//	result := parser.Parse(input)
//	if result.IsCommand && result.Command != nil {
//	    cmd := result.Command.Handler(ctx, result.Args)
//	    // dispatch cmd through the bubbletea runtime
//	}
//
// Handlers return tea.Cmd values that emit messages (SaveCompleteMsg,
// FactsListMsg, ...) for the application model to render.
package commands
