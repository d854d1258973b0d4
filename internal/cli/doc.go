// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements golem's command-line interface.
//
// The TUI is the default command; the rest cover scripting and
// headless use: ask (one-shot), chat (line REPL), serve (relay),
// status, sessions, export, and config. Parsing is hand-rolled; the
// flag surface is small and subcommand help stays in one place.
package cli
