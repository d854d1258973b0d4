// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates the lifecycle of one live conversation:
// dirty tracking, periodic autosave through the conversation store, and
// an optional idle-timeout callback. It plugs into the TUI via a
// once-per-second tick command and works headless (chat REPL) through
// Check.
package session
