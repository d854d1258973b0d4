// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the interactive chat view.
//
// The view is a single bubbletea model wiring together the transcript
// viewport, the input textarea, slash-command completion, and the
// streaming pipeline. Streaming runs on a goroutine that feeds a
// channel of messages; Update re-issues the channel listener after
// each delta so the transcript grows live while input stays
// responsive. Esc cancels the stream and keeps the partial response.
//
// Tool calls found in a settled assistant message are executed through
// the tool registry, bounded by the configured step limit, with
// per-call confirmation when the policy requires it. Results appear in
// the transcript as tool entries and ride along to the hive on the
// follow-up request.
package chat
