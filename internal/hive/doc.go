// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package hive provides the client for self-hosted hive inference servers.
//
// A hive server speaks the OpenAI-compatible chat completions API, extended
// with a reasoning_content field on streamed deltas for models that expose
// their deliberation. This package implements the HTTP client, SSE stream
// parsing, and the assembler that folds the two delta channels into a single
// response string with <think> markup.
//
// # Key Types
//
//   - Client: HTTP client with retry, backoff, and rate limiting
//   - ChatMessage: chat message in the wire format
//   - StreamChunk: one parsed SSE delta
//   - Assembler: folds reasoning and content deltas into one string
//   - Registry: routes deltas to the assembler for their request ID
//
// # Usage
//
// Stream a chat completion and assemble the reply:
//
//	client := hive.NewClient("http://localhost:8090/v1", "")
//	asm := hive.NewAssembler()
//	err := client.ChatStream(ctx, req, func(chunk hive.StreamChunk) {
//	    ui.Append(asm.Feed(chunk))
//	})
//	ui.Append(asm.Finish())
package hive
