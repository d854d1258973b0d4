// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations and messages. Assistant messages may
// carry an inline reasoning span delimited by <think>...</think> markup; the
// helpers in think.go separate, strip, and inspect those spans.
//
// # Key Types
//
//   - Conversation: Container for a chat session with messages and metadata
//   - Message: Single message with role, content, timestamp, and optional tool calls
//   - Statistics: Per-generation timing and token counts
//   - Role: Message role enumeration (user, assistant, system, tool)
//
// # Usage
//
// Create a new conversation:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//
// Work with reasoning markup:
//
//	content := "<think>checking units</think>It is 42 km."
//	model.StripThink(content) // "It is 42 km."
//	r, c := model.SplitThink(content)
//	// r = "checking units", c = "It is 42 km."
package model
