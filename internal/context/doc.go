// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package context keeps a growing conversation inside a fixed character
// budget and derives the wire-bound history for the next model turn.
//
// The two halves are deliberately separate:
//
//   - Prune bounds what the client keeps and displays. It strips reasoning
//     spans and truncates oversized content in settled messages, then drops
//     middle messages oldest-first, always preserving the first message and
//     the most recent window verbatim.
//   - BuildAPIHistory projects whatever is displayed into the payload sent
//     to the model. Reasoning spans are stripped from every assistant
//     message regardless of recency, and empty messages are dropped.
//
// The package also expands @ references in user input (@file paths and
// @clip for the clipboard) and gathers shell environment context for
// tool-enabled sessions.
//
// # Usage
//
// Before each request:
//
//	msgs, _ := context.Prune(conv.Messages, context.DefaultLimits())
//	conv.ReplaceMessages(msgs)
//	payload := context.BuildAPIHistory(conv.Messages)
//
// Expand references in user input:
//
//	expander := context.NewExpander("")
//	expanded, refs := expander.ExpandRefs(ctx, input)
package context
