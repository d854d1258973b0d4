// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools implements golem's tool-calling loop support.
//
// Models that cannot emit native function calls are prompted to wrap a
// JSON object in <tool_call> tags; ParseCalls extracts those blocks from
// assistant output. A Registry holds the builtin tool set (file access,
// shell, text search, URL fetch, facts, vault) and renders both the
// OpenAI function schema and a plain-text system prompt suffix.
//
// Tool results are returned as strings and fed back to the model as
// tool-role messages by the caller, which owns the step loop and the
// confirmation policy. Dangerous screens shell commands against a
// normalized pattern list to drive that policy.
package tools
