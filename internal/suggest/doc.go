// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package suggest produces ghost-text input suggestions for the chat
// UI: faint completion text rendered after the cursor that Tab accepts.
//
// Candidates come from two pools: static conversation starters, and
// follow-ups derived from patterns in the last assistant reply (code
// blocks suggest "Write tests for this", error talk suggests "Show me
// the fix", and so on). Matching is case-insensitive prefix matching;
// only the suffix beyond what the user already typed is returned.
package suggest
