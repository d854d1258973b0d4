// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package memory provides a durable facts store for golem.
//
// Facts are short user-stated statements ("I prefer tabs", "the staging
// box is 10.0.0.12") that survive across sessions and get surfaced back
// into prompts via the remember_fact and recall_facts tools and the
// /remember and /recall commands.
//
// The store is a single SQLite database (~/.golem/memory.db) in WAL mode,
// migrated forward automatically on open. Recall is a case-insensitive
// substring match over content and tags, newest facts first.
package memory
