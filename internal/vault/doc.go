// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vault provides read-only access to a markdown notes vault
// (an Obsidian vault or any folder of .md files).
//
// A Vault caches the note listing for search and tag harvesting; note
// content is always read from disk. An optional fsnotify watcher keeps
// the cached listing warm while golem runs. The vault never writes to
// the notes directory.
package vault
