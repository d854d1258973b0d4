// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 2
)

// SQLite schema for the facts store
const Schema = `
-- Metadata table for schema version and store state
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Facts table: durable user facts for prompt grounding
CREATE TABLE IF NOT EXISTS facts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    content TEXT NOT NULL,
    tags TEXT,                  -- comma separated, lowercase
    created_at INTEGER NOT NULL -- Unix timestamp
);

CREATE INDEX IF NOT EXISTS idx_facts_created_at ON facts(created_at);
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '2');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`

// migrations lifts a database one schema version, keyed by the version
// being migrated FROM. Applied in order inside a transaction on open.
var migrations = map[int][]string{
	// v1 predates fact tagging
	1: {
		`ALTER TABLE facts ADD COLUMN tags TEXT`,
	},
}
