// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrFactNotFound is returned when forgetting a fact that doesn't exist.
	ErrFactNotFound = errors.New("fact not found")

	// ErrSchemaTooNew is returned when the database was written by a newer
	// golem version.
	ErrSchemaTooNew = errors.New("memory database schema is newer than this version")

	// ErrEmptyFact is returned when remembering an empty fact.
	ErrEmptyFact = errors.New("fact must not be empty")
)

// =============================================================================
// FACT TYPE
// =============================================================================

// Fact is a single remembered fact.
type Fact struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// =============================================================================
// FACTS STORE
// =============================================================================

// Store is a durable facts store backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) a facts database at path and runs any
// pending schema migrations.
func NewStore(path string) (*Store, error) {
	// SECURITY: 0700 keeps remembered facts private to the owning user
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewDefaultStore opens the facts database under the golem config directory.
func NewDefaultStore() (*Store, error) {
	configDir, err := util.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStore(filepath.Join(configDir, "memory.db"))
}

// initSchema creates tables for a fresh database.
func (s *Store) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	_, err := s.db.Exec(InitMetadata)
	return err
}

// migrate lifts an existing database to the current schema version.
func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version > SchemaVersion {
		return fmt.Errorf("%w: found v%d, support up to v%d", ErrSchemaTooNew, version, SchemaVersion)
	}

	for v := version; v < SchemaVersion; v++ {
		stmts, ok := migrations[v]
		if !ok {
			return fmt.Errorf("no migration path from schema v%d", v)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration: %w", err)
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration v%d failed: %w", v, err)
			}
		}
		if _, err := tx.Exec("UPDATE metadata SET value = ? WHERE key = 'schema_version'", v+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration: %w", err)
		}
	}

	return nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// FACT OPERATIONS
// =============================================================================

// Remember stores a fact and returns it with its assigned ID.
func (s *Store) Remember(content string, tags []string) (*Fact, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyFact
	}

	now := time.Now()
	normalized := normalizeTags(tags)

	result, err := s.db.Exec(
		"INSERT INTO facts (content, tags, created_at) VALUES (?, ?, ?)",
		content, strings.Join(normalized, ","), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert fact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Fact{
		ID:        id,
		Content:   content,
		Tags:      normalized,
		CreatedAt: time.Unix(now.Unix(), 0),
	}, nil
}

// Recall returns facts whose content or tags match the query, newest first.
// An empty query returns the newest facts. limit <= 0 means no limit.
func (s *Store) Recall(query string, limit int) ([]Fact, error) {
	var rows *sql.Rows
	var err error

	base := "SELECT id, content, tags, created_at FROM facts"
	order := " ORDER BY created_at DESC, id DESC"

	query = strings.TrimSpace(query)
	if query == "" {
		rows, err = s.db.Query(base+order+limitClause(limit), limitArgs(limit)...)
	} else {
		pattern := "%" + escapeLike(query) + "%"
		args := []interface{}{pattern, pattern}
		args = append(args, limitArgs(limit)...)
		rows, err = s.db.Query(
			base+` WHERE content LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\'`+order+limitClause(limit),
			args...,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	return scanFacts(rows)
}

// All returns every stored fact, newest first.
func (s *Store) All() ([]Fact, error) {
	return s.Recall("", 0)
}

// Forget removes a fact by ID.
func (s *Store) Forget(id int64) error {
	result, err := s.db.Exec("DELETE FROM facts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete fact: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFactNotFound
	}

	return nil
}

// Count returns the number of stored facts.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM facts").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count facts: %w", err)
	}
	return count, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// scanFacts reads all rows into facts.
func scanFacts(rows *sql.Rows) ([]Fact, error) {
	var facts []Fact
	for rows.Next() {
		var f Fact
		var tags sql.NullString
		var createdAt int64

		if err := rows.Scan(&f.ID, &f.Content, &tags, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}

		if tags.Valid && tags.String != "" {
			f.Tags = strings.Split(tags.String, ",")
		}
		f.CreatedAt = time.Unix(createdAt, 0)

		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// normalizeTags lowercases, trims, and deduplicates tags in first-seen order.
func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		// Commas are the storage separator
		tag = strings.TrimSpace(strings.ReplaceAll(tag, ",", " "))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// escapeLike escapes LIKE wildcards so queries match them literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

// limitClause returns the LIMIT fragment when limit is positive.
func limitClause(limit int) string {
	if limit > 0 {
		return " LIMIT ?"
	}
	return ""
}

// limitArgs returns the LIMIT argument when limit is positive.
func limitArgs(limit int) []interface{} {
	if limit > 0 {
		return []interface{}{limit}
	}
	return nil
}
