// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrVaultNotFound is returned when the vault directory doesn't exist.
	ErrVaultNotFound = errors.New("vault directory not found")

	// ErrNoteNotFound is returned when a note cannot be resolved.
	ErrNoteNotFound = errors.New("note not found")
)

// =============================================================================
// NOTE TYPE
// =============================================================================

// Note describes one markdown file in the vault.
type Note struct {
	// Name is the filename without the .md extension
	Name string

	// Relative is the path relative to the vault root
	Relative string

	// Path is the absolute path
	Path string

	// Modified is the file modification time
	Modified time.Time
}

// =============================================================================
// VAULT
// =============================================================================

// DefaultSearchLimit caps search results when the caller passes no limit.
const DefaultSearchLimit = 20

// Vault is read-only access to a directory of markdown notes (an Obsidian
// vault or any plain notes folder). A cached file listing backs the
// list-shaped operations; content reads always hit disk.
type Vault struct {
	root string

	// DailyDir is the folder holding daily notes, relative to the root.
	DailyDir string

	mu    sync.RWMutex
	notes []Note

	watcher *watcher
}

// Open validates the vault directory and performs the initial scan.
func Open(path string) (*Vault, error) {
	root, err := filepath.Abs(util.ExpandHome(path))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, root)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrVaultNotFound, root)
	}

	v := &Vault{
		root:     root,
		DailyDir: "daily",
	}
	if err := v.Refresh(); err != nil {
		return nil, err
	}

	return v, nil
}

// Root returns the vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// Close stops the watcher if one is running.
func (v *Vault) Close() error {
	if v.watcher != nil {
		return v.watcher.close()
	}
	return nil
}

// Refresh rescans the vault and replaces the cached note listing.
func (v *Vault) Refresh() error {
	var notes []Note

	err := filepath.Walk(v.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}

		name := filepath.Base(path)
		if info.IsDir() {
			// Skip .obsidian, .trash, .git and friends
			if path != v.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.EqualFold(filepath.Ext(name), ".md") {
			return nil
		}

		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return nil
		}

		notes = append(notes, Note{
			Name:     strings.TrimSuffix(name, filepath.Ext(name)),
			Relative: rel,
			Path:     path,
			Modified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.notes = notes
	v.mu.Unlock()

	return nil
}

// Notes returns a copy of the cached note listing.
func (v *Vault) Notes() []Note {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Note, len(v.notes))
	copy(out, v.notes)
	return out
}

// NoteCount returns the number of notes in the vault.
func (v *Vault) NoteCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.notes)
}

// =============================================================================
// SEARCH AND READ
// =============================================================================

// Search finds notes whose filename or content contains the query,
// case-insensitive. Filename matches rank before content matches.
// limit <= 0 applies DefaultSearchLimit.
func (v *Vault) Search(query string, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	notes := v.Notes()

	var results []Note
	matched := make(map[string]bool)

	// Filename matches first
	for _, note := range notes {
		if len(results) >= limit {
			return results, nil
		}
		if strings.Contains(strings.ToLower(note.Name), query) {
			matched[note.Relative] = true
			results = append(results, note)
		}
	}

	// Then content matches
	for _, note := range notes {
		if len(results) >= limit {
			break
		}
		if matched[note.Relative] {
			continue
		}
		content, err := os.ReadFile(note.Path)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(content)), query) {
			results = append(results, note)
		}
	}

	return results, nil
}

// Read resolves a note by relative path, by path without the .md extension,
// or by case-insensitive name, and returns its content.
func (v *Vault) Read(name string) (string, error) {
	if path, ok := v.resolve(name); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoteNotFound, name)
}

// resolve maps a user-supplied note reference to an absolute path.
func (v *Vault) resolve(name string) (string, bool) {
	// SECURITY: Reject references that escape the vault root
	for _, candidate := range []string{name, name + ".md"} {
		path := filepath.Join(v.root, filepath.Clean(candidate))
		if !strings.HasPrefix(path, v.root+string(filepath.Separator)) {
			continue
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}

	// Fall back to a case-insensitive name match against the cache
	lower := strings.ToLower(name)
	for _, note := range v.Notes() {
		if strings.ToLower(note.Name) == lower {
			return note.Path, true
		}
	}

	return "", false
}

// Daily returns the path where today's daily note lives. The note may not
// exist yet; the vault never creates it.
func (v *Vault) Daily() string {
	today := time.Now().Format("2006-01-02")
	return filepath.Join(v.root, v.DailyDir, today+".md")
}

// Recent returns the most recently modified notes, newest first.
func (v *Vault) Recent(limit int) []Note {
	notes := v.Notes()

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].Modified.After(notes[j].Modified)
	})

	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes
}

// =============================================================================
// TAGS
// =============================================================================

// TagCount is a tag with its number of occurrences across the vault.
type TagCount struct {
	Tag   string
	Count int
}

// tagPattern matches inline #tags at a line start or after whitespace.
var tagPattern = regexp.MustCompile(`(?m)(?:^|\s)#([a-zA-Z][\w/-]*)`)

// Tags harvests inline #tags across all notes, most frequent first.
func (v *Vault) Tags() []TagCount {
	counts := make(map[string]int)

	for _, note := range v.Notes() {
		content, err := os.ReadFile(note.Path)
		if err != nil {
			continue
		}
		for _, match := range tagPattern.FindAllStringSubmatch(string(content), -1) {
			counts[strings.ToLower(match[1])]++
		}
	}

	out := make([]TagCount, 0, len(counts))
	for tag, count := range counts {
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})

	return out
}
