// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"os"
	"sync"
	"time"
)

// =============================================================================
// FILE CACHE
// =============================================================================

// FileCache caches file reads for @ references so repeated mentions of the
// same file across turns do not hit the disk every time. Entries invalidate
// when the file's modification time changes.
type FileCache struct {
	mu          sync.Mutex
	entries     map[string]*fileCacheEntry
	maxEntries  int
	maxSize     int64
	currentSize int64
	accessOrder []string

	hits   int
	misses int
}

type fileCacheEntry struct {
	content    string
	modTime    time.Time
	size       int64
	truncated  bool
	accessedAt time.Time
}

// FileCacheStats holds cache counters for /stats.
type FileCacheStats struct {
	Hits       int
	Misses     int
	EntryCount int
	TotalSize  int64
}

// NewFileCache creates a cache bounded by entry count and total bytes.
func NewFileCache(maxEntries int, maxSize int64) *FileCache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	if maxSize <= 0 {
		maxSize = 16 * 1024 * 1024
	}
	return &FileCache{
		entries:     make(map[string]*fileCacheEntry),
		maxEntries:  maxEntries,
		maxSize:     maxSize,
		accessOrder: make([]string, 0, maxEntries),
	}
}

// DefaultFileCache is the shared cache used by expanders.
var DefaultFileCache = NewFileCache(64, 16*1024*1024)

// Get returns the cached content for path if the file has not changed since
// it was cached. The second return reports whether the cached content was
// truncated at the reference cap.
func (fc *FileCache) Get(path string) (string, bool, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	entry, ok := fc.entries[path]
	if !ok {
		fc.misses++
		return "", false, false
	}

	info, err := os.Stat(path)
	if err != nil || info.ModTime().After(entry.modTime) {
		fc.removeLocked(path)
		fc.misses++
		return "", false, false
	}

	entry.accessedAt = time.Now()
	fc.touchLocked(path)
	fc.hits++
	return entry.content, entry.truncated, true
}

// Put stores content for path. Oversized single entries are not cached.
func (fc *FileCache) Put(path, content string, modTime time.Time, truncated bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	size := int64(len(content))
	if size > fc.maxSize/4 {
		return
	}

	for fc.currentSize+size > fc.maxSize || len(fc.entries) >= fc.maxEntries {
		if len(fc.accessOrder) == 0 {
			break
		}
		fc.removeLocked(fc.accessOrder[0])
	}

	if existing, ok := fc.entries[path]; ok {
		fc.currentSize -= existing.size
	}

	fc.entries[path] = &fileCacheEntry{
		content:    content,
		modTime:    modTime,
		size:       size,
		truncated:  truncated,
		accessedAt: time.Now(),
	}
	fc.currentSize += size
	fc.touchLocked(path)
}

// Invalidate drops one path from the cache.
func (fc *FileCache) Invalidate(path string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.removeLocked(path)
}

// Clear empties the cache.
func (fc *FileCache) Clear() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	fc.entries = make(map[string]*fileCacheEntry)
	fc.accessOrder = fc.accessOrder[:0]
	fc.currentSize = 0
}

// Stats returns current counters.
func (fc *FileCache) Stats() FileCacheStats {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	return FileCacheStats{
		Hits:       fc.hits,
		Misses:     fc.misses,
		EntryCount: len(fc.entries),
		TotalSize:  fc.currentSize,
	}
}

// removeLocked deletes an entry; caller holds the lock.
func (fc *FileCache) removeLocked(path string) {
	entry, ok := fc.entries[path]
	if !ok {
		return
	}
	fc.currentSize -= entry.size
	delete(fc.entries, path)

	for i, p := range fc.accessOrder {
		if p == path {
			fc.accessOrder = append(fc.accessOrder[:i], fc.accessOrder[i+1:]...)
			break
		}
	}
}

// touchLocked moves path to the most-recently-used position; caller holds
// the lock.
func (fc *FileCache) touchLocked(path string) {
	for i, p := range fc.accessOrder {
		if p == path {
			fc.accessOrder = append(fc.accessOrder[:i], fc.accessOrder[i+1:]...)
			break
		}
	}
	fc.accessOrder = append(fc.accessOrder, path)
}
