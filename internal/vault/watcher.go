// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// VAULT WATCHER
// =============================================================================

// watchDebounce batches a burst of filesystem events into one rescan.
// Editors like Obsidian write a note several times per save.
const watchDebounce = 500 * time.Millisecond

// watcher keeps the vault's cached note listing warm by rescanning after
// filesystem changes. fsnotify does not watch recursively, so every
// subdirectory is registered individually and new directories are added
// as create events arrive.
type watcher struct {
	vault *Vault
	fsw   *fsnotify.Watcher
	ctx   context.Context
	stop  context.CancelFunc

	mu      sync.Mutex
	lastEvt time.Time
	dirty   bool
}

// Watch starts a background watcher that refreshes the note cache when
// files under the vault root change. Calling Watch twice is an error;
// Close stops the watcher.
func (v *Vault) Watch() error {
	if v.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		vault: v,
		fsw:   fsw,
		ctx:   ctx,
		stop:  cancel,
	}

	if err := w.addRecursive(v.root); err != nil {
		cancel()
		fsw.Close()
		return err
	}

	go w.processEvents()
	go w.processPending()

	v.watcher = w
	return nil
}

// addRecursive registers a directory and all its subdirectories,
// skipping dotted directories (.obsidian, .git, .trash).
func (w *watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}
		// Per-directory failures are non-fatal; the rest of the tree
		// still gets watched.
		_ = w.fsw.Add(path)
		return nil
	})
}

// processEvents marks the cache dirty on relevant events and registers
// newly created directories.
func (w *watcher) processEvents() {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			if w.relevant(event) {
				w.mu.Lock()
				w.dirty = true
				w.lastEvt = time.Now()
				w.mu.Unlock()
			}

		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the cache just goes stale
			// until the next explicit Refresh.
		}
	}
}

// relevant reports whether an event should trigger a rescan. Only
// markdown files and directory-level changes matter.
func (w *watcher) relevant(event fsnotify.Event) bool {
	const ops = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename
	if event.Op&ops == 0 {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.EqualFold(filepath.Ext(name), ".md") {
		return true
	}
	// Directory create/remove changes the note set too; a removed path
	// cannot be stat'd, so accept extensionless names.
	return filepath.Ext(name) == ""
}

// processPending rescans once events settle for watchDebounce.
func (w *watcher) processPending() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := w.dirty && time.Since(w.lastEvt) >= watchDebounce
			if ready {
				w.dirty = false
			}
			w.mu.Unlock()

			if ready {
				_ = w.vault.Refresh()
			}
		}
	}
}

// close stops the watcher goroutines and releases the fsnotify handle.
func (w *watcher) close() error {
	w.stop()
	return w.fsw.Close()
}
