// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events an editor save produces
// (write + chmod, or create + rename for atomic saves) into one reload.
const watchDebounce = 250 * time.Millisecond

// Watch reloads the configuration whenever the config file changes on disk
// and delivers the new config to onChange. It watches the config directory
// rather than the file itself so editors that replace the file on save
// (vim, atomic writers) do not silently detach the watch.
//
// Watch returns after starting the background goroutine; the watch stops
// when ctx is cancelled. Reload failures are reported on stderr and the
// previous config stays active.
func Watch(ctx context.Context, onChange func(*Config)) error {
	dir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("resolving config dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		var reload <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if !isConfigFile(ev.Name) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				reload = timer.C

			case <-reload:
				reload = nil
				cfg, err := Load()
				if err != nil || cfg == nil {
					fmt.Fprintf(os.Stderr, "Warning: config reload failed: %v\n", err)
					continue
				}
				SetGlobal(cfg)
				if onChange != nil {
					onChange(cfg)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "Warning: config watcher: %v\n", err)
			}
		}
	}()

	return nil
}

// isConfigFile reports whether an fsnotify event path is one of the config
// files golem reads.
func isConfigFile(path string) bool {
	base := filepath.Base(path)
	return base == "config.toml" || base == "config.json"
}
