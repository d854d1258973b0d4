// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "errors"

// minFreeBytes is the free-space floor below which saves are refused (50 MB).
const minFreeBytes = 50 * 1024 * 1024

// ErrLowDiskSpace is returned when a save would land on a nearly full disk.
// Autosave callers should treat it as a skip, not a fatal error.
var ErrLowDiskSpace = errors.New("low disk space: refusing to save conversation")

// checkDiskSpace returns ErrLowDiskSpace when the filesystem holding dir is
// below the floor.
func checkDiskSpace(dir string) error {
	free, err := freeDiskSpace(dir)
	if err != nil {
		// RELIABILITY: Never block saves because the space probe failed
		return nil
	}
	if free < minFreeBytes {
		return ErrLowDiskSpace
	}
	return nil
}
