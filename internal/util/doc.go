// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the golem application.
//
// This package contains common helper functions used throughout the
// application for string manipulation, display formatting, type conversion,
// and file operations.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth, PadWidth: display-cell aware truncation and padding
//
// Formatting:
//   - FormatSeconds: human durations ("234ms", "2.5s")
//   - HumanBytes: byte counts ("1.2 KB", "3.4 MB")
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - ExpandHome: "~" prefix expansion in paths
package util
