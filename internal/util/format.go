// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the golem application.
package util

import "strconv"

// FormatSeconds formats a duration in seconds for display.
// Sub-second durations render as milliseconds ("234ms"), everything else
// with one decimal place ("2.5s").
func FormatSeconds(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 1 {
		return strconv.Itoa(int(seconds*1000)) + "ms"
	}
	return strconv.FormatFloat(seconds, 'f', 1, 64) + "s"
}

// HumanBytes formats a byte count for display ("512 B", "1.2 KB", "3.4 MB").
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	suffixes := []string{"KB", "MB", "GB", "TB", "PB"}
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + suffixes[exp]
}

// FormatTokenCount formats a token count compactly ("842", "12.4K", "1.2M").
func FormatTokenCount(n int) string {
	switch {
	case n >= 1000000:
		return strconv.FormatFloat(float64(n)/1000000, 'f', 1, 64) + "M"
	case n >= 1000:
		return strconv.FormatFloat(float64(n)/1000, 'f', 1, 64) + "K"
	default:
		return strconv.Itoa(n)
	}
}
