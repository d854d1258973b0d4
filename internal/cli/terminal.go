// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - TTY detection and color control.
package cli

import (
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is a terminal. Piped output skips
// colors and markdown rendering.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

const (
	defaultTerminalWidth = 80
	minTerminalWidth     = 40
)

// TerminalWidth returns the stdout width, with a floor so wrapped text
// stays readable in tiny panes.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return defaultTerminalWidth
	}
	if width < minTerminalWidth {
		return minTerminalWidth
	}
	return width
}

// =============================================================================
// COLOR CONTROL
// =============================================================================

var (
	colorsDisabled bool
	colorsOnce     sync.Once
	colorsEnabled  bool
)

// DisableColors forces plain output (--no-color).
func DisableColors() {
	colorsDisabled = true
}

// ColorsEnabled reports whether styled output should be used. Respects
// --no-color, NO_COLOR (https://no-color.org/), and TTY detection.
func ColorsEnabled() bool {
	if colorsDisabled {
		return false
	}
	colorsOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" {
			colorsEnabled = false
			return
		}
		if os.Getenv("FORCE_COLOR") != "" {
			colorsEnabled = true
			return
		}
		colorsEnabled = IsStdoutTTY()
	})
	return colorsEnabled
}

// ColorProfile returns the termenv profile for the current output.
func ColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}
