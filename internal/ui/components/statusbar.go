// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/golem-tui/internal/ui/styles"
)

// =============================================================================
// STATUS BAR
// =============================================================================

// Status represents the current application status.
type Status int

const (
	StatusReady Status = iota
	StatusThinking
	StatusStreaming
	StatusError
	StatusOffline
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusThinking:
		return "thinking"
	case StatusStreaming:
		return "streaming"
	case StatusError:
		return "error"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// StatusBar is the single-line bar at the bottom of the chat view.
type StatusBar struct {
	Model         string  // Current hive model
	Status        Status  // Connection / activity state
	ContextPct    float64 // 0-100 context budget usage
	Reasoning     bool    // Reasoning display toggle
	TokenEstimate int     // Estimated conversation tokens
	Width         int

	theme *styles.Theme
}

// NewStatusBar creates a status bar bound to the theme.
func NewStatusBar(theme *styles.Theme) StatusBar {
	return StatusBar{theme: theme}
}

// Render renders the bar padded to Width.
func (b StatusBar) Render() string {
	var parts []string

	parts = append(parts, b.statusSegment())

	if b.Model != "" {
		parts = append(parts, b.Model)
	}

	parts = append(parts, b.contextSegment())

	if b.Reasoning {
		parts = append(parts, "think:on")
	}
	if b.TokenEstimate > 0 {
		parts = append(parts, fmt.Sprintf("~%d tok", b.TokenEstimate))
	}

	left := strings.Join(parts, "  ")
	right := b.theme.ShortcutKey.Render("tab") + b.theme.ShortcutDesc.Render(" complete  ") +
		b.theme.ShortcutKey.Render("esc") + b.theme.ShortcutDesc.Render(" stop  ") +
		b.theme.ShortcutKey.Render("ctrl+c") + b.theme.ShortcutDesc.Render(" quit")

	gap := b.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		// Narrow terminal: drop the shortcut hints
		return b.theme.StatusBar.Width(b.Width).Render(truncateTo(left, b.Width-2))
	}

	return b.theme.StatusBar.Width(b.Width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b StatusBar) statusSegment() string {
	switch b.Status {
	case StatusReady:
		return b.theme.StatusOK.Render("● " + b.Status.String())
	case StatusThinking, StatusStreaming:
		return b.theme.StatusWarn.Render("● " + b.Status.String())
	default:
		return b.theme.StatusBad.Render("● " + b.Status.String())
	}
}

// contextSegment colors the context usage by how close the budget is.
func (b StatusBar) contextSegment() string {
	pct := b.ContextPct
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	text := fmt.Sprintf("ctx %.0f%%", pct)
	switch {
	case pct >= 90:
		return b.theme.StatusBad.Render(text)
	case pct >= 70:
		return b.theme.StatusWarn.Render(text)
	default:
		return text
	}
}

// truncateTo cuts s to the given display width.
func truncateTo(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
