// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the golem TUI.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/ui/styles"
)

// =============================================================================
// THINKING SPINNER
// =============================================================================

// Spinner shows activity while waiting for the first token, with an
// elapsed timer so a slow hive is distinguishable from a dead one.
type Spinner struct {
	spinner   spinner.Model
	message   string
	startTime time.Time
	active    bool
	theme     *styles.Theme
}

// NewSpinner creates a spinner with braille frames.
func NewSpinner(theme *styles.Theme) Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner

	return Spinner{
		spinner: s,
		message: "Thinking",
		theme:   theme,
	}
}

// Start activates the spinner and resets the timer.
func (s *Spinner) Start(message string) tea.Cmd {
	if message != "" {
		s.message = message
	}
	s.startTime = time.Now()
	s.active = true
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.active = false
}

// Active reports whether the spinner is running.
func (s Spinner) Active() bool {
	return s.active
}

// Elapsed returns the time since Start.
func (s Spinner) Elapsed() time.Duration {
	if !s.active {
		return 0
	}
	return time.Since(s.startTime)
}

// Update advances the spinner animation.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.active {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders the spinner line, e.g. "⠼ Thinking… 3.2s".
func (s Spinner) View() string {
	if !s.active {
		return ""
	}

	line := s.spinner.View() + " " + s.theme.ThinkingText.Render(s.message+"…")
	if elapsed := s.Elapsed(); elapsed >= time.Second {
		line += " " + s.theme.ThinkingTime.Render(fmt.Sprintf("%.1fs", elapsed.Seconds()))
	}
	return line
}
