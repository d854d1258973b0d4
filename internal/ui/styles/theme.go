// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// =========================================================================
	// MESSAGE STYLES
	// =========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemNote     lipgloss.Style
	ToolSuccess    lipgloss.Style
	ToolError      lipgloss.Style
	MessageBody    lipgloss.Style
	MessageMeta    lipgloss.Style
	Interrupted    lipgloss.Style

	// Reasoning spans render dimmed; ReasoningHint is the collapsed
	// one-liner shown when reasoning display is off.
	Reasoning     lipgloss.Style
	ReasoningHint lipgloss.Style

	// =========================================================================
	// INPUT AREA STYLES
	// =========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Ghost          lipgloss.Style

	// =========================================================================
	// STATUS BAR STYLES
	// =========================================================================

	StatusBar    lipgloss.Style
	StatusOK     lipgloss.Style
	StatusWarn   lipgloss.Style
	StatusBad    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// =========================================================================
	// COMPLETION POPUP STYLES
	// =========================================================================

	CompletionPopup    lipgloss.Style
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style
	CompletionDesc     lipgloss.Style

	// =========================================================================
	// SPINNER AND ERROR STYLES
	// =========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ThinkingTime lipgloss.Style

	ErrorBox   lipgloss.Style
	ErrorTitle lipgloss.Style
	ErrorTip   lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(UserLabel)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(AssistantLabel)

	t.SystemNote = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.ToolSuccess = lipgloss.NewStyle().
		Foreground(Emerald).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Emerald).
		PaddingLeft(1)

	t.ToolError = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Rose).
		PaddingLeft(1)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.MessageMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Interrupted = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.Reasoning = lipgloss.NewStyle().
		Foreground(ReasoningText).
		Italic(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Overlay).
		PaddingLeft(1)

	t.ReasoningHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Ghost = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusOK = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusWarn = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.StatusBad = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Completion popup
	t.CompletionPopup = lipgloss.NewStyle().
		Background(Surface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.CompletionItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.CompletionSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true)

	t.CompletionDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Spinner and errors
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ThinkingTime = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.ErrorBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)

	t.ErrorTitle = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ErrorTip = lipgloss.NewStyle().
		Foreground(Cyan).
		Italic(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}
