// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/golem-tui/internal/commands"
	"github.com/jeranaias/golem-tui/internal/ui/styles"
)

// =============================================================================
// COMPLETION POPUP
// =============================================================================

// CompletionPopup displays tab-completion candidates above the input.
type CompletionPopup struct {
	completions []commands.Completion
	selected    int
	maxVisible  int
	width       int
	theme       *styles.Theme
}

// NewCompletionPopup creates a new completion popup.
func NewCompletionPopup(theme *styles.Theme) *CompletionPopup {
	return &CompletionPopup{
		maxVisible: 8,
		width:      50,
		theme:      theme,
	}
}

// SetCompletions sets the candidates and resets the selection.
func (c *CompletionPopup) SetCompletions(completions []commands.Completion) {
	c.completions = completions
	c.selected = 0
}

// SetSelected moves the highlight.
func (c *CompletionPopup) SetSelected(index int) {
	if index >= 0 && index < len(c.completions) {
		c.selected = index
	}
}

// SetWidth sets the popup width.
func (c *CompletionPopup) SetWidth(width int) {
	if width > 20 {
		c.width = width
	}
}

// Empty reports whether there is anything to show.
func (c *CompletionPopup) Empty() bool {
	return len(c.completions) == 0
}

// View renders the popup. The selected row scrolls into view when the
// candidate list is longer than maxVisible.
func (c *CompletionPopup) View() string {
	if len(c.completions) == 0 {
		return ""
	}

	start := 0
	if c.selected >= c.maxVisible {
		start = c.selected - c.maxVisible + 1
	}
	end := start + c.maxVisible
	if end > len(c.completions) {
		end = len(c.completions)
	}

	var rows []string
	for i := start; i < end; i++ {
		comp := c.completions[i]

		label := comp.Display
		if label == "" {
			label = comp.Value
		}

		if i == c.selected {
			rows = append(rows, c.theme.CompletionSelected.Render("▸ "+label)+
				descSuffix(comp.Description, c.theme))
		} else {
			rows = append(rows, c.theme.CompletionItem.Render("  "+label)+
				descSuffix(comp.Description, c.theme))
		}
	}

	if len(c.completions) > c.maxVisible {
		rows = append(rows, c.theme.CompletionDesc.Render(
			strings.Repeat(" ", 2)+"…"))
	}

	return c.theme.CompletionPopup.MaxWidth(c.width).Render(strings.Join(rows, "\n"))
}

func descSuffix(desc string, theme *styles.Theme) string {
	if desc == "" {
		return ""
	}
	return "  " + theme.CompletionDesc.Render(desc)
}
