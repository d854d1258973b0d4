// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the golem TUI.

This package defines the color palette and the Theme struct used
throughout the application. All colors use Lip Gloss AdaptiveColor for
automatic light/dark terminal detection.

# Color System (colors.go)

Accent colors:

  - Purple - Primary accent for assistant messages and selections
  - Cyan - Brand color for commands and user highlights
  - Emerald - Success states and connected indicator
  - Amber - Warnings and pending confirmation
  - Rose - Errors

Text colors form a hierarchy:

	TextPrimary   - Main content text
	TextSecondary - Supporting text
	TextMuted     - Ghost suggestions, timestamps, reasoning
	TextInverse   - Text on colored backgrounds

# Theme System (theme.go)

The Theme struct provides runtime color adaptation:

	theme := styles.NewTheme()
	if theme.IsDark {
		// Dark terminal detected
	}

Styles are grouped by surface: message labels, reasoning spans, the
input area, the status bar, the completion popup, and error boxes.

# Usage Example

	import "github.com/jeranaias/golem-tui/internal/ui/styles"

	theme := styles.NewTheme()
	fmt.Println(theme.UserLabel.Render("you"))
*/
package styles
