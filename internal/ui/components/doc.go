// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable UI components for the golem TUI.

Each component is built on Bubble Tea and Lip Gloss and styled through
the shared styles.Theme.

# Components

CodeBlock (codeblock.go) - Chroma-highlighted code fences with line
numbers; ParseCodeBlocks rewrites markdown fences inside assistant
messages, handling the unclosed fence a live stream produces.

Spinner (spinner.go) - Thinking spinner with an elapsed timer, shown
between submitting a prompt and the first streamed token.

StatusBar (statusbar.go) - Bottom bar with connection state, model,
context budget usage, and key hints.

CompletionPopup (completion.go) - Tab-completion candidates rendered
above the input, scrolling the selection into view.
*/
package components
