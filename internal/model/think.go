// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strings"
)

// =============================================================================
// REASONING MARKUP
// =============================================================================

// Reasoning models interleave a deliberation channel with their answer. The
// stream assembler folds that channel into message content as a
// <think>...</think> span so a message remains a single string. These helpers
// are the only code that understands the markup; everything else goes through
// them.

const (
	// ThinkOpen and ThinkClose delimit a reasoning span inside message content.
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"

	// ContinuedPlaceholder stands in for a message whose content was entirely
	// reasoning. Sending a truly empty assistant turn confuses most backends.
	ContinuedPlaceholder = "(continued)"
)

// StripThink removes all reasoning spans from s and trims the remainder.
// Tag matching is case-insensitive. An unclosed trailing span is removed
// along with everything after its opening tag.
func StripThink(s string) string {
	if !strings.Contains(strings.ToLower(s), ThinkOpen) {
		return strings.TrimSpace(s)
	}

	// Tags are ASCII, so byte offsets in the lowered copy line up with s.
	lower := strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for {
		open := strings.Index(lower[i:], ThinkOpen)
		if open == -1 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i : i+open])

		rest := i + open + len(ThinkOpen)
		end := strings.Index(lower[rest:], ThinkClose)
		if end == -1 {
			// Unclosed span: drop the tail.
			break
		}
		i = rest + end + len(ThinkClose)
	}

	return strings.TrimSpace(b.String())
}

// StripThinkOrPlaceholder removes reasoning spans like StripThink, but a
// message that was nothing but reasoning yields ContinuedPlaceholder instead
// of the empty string.
func StripThinkOrPlaceholder(s string) string {
	stripped := StripThink(s)
	if stripped == "" {
		return ContinuedPlaceholder
	}
	return stripped
}

// SplitThink separates the reasoning channel from the content channel.
// Multiple spans are joined with a blank line. For an unclosed span the
// remainder of the string counts as reasoning.
func SplitThink(s string) (reasoning, content string) {
	lower := strings.ToLower(s)
	if !strings.Contains(lower, ThinkOpen) {
		return "", strings.TrimSpace(s)
	}

	var thinks []string
	var b strings.Builder

	i := 0
	for {
		open := strings.Index(lower[i:], ThinkOpen)
		if open == -1 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(s[i : i+open])

		rest := i + open + len(ThinkOpen)
		end := strings.Index(lower[rest:], ThinkClose)
		if end == -1 {
			if span := strings.TrimSpace(s[rest:]); span != "" {
				thinks = append(thinks, span)
			}
			break
		}
		if span := strings.TrimSpace(s[rest : rest+end]); span != "" {
			thinks = append(thinks, span)
		}
		i = rest + end + len(ThinkClose)
	}

	return strings.Join(thinks, "\n\n"), strings.TrimSpace(b.String())
}

// HasThink reports whether s contains any reasoning markup.
func HasThink(s string) bool {
	return strings.Contains(strings.ToLower(s), ThinkOpen)
}

// HasOpenThink reports whether s ends inside an unclosed reasoning span,
// which happens when a stream is interrupted mid-deliberation.
func HasOpenThink(s string) bool {
	lower := strings.ToLower(s)
	open := strings.LastIndex(lower, ThinkOpen)
	if open == -1 {
		return false
	}
	return strings.Index(lower[open:], ThinkClose) == -1
}
