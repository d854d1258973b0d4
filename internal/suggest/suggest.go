// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package suggest

import (
	"strings"
)

// =============================================================================
// GHOST SUGGESTIONS
// =============================================================================

// minInputLen is the shortest input that gets a prefix match; one
// character matches too much to be useful.
const minInputLen = 2

// baseSuggestions are the static conversation starters.
var baseSuggestions = []string{
	"Summarize this page",
	"Explain this code",
	"What does this do?",
	"Write a function that ",
	"Help me understand ",
	"How do I ",
	"Fix this bug",
	"Refactor this to ",
	"What are the key points?",
	"Compare these approaches",
	"Give me an example of ",
	"Debug this error",
	"Optimize this code",
	"What is the difference between ",
}

// responsePatterns classifies the last assistant reply to pick relevant
// follow-ups.
type responsePatterns struct {
	hasCode        bool
	hasList        bool
	hasError       bool
	hasExplanation bool
}

func detectPatterns(content string) responsePatterns {
	if content == "" {
		return responsePatterns{}
	}
	c := strings.ToLower(content)
	return responsePatterns{
		hasCode:        strings.Contains(c, "```") || strings.Contains(c, "function") || strings.Contains(c, "class "),
		hasList:        strings.Contains(c, "1.") || strings.Contains(c, "- ") || strings.Contains(c, "* "),
		hasError:       strings.Contains(c, "error") || strings.Contains(c, "bug") || strings.Contains(c, "fix") || strings.Contains(c, "issue"),
		hasExplanation: strings.Contains(c, "means") || strings.Contains(c, "because") || strings.Contains(c, "essentially"),
	}
}

// ContextSuggestions builds follow-up candidates from the last assistant
// reply. Returns nil when there is no context to react to.
func ContextSuggestions(lastAssistant string) []string {
	if lastAssistant == "" {
		return nil
	}

	p := detectPatterns(lastAssistant)
	var follow []string

	if p.hasCode {
		follow = append(follow,
			"Explain this step by step",
			"Can you add error handling?",
			"Write tests for this",
			"Can you optimize this?",
			"Show me a different approach",
		)
	}
	if p.hasList {
		follow = append(follow,
			"Tell me more about the first one",
			"Which do you recommend?",
			"Can you elaborate on that?",
			"Give me a comparison table",
		)
	}
	if p.hasError {
		follow = append(follow,
			"What caused this error?",
			"How do I prevent this?",
			"Are there other edge cases?",
			"Show me the fix",
		)
	}
	if p.hasExplanation {
		follow = append(follow,
			"Can you give me an example?",
			"Explain it more simply",
			"How does this relate to ",
			"What are the tradeoffs?",
		)
	}

	// General follow-ups always apply once a conversation is going
	follow = append(follow, "Go deeper on that", "Can you rewrite that?", "Thanks, now ", "What about ")
	return follow
}

// match returns the completion suffix of the first suggestion whose
// prefix matches the input case-insensitively.
func match(input string, suggestions []string) string {
	if len(input) < minInputLen {
		return ""
	}
	lower := strings.ToLower(input)
	for _, s := range suggestions {
		if len(s) > len(input) && strings.HasPrefix(strings.ToLower(s), lower) {
			return s[len(input):]
		}
	}
	return ""
}

// Ghost returns the ghost text shown after the cursor: a preemptive
// suggestion while the input is empty, otherwise the completion suffix
// of the best prefix match. Context-derived candidates rank before the
// static starters. Empty string means no suggestion.
func Ghost(input, lastAssistant string) string {
	context := ContextSuggestions(lastAssistant)

	if input == "" {
		if len(context) > 0 {
			return context[0]
		}
		return ""
	}

	return match(input, append(context, baseSuggestions...))
}
