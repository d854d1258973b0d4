// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package suggest

import (
	"strings"
	"testing"
)

func TestGhostEmptyInputNoContext(t *testing.T) {
	if got := Ghost("", ""); got != "" {
		t.Errorf("Ghost with nothing to go on = %q, want empty", got)
	}
}

func TestGhostEmptyInputWithContext(t *testing.T) {
	got := Ghost("", "Here is a function:\n```go\nfunc f() {}\n```")
	if got != "Explain this step by step" {
		t.Errorf("preemptive suggestion = %q", got)
	}
}

func TestGhostPrefixMatchReturnsSuffixOnly(t *testing.T) {
	got := Ghost("How do", "")
	if got != " I " {
		t.Errorf("Ghost(\"How do\") = %q, want %q", got, " I ")
	}
}

func TestGhostCaseInsensitive(t *testing.T) {
	got := Ghost("how do", "")
	if got != " I " {
		t.Errorf("case-insensitive match = %q", got)
	}
}

func TestGhostTooShortInput(t *testing.T) {
	if got := Ghost("h", ""); got != "" {
		t.Errorf("single character should not match, got %q", got)
	}
}

func TestGhostNoMatch(t *testing.T) {
	if got := Ghost("zzzz nothing matches", ""); got != "" {
		t.Errorf("Ghost = %q, want empty", got)
	}
}

func TestGhostContextRanksFirst(t *testing.T) {
	// "What caused this error?" (context) must beat
	// "What does this do?" and "What is the difference between " (base)
	got := Ghost("What c", "I found an error in the loop")
	if got != "aused this error?" {
		t.Errorf("context candidate should rank first, got %q", got)
	}
}

func TestContextSuggestionsPatterns(t *testing.T) {
	tests := []struct {
		name    string
		content string
		expect  string
	}{
		{"code", "```python\nprint(1)\n```", "Write tests for this"},
		{"list", "Options:\n1. first\n2. second", "Which do you recommend?"},
		{"error", "The bug is in line 3", "Show me the fix"},
		{"explanation", "This works because the cache is warm", "Can you give me an example?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ContextSuggestions(tt.content)
			if !contains(got, tt.expect) {
				t.Errorf("suggestions for %s content missing %q: %v", tt.name, tt.expect, got)
			}
		})
	}
}

func TestContextSuggestionsAlwaysIncludeGeneral(t *testing.T) {
	got := ContextSuggestions("plain prose with none of the trigger words, oddly")
	if !contains(got, "Go deeper on that") {
		t.Errorf("general follow-ups missing: %v", got)
	}
}

func TestContextSuggestionsEmpty(t *testing.T) {
	if got := ContextSuggestions(""); got != nil {
		t.Errorf("no context should yield nil, got %v", got)
	}
}

func TestGhostNeverEchoesFullInput(t *testing.T) {
	// Typing a complete suggestion exactly should not ghost an empty suffix
	for _, s := range baseSuggestions {
		if got := Ghost(s, ""); got != "" && strings.TrimSpace(got) == "" {
			t.Errorf("Ghost(%q) returned whitespace suffix %q", s, got)
		}
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
