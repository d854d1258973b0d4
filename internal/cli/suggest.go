// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Command suggestion for typo correction.
package cli

import (
	"strings"
)

// validCommands lists all commands and aliases for typo suggestions.
var validCommands = []string{
	"tui",
	"ask",
	"chat",
	"serve",
	"status",
	"sessions",
	"export",
	"config",
	"version",
	"help",
	// Aliases
	"s",       // status
	"session", // sessions
}

// SuggestCommand returns the closest valid command when the input is
// within edit distance, or "" when nothing is close enough.
func SuggestCommand(input string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	// Threshold scales with length so "hepl" finds "help" without
	// mapping arbitrary words onto short commands
	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range validCommands {
		d := levenshteinDistance(input, cmd)
		if d == 0 {
			return ""
		}
		if d <= maxDistance && (bestDistance == -1 || d < bestDistance) {
			bestDistance = d
			bestMatch = cmd
		}
	}
	return bestMatch
}

// levenshteinDistance is the minimum number of single-character edits
// to turn s1 into s2. Two rows instead of the full matrix.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	cols := len(s2) + 1
	prev := make([]int, cols)
	curr := make([]int, cols)
	for j := 0; j < cols; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}

func min3(a, b, c int) int {
	if a <= b && a <= c {
		return a
	}
	if b <= c {
		return b
	}
	return c
}
