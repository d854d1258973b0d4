// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Completer handles tab completion for commands and arguments.
type Completer struct {
	registry *Registry

	// Callbacks for dynamic completion, set by the application to
	// provide live data.
	ModelsFn   func() []string              // Models from the hive
	SessionsFn func() []SessionInfo         // Saved sessions
	ToolsFn    func() []string              // Registered tool names
	ConfigFn   func() []string              // Config keys
	NotesFn    func() []string              // Vault note names
	FilesFn    func(prefix string) []string // Matching files
}

// NewCompleter creates a new completer with the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{
		registry: registry,
	}
}

// GetCommand returns a command by name from the completer's registry.
func (c *Completer) GetCommand(name string) *Command {
	if c.registry == nil {
		return nil
	}
	return c.registry.Get(name)
}

// Complete returns completions for the given input at the cursor position.
func (c *Completer) Complete(input string, cursorPos int) []Completion {
	if cursorPos < len(input) {
		input = input[:cursorPos]
	}

	input = strings.TrimSpace(input)

	// Not a command - check for @ reference completion
	if !strings.HasPrefix(input, "/") {
		return c.completeRefs(input)
	}

	parts := splitCommandLine(input)
	if len(parts) == 0 {
		return c.completeCommands("")
	}

	// Still typing the command name?
	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		return c.completeCommands(parts[0])
	}

	cmd := c.registry.Get(parts[0])
	if cmd == nil {
		return nil
	}

	// Determine which argument we're completing
	argIndex := len(parts) - 2
	if strings.HasSuffix(input, " ") {
		argIndex++
	}

	partial := ""
	if !strings.HasSuffix(input, " ") && len(parts) > 1 {
		partial = parts[len(parts)-1]
	}

	return c.completeArg(cmd, argIndex, partial)
}

// =============================================================================
// COMMAND COMPLETION
// =============================================================================

// completeCommands returns completions for command names.
func (c *Completer) completeCommands(partial string) []Completion {
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}

		if strings.HasPrefix(strings.ToLower(cmd.Name), partial) {
			completions = append(completions, Completion{
				Value:       cmd.Name,
				Display:     cmd.Name,
				Description: cmd.Description,
				Score:       calculateScore(cmd.Name, partial),
			})
		}

		for _, alias := range cmd.Aliases {
			if strings.HasPrefix(strings.ToLower(alias), partial) {
				completions = append(completions, Completion{
					Value:       alias,
					Display:     alias + " -> " + cmd.Name,
					Description: cmd.Description,
					Score:       calculateScore(alias, partial) - 10, // Aliases rank below primaries
				})
			}
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// ARGUMENT COMPLETION
// =============================================================================

// completeArg returns completions for a command argument.
func (c *Completer) completeArg(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	arg := cmd.Args[argIndex]

	switch arg.Type {
	case ArgTypeModel:
		return c.completeModels(partial)
	case ArgTypeSession:
		return c.completeSessions(partial)
	case ArgTypeFile:
		return c.completeFiles(partial)
	case ArgTypeEnum:
		return c.completeFromList(arg.Values, partial)
	case ArgTypeTool:
		return c.completeTools(partial)
	case ArgTypeConfig:
		return c.completeConfig(partial)
	case ArgTypeNote:
		return c.completeNotes(partial)
	case ArgTypeString:
		if arg.Completer != nil {
			return c.completeFromList(arg.Completer(), partial)
		}
		return nil
	default:
		return nil
	}
}

// completeModels returns completions for model names. Without a live
// hive connection there is nothing sensible to offer.
func (c *Completer) completeModels(partial string) []Completion {
	if c.ModelsFn == nil {
		return nil
	}
	return c.completeFromList(c.ModelsFn(), partial)
}

// completeSessions returns completions for session IDs, matching on ID
// prefix or title substring.
func (c *Completer) completeSessions(partial string) []Completion {
	if c.SessionsFn == nil {
		return nil
	}

	sessions := c.SessionsFn()
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, session := range sessions {
		idMatch := strings.HasPrefix(strings.ToLower(session.ID), partial)
		titleMatch := strings.Contains(strings.ToLower(session.Title), partial)

		if idMatch || titleMatch {
			score := calculateScore(session.ID, partial)
			if titleMatch && !idMatch {
				score -= 5
			}

			display := session.ID
			if session.Title != "" {
				display = session.ID + " - " + util.TruncateRunes(session.Title, 30)
			}

			completions = append(completions, Completion{
				Value:       session.ID,
				Display:     display,
				Description: session.Preview,
				Score:       score,
			})
		}
	}

	sortCompletions(completions)
	return completions
}

// completeNotes returns completions for vault note names.
func (c *Completer) completeNotes(partial string) []Completion {
	if c.NotesFn == nil {
		return nil
	}
	return c.completeFromList(c.NotesFn(), partial)
}

// completeFiles returns completions for file paths.
func (c *Completer) completeFiles(partial string) []Completion {
	if c.FilesFn != nil {
		return c.completeFromList(c.FilesFn(partial), partial)
	}
	return c.defaultFileCompletion(partial)
}

// defaultFileCompletion provides basic file path completion.
func (c *Completer) defaultFileCompletion(partial string) []Completion {
	var completions []Completion

	if partial == "" {
		partial = "."
	}

	dir := filepath.Dir(partial)
	prefix := filepath.Base(partial)
	if strings.HasSuffix(partial, string(os.PathSeparator)) {
		dir = partial
		prefix = ""
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	prefix = strings.ToLower(prefix)

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(strings.ToLower(name), prefix) {
			continue
		}

		// Skip hidden files unless the prefix asks for them
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(prefix, ".") {
			continue
		}

		path := filepath.Join(dir, name)
		if entry.IsDir() {
			path += string(os.PathSeparator)
		}

		score := calculateScore(name, prefix)
		if entry.IsDir() {
			score += 5
		}

		desc := ""
		if info, err := entry.Info(); err == nil {
			if entry.IsDir() {
				desc = "directory"
			} else {
				desc = util.HumanBytes(info.Size())
			}
		}

		completions = append(completions, Completion{
			Value:       path,
			Display:     name,
			Description: desc,
			Score:       score,
		})
	}

	sortCompletions(completions)

	if len(completions) > 20 {
		completions = completions[:20]
	}
	return completions
}

// completeTools returns completions for tool names.
func (c *Completer) completeTools(partial string) []Completion {
	if c.ToolsFn == nil {
		return nil
	}
	return c.completeFromList(c.ToolsFn(), partial)
}

// completeConfig returns completions for config keys.
func (c *Completer) completeConfig(partial string) []Completion {
	var keys []string
	if c.ConfigFn != nil {
		keys = c.ConfigFn()
	} else {
		keys = []string{
			"hive.url", "hive.model", "hive.request_timeout_secs",
			"context.max_history_chars", "context.max_message_chars",
			"ui.theme", "ui.show_reasoning", "ui.markdown",
			"tools.enabled", "tools.confirm_mode",
		}
	}

	return c.completeFromList(keys, partial)
}

// completeFromList returns completions from a list of strings.
func (c *Completer) completeFromList(values []string, partial string) []Completion {
	var completions []Completion

	partial = strings.ToLower(partial)

	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), partial) {
			completions = append(completions, Completion{
				Value:   value,
				Display: value,
				Score:   calculateScore(value, partial),
			})
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// REFERENCE COMPLETION
// =============================================================================

// completeRefs handles completion for @ references in regular input.
func (c *Completer) completeRefs(input string) []Completion {
	lastAt := strings.LastIndex(input, "@")
	if lastAt == -1 {
		return nil
	}

	partial := input[lastAt:]

	// Completing a file reference path?
	if strings.HasPrefix(partial, "@file:") {
		pathPart := strings.TrimPrefix(partial, "@file:")
		pathPart = strings.Trim(pathPart, "\"")
		files := c.completeFiles(pathPart)

		for i := range files {
			files[i].Value = "@file:" + files[i].Value
			files[i].Display = "@file:" + files[i].Display
		}
		return files
	}

	refTypes := []struct {
		value string
		desc  string
	}{
		{"@file:", "Include file content"},
		{"@clip", "Include clipboard content"},
	}

	var completions []Completion
	partial = strings.ToLower(partial)

	for _, r := range refTypes {
		if strings.HasPrefix(strings.ToLower(r.value), partial) {
			completions = append(completions, Completion{
				Value:       r.value,
				Display:     r.value,
				Description: r.desc,
				Score:       calculateScore(r.value, partial),
			})
		}
	}

	sortCompletions(completions)
	return completions
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// calculateScore calculates a match score for completion ranking.
// Higher score = better match.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	score := 100

	if value == partial {
		return score + 100
	}

	if strings.HasPrefix(value, partial) {
		score += 50
		// Shorter completions first
		score += 20 - len(value)
	}

	score -= len(value) / 2
	return score
}

// sortCompletions sorts completions by score (descending), then alphabetically.
func sortCompletions(completions []Completion) {
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// =============================================================================
// COMPLETION NAVIGATION
// =============================================================================

// CompletionState holds the state for navigating completions.
type CompletionState struct {
	// Original input before completion
	OriginalInput string

	// Current completions
	Completions []Completion

	// Selected index (-1 for none)
	Selected int

	// Visible indicates if completions should be shown
	Visible bool
}

// NewCompletionState creates a new completion state.
func NewCompletionState() *CompletionState {
	return &CompletionState{
		Selected: -1,
	}
}

// Update updates the completion state with new completions. The first
// candidate is auto-selected so Tab accepts it directly.
func (cs *CompletionState) Update(input string, completions []Completion) {
	cs.OriginalInput = input
	cs.Completions = completions
	cs.Selected = 0
	cs.Visible = len(completions) > 0
}

// Next moves to the next completion.
func (cs *CompletionState) Next() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected = (cs.Selected + 1) % len(cs.Completions)
}

// Prev moves to the previous completion.
func (cs *CompletionState) Prev() {
	if len(cs.Completions) == 0 {
		return
	}
	cs.Selected--
	if cs.Selected < 0 {
		cs.Selected = len(cs.Completions) - 1
	}
}

// Accept returns the selected completion value, or empty if none selected.
func (cs *CompletionState) Accept() string {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		if len(cs.Completions) > 0 {
			return cs.Completions[0].Value
		}
		return ""
	}
	return cs.Completions[cs.Selected].Value
}

// Clear clears the completion state.
func (cs *CompletionState) Clear() {
	cs.OriginalInput = ""
	cs.Completions = nil
	cs.Selected = -1
	cs.Visible = false
}

// GetSelected returns the currently selected completion, or nil.
func (cs *CompletionState) GetSelected() *Completion {
	if cs.Selected < 0 || cs.Selected >= len(cs.Completions) {
		return nil
	}
	return &cs.Completions[cs.Selected]
}
