// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"encoding/json"
	"regexp"
	"strings"
)

// =============================================================================
// TOOL CALL PARSING
// =============================================================================

// Call is a tool invocation parsed from assistant output.
type Call struct {
	// Name is the tool to invoke.
	Name string

	// Args holds the decoded arguments object.
	Args map[string]interface{}

	// Raw is the full <tool_call> block the call was parsed from.
	Raw string
}

// toolCallPattern matches <tool_call>{json}</tool_call> blocks. The JSON
// may span lines; matching is non-greedy so adjacent blocks stay separate.
var toolCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// ParseCalls extracts tool calls from assistant output. Blocks whose JSON
// does not decode, or that lack a name, are skipped; the count of skipped
// blocks is returned so callers can report malformed output without
// aborting the turn.
func ParseCalls(text string) ([]Call, int) {
	var calls []Call
	skipped := 0

	for _, m := range toolCallPattern.FindAllStringSubmatch(text, -1) {
		var payload struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(m[1]), &payload); err != nil || payload.Name == "" {
			skipped++
			continue
		}

		args, ok := decodeArguments(payload.Arguments)
		if !ok {
			skipped++
			continue
		}

		calls = append(calls, Call{
			Name: payload.Name,
			Args: args,
			Raw:  m[0],
		})
	}

	return calls, skipped
}

// decodeArguments accepts both an inline object and a JSON-encoded
// object string; some models double-encode the arguments field.
func decodeArguments(raw json.RawMessage) (map[string]interface{}, bool) {
	if len(raw) == 0 {
		return map[string]interface{}{}, true
	}

	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err == nil {
		return args, true
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		if err := json.Unmarshal([]byte(encoded), &args); err == nil {
			return args, true
		}
	}

	return nil, false
}

// StripCalls removes all <tool_call> blocks from text, leaving the
// surrounding commentary.
func StripCalls(text string) string {
	return strings.TrimSpace(toolCallPattern.ReplaceAllString(text, ""))
}

// HasCalls reports whether text contains at least one well-formed call.
func HasCalls(text string) bool {
	calls, _ := ParseCalls(text)
	return len(calls) > 0
}

// GetString reads a string argument with a default.
func (c Call) GetString(name, defaultVal string) string {
	if v, ok := c.Args[name].(string); ok {
		return v
	}
	return defaultVal
}

// GetInt reads a numeric argument with a default. JSON numbers decode as
// float64; integral strings are accepted too.
func (c Call) GetInt(name string, defaultVal int) int {
	switch v := c.Args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return defaultVal
}
