// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"strings"

	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/model"
)

// BuildAPIHistory projects the displayed conversation into the message list
// sent to the model for the next turn. Reasoning spans are stripped from
// every assistant message regardless of recency: replaying reasoning back
// into the model's context wastes budget on text the model already acted
// on. Messages with empty content are dropped; a message that was nothing
// but reasoning survives as the "(continued)" placeholder so the turn
// alternation stays intact. Tool transcripts are display artifacts and are
// not sent.
//
// The input is never mutated. Ordering is preserved and nothing is
// truncated here; size control is Prune's job and runs first.
func BuildAPIHistory(msgs []*model.Message) []hive.ChatMessage {
	history := make([]hive.ChatMessage, 0, len(msgs))

	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case model.RoleUser:
			role = "user"
		case model.RoleAssistant:
			role = "assistant"
		case model.RoleSystem:
			role = "system"
		default:
			continue
		}
		history = append(history, hive.ChatMessage{Role: role, Content: msg.Content})
	}

	return SanitizeHistory(history)
}

// SanitizeHistory enforces the wire-payload rules on messages already in
// wire form: drop empty messages, strip reasoning from assistant messages,
// substitute the placeholder when stripping leaves nothing. The relay
// server applies this to inbound request histories so clients cannot feed
// reasoning back upstream.
//
// Idempotent: sanitizing its own output returns an equal slice.
func SanitizeHistory(history []hive.ChatMessage) []hive.ChatMessage {
	out := make([]hive.ChatMessage, 0, len(history))

	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		content := msg.Content
		if msg.Role == "assistant" {
			content = model.StripThinkOrPlaceholder(content)
		}
		out = append(out, hive.ChatMessage{Role: msg.Role, Content: content})
	}

	return out
}
