// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// SESSION EXPORT
// =============================================================================

// ExportMarkdown exports the conversation as a Markdown formatted string.
// Includes session metadata, timestamps, and all messages with role labels.
//
// Assistant reasoning spans are rendered as quoted "Thinking" blocks when
// includeReasoning is true and omitted entirely otherwise.
func (c *StoredConversation) ExportMarkdown(includeReasoning bool) string {
	var sb strings.Builder
	sb.WriteString("# " + c.Summary + "\n\n")
	sb.WriteString("Session: " + c.ID + "\n")
	if c.Model != "" {
		sb.WriteString("Model: " + c.Model + "\n")
	}
	sb.WriteString("Created: " + c.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for i := range c.Messages {
		writeMarkdownMessage(&sb, &c.Messages[i], includeReasoning)
	}

	return sb.String()
}

// writeMarkdownMessage renders one message to the export buffer.
func writeMarkdownMessage(sb *strings.Builder, msg *StoredMessage, includeReasoning bool) {
	role := model.Role(msg.Role).DisplayName()
	sb.WriteString("**" + role + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")

	content := msg.Content
	if msg.Role == string(model.RoleAssistant) && model.HasThink(content) {
		reasoning, answer := model.SplitThink(content)
		if includeReasoning && reasoning != "" {
			writeQuotedBlock(sb, "Thinking", reasoning)
		}
		if answer == "" {
			answer = model.ContinuedPlaceholder
		}
		content = answer
	}

	sb.WriteString(content)
	if msg.Interrupted {
		sb.WriteString("\n\n*(interrupted)*")
	}
	sb.WriteString("\n\n---\n\n")
}

// writeQuotedBlock renders text as a Markdown blockquote with a label line.
func writeQuotedBlock(sb *strings.Builder, label, text string) {
	sb.WriteString("> _" + label + "_\n>\n")
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString("> " + line + "\n")
	}
	sb.WriteString("\n")
}

// ExportJSON exports the conversation as a pretty-printed JSON byte array.
// Returns an error if JSON marshaling fails.
func (c *StoredConversation) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// GetPreview returns a preview string from the first user message.
// Returns empty string if no user messages exist.
func (c *StoredConversation) GetPreview() string {
	for _, msg := range c.Messages {
		if msg.Role == "user" && msg.Content != "" {
			return util.TruncateRunes(msg.Content, 80)
		}
	}
	return ""
}

// MessageCount returns the number of messages in the conversation.
func (c *StoredConversation) MessageCount() int {
	return len(c.Messages)
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList formats a list of sessions for display in a table format.
// Returns a human-readable string with session ID, creation time, message
// count, and preview.
func FormatSessionList(sessions []ConversationMeta) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	sb.WriteString("-----------------------------------------------------\n")
	sb.WriteString(util.PadWidth("ID", 14) + " " + util.PadWidth("Created", 20) + " " + util.PadWidth("Messages", 8) + " Preview\n")
	sb.WriteString("-----------------------------------------------------\n")

	for _, s := range sessions {
		idStr := util.TruncateRunesNoEllipsis(s.ID, 14)
		createdStr := s.CreatedAt.Format("2006-01-02 15:04")
		msgCountStr := util.IntToString(s.MessageCount)
		preview := util.TruncateRunes(s.Preview, 30)

		sb.WriteString(util.PadWidth(idStr, 14) + " " +
			util.PadWidth(createdStr, 20) + " " +
			util.PadWidth(msgCountStr, 8) + " " +
			preview + "\n")
	}
	return sb.String()
}
