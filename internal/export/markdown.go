// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes conversations as a markdown document.
type MarkdownExporter struct {
	opts *Options
}

// NewMarkdownExporter creates a markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{opts: opts}
}

// Export renders the conversation.
func (e *MarkdownExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	var sb strings.Builder

	title := conv.Summary
	if title == "" {
		title = "Conversation"
	}
	sb.WriteString("# " + title + "\n\n")

	if e.opts.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString("generator: golem-tui\n")
		if conv.Model != "" {
			sb.WriteString("model: " + conv.Model + "\n")
		}
		sb.WriteString("created: " + formatTimestamp(conv.CreatedAt) + "\n")
		sb.WriteString(fmt.Sprintf("messages: %d\n", len(conv.Messages)))
		if conv.TokensUsed > 0 {
			sb.WriteString(fmt.Sprintf("tokens: %d\n", conv.TokensUsed))
		}
		sb.WriteString("---\n\n")
	}

	for _, msg := range conv.Messages {
		sb.WriteString(e.renderMessage(&msg))
		sb.WriteString("\n")
	}

	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) renderMessage(msg *storage.StoredMessage) string {
	var sb strings.Builder

	label := roleLabel(msg.Role)
	if e.opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
		sb.WriteString(fmt.Sprintf("## %s · %s\n\n", label, formatShortTimestamp(msg.Timestamp)))
	} else {
		sb.WriteString("## " + label + "\n\n")
	}

	if msg.Role == "tool" {
		sb.WriteString(renderToolMarkdown(msg))
		return sb.String()
	}

	content := msg.Content
	if msg.Role == "assistant" {
		reasoning, answer := model.SplitThink(content)
		if reasoning != "" && e.opts.ShowReasoning {
			sb.WriteString("> _Reasoning_\n")
			for _, line := range strings.Split(strings.TrimSpace(reasoning), "\n") {
				sb.WriteString("> " + line + "\n")
			}
			sb.WriteString("\n")
		}
		content = answer
	}
	sb.WriteString(strings.TrimSpace(content) + "\n")

	if msg.Interrupted {
		sb.WriteString("\n_(interrupted)_\n")
	}
	if msg.Role == "assistant" && msg.DurationMs > 0 {
		sb.WriteString(fmt.Sprintf("\n_%s", formatDuration(msg.DurationMs)))
		if msg.TokenCount > 0 {
			sb.WriteString(fmt.Sprintf(" · %d tokens", msg.TokenCount))
		}
		if msg.TokensPerSec > 0 {
			sb.WriteString(fmt.Sprintf(" · %.1f tok/s", msg.TokensPerSec))
		}
		sb.WriteString("_\n")
	}
	return sb.String()
}

func renderToolMarkdown(msg *storage.StoredMessage) string {
	var sb strings.Builder
	status := "ok"
	if !msg.IsSuccess {
		status = "failed"
	}
	sb.WriteString(fmt.Sprintf("**%s** (%s)\n\n", msg.ToolName, status))
	sb.WriteString("```\n" + strings.TrimSpace(msg.Content) + "\n```\n")
	return sb.String()
}

func roleLabel(role string) string {
	switch role {
	case "user":
		return "You"
	case "assistant":
		return "Golem"
	case "system":
		return "System"
	case "tool":
		return "Tool"
	}
	return role
}
