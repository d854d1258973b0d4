// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"

	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter writes conversations as a standalone dark-theme page.
type HTMLExporter struct {
	opts *Options
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{opts: opts}
}

// Export renders the conversation.
func (e *HTMLExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	var sb strings.Builder

	title := conv.Summary
	if title == "" {
		title = "Conversation"
	}

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("  <meta charset=\"utf-8\">\n")
	sb.WriteString("  <meta name=\"generator\" content=\"golem-tui\">\n")
	sb.WriteString("  <title>" + html.EscapeString(title) + "</title>\n")
	sb.WriteString("  <style>" + pageCSS + "</style>\n")
	sb.WriteString("</head>\n<body>\n")

	sb.WriteString("<header>\n  <h1>" + html.EscapeString(title) + "</h1>\n")
	if e.opts.IncludeMetadata {
		sb.WriteString("  <p class=\"meta\">")
		if conv.Model != "" {
			sb.WriteString(html.EscapeString(conv.Model) + " · ")
		}
		sb.WriteString(formatTimestamp(conv.CreatedAt))
		sb.WriteString(fmt.Sprintf(" · %d messages", len(conv.Messages)))
		if conv.TokensUsed > 0 {
			sb.WriteString(fmt.Sprintf(" · %d tokens", conv.TokensUsed))
		}
		sb.WriteString("</p>\n")
	}
	sb.WriteString("</header>\n<main>\n")

	for _, msg := range conv.Messages {
		sb.WriteString(e.renderMessage(&msg))
	}

	sb.WriteString("</main>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

// FileExtension returns ".html".
func (e *HTMLExporter) FileExtension() string { return ".html" }

func (e *HTMLExporter) renderMessage(msg *storage.StoredMessage) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<article class=\"msg %s\">\n", msg.Role))

	label := roleLabel(msg.Role)
	if e.opts.IncludeTimestamps && !msg.Timestamp.IsZero() {
		sb.WriteString(fmt.Sprintf("  <div class=\"label\">%s <time>%s</time></div>\n",
			html.EscapeString(label), formatShortTimestamp(msg.Timestamp)))
	} else {
		sb.WriteString("  <div class=\"label\">" + html.EscapeString(label) + "</div>\n")
	}

	if msg.Role == "tool" {
		status := "ok"
		if !msg.IsSuccess {
			status = "failed"
		}
		sb.WriteString(fmt.Sprintf("  <div class=\"tool %s\">%s</div>\n",
			status, html.EscapeString(msg.ToolName)))
		sb.WriteString("  <pre>" + html.EscapeString(msg.Content) + "</pre>\n")
		sb.WriteString("</article>\n")
		return sb.String()
	}

	content := msg.Content
	if msg.Role == "assistant" {
		reasoning, answer := model.SplitThink(content)
		if reasoning != "" && e.opts.ShowReasoning {
			sb.WriteString("  <details class=\"reasoning\"><summary>Reasoning</summary>\n")
			sb.WriteString("    <pre>" + html.EscapeString(strings.TrimSpace(reasoning)) + "</pre>\n")
			sb.WriteString("  </details>\n")
		}
		content = answer
	}

	sb.WriteString("  <div class=\"body\">" + formatHTMLBody(content) + "</div>\n")

	if msg.Interrupted {
		sb.WriteString("  <div class=\"interrupted\">interrupted</div>\n")
	}
	if msg.Role == "assistant" && msg.DurationMs > 0 {
		sb.WriteString("  <div class=\"stats\">" + formatDuration(msg.DurationMs))
		if msg.TokenCount > 0 {
			sb.WriteString(fmt.Sprintf(" · %d tokens", msg.TokenCount))
		}
		sb.WriteString("</div>\n")
	}
	sb.WriteString("</article>\n")
	return sb.String()
}

// formatHTMLBody escapes content and keeps fenced code blocks readable.
func formatHTMLBody(content string) string {
	var sb strings.Builder
	inCode := false
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inCode {
				sb.WriteString("</code></pre>\n")
			} else {
				sb.WriteString("<pre><code>")
			}
			inCode = !inCode
			continue
		}
		if inCode {
			sb.WriteString(html.EscapeString(line) + "\n")
		} else {
			sb.WriteString("<p>" + html.EscapeString(line) + "</p>\n")
		}
	}
	if inCode {
		sb.WriteString("</code></pre>\n")
	}
	return sb.String()
}

const pageCSS = `
body { background: #16161e; color: #c8c8d8; font: 15px/1.6 system-ui, sans-serif;
       max-width: 52rem; margin: 0 auto; padding: 2rem 1rem; }
header h1 { color: #b48cf2; font-size: 1.4rem; }
.meta, .stats { color: #6a6a80; font-size: 0.8rem; }
.msg { margin: 1.2rem 0; padding: 0.8rem 1rem; border-radius: 8px; }
.msg.user { background: #1e2030; }
.msg.assistant { background: #1a1a26; }
.msg.system { color: #8a8aa0; font-style: italic; }
.label { font-weight: 600; color: #7fd9d0; margin-bottom: 0.4rem; }
.msg.user .label { color: #b48cf2; }
pre { background: #121218; padding: 0.7rem; border-radius: 6px; overflow-x: auto; }
.reasoning summary { color: #6a6a80; cursor: pointer; font-size: 0.85rem; }
.reasoning pre { color: #8a8aa0; font-style: italic; }
.tool.ok { color: #6fd08c; }
.tool.failed { color: #e06c8a; }
.interrupted { color: #e0a96c; font-size: 0.85rem; }
p { margin: 0.3rem 0; }
`
