// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

// View renders the full chat screen.
func (m *Model) View() string {
	if !m.ready {
		return "starting golem…"
	}

	var parts []string
	parts = append(parts, m.viewport.View())

	if m.awaitConfirm && len(m.pendingCalls) > 0 {
		parts = append(parts, m.renderConfirm())
	} else if m.spinner.Active() {
		parts = append(parts, " "+m.spinner.View())
	} else if m.errTitle != "" {
		parts = append(parts, m.renderError())
	} else if m.notice != "" {
		parts = append(parts, " "+m.theme.SystemNote.Render(m.notice))
	}

	if !m.popup.Empty() {
		parts = append(parts, m.popup.View())
	}

	parts = append(parts, m.renderInput())
	parts = append(parts, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderInput() string {
	input := m.theme.InputContainer.Width(m.width - 2).Render(m.textarea.View())
	if m.ghost != "" && !m.streaming {
		// Ghost completion hint under the input, accepted with Tab
		hint := m.theme.Ghost.Render("⇥ " + m.ghost)
		return lipgloss.JoinVertical(lipgloss.Left, input, " "+hint)
	}
	return input
}

func (m *Model) renderConfirm() string {
	call := m.pendingCalls[0]
	detail := call.Name
	if arg := call.GetString("command", ""); arg != "" {
		detail += ": " + arg
	} else if arg := call.GetString("path", ""); arg != "" {
		detail += " " + arg
	}
	return m.theme.ErrorBox.Render(
		m.theme.ErrorTitle.Render("Run tool? ") + detail + "  [y/n]")
}

func (m *Model) renderError() string {
	var b strings.Builder
	b.WriteString(m.theme.ErrorTitle.Render(m.errTitle))
	if m.errMessage != "" {
		b.WriteString("\n" + m.errMessage)
	}
	if m.errTip != "" {
		b.WriteString("\n" + m.theme.ErrorTip.Render("tip: "+m.errTip))
	}
	return m.theme.ErrorBox.Width(m.width - 4).Render(b.String())
}

func (m *Model) renderStatusBar() string {
	m.statusBar.Model = m.client.GetModel()
	m.statusBar.Width = m.width
	m.statusBar.Reasoning = m.showReasoning

	conv := m.session.Conversation()
	m.statusBar.ContextPct = conv.GetContextPercent()
	m.statusBar.TokenEstimate = conv.EstimateTokens()

	switch {
	case !m.connected:
		m.statusBar.Status = components.StatusOffline
	case m.errTitle != "":
		m.statusBar.Status = components.StatusError
	case m.streaming && !m.spinner.Active():
		m.statusBar.Status = components.StatusStreaming
	case m.streaming:
		m.statusBar.Status = components.StatusThinking
	default:
		m.statusBar.Status = components.StatusReady
	}

	return m.statusBar.Render()
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshViewport re-renders the transcript and keeps the view pinned to
// the bottom.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.streaming {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTranscript() string {
	history := m.session.Conversation().GetHistory()
	if len(history) == 0 {
		return m.renderWelcome()
	}

	width := m.width - 2
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.theme.AssistantLabel.Render("  golem") + "\n\n")
	if m.client != nil && m.client.IsConfigured() {
		b.WriteString("  Connected to " + m.client.BaseURL() + "\n")
		b.WriteString("  Model: " + m.client.GetModel() + "\n\n")
	} else {
		b.WriteString("  No hive configured. Set one with:\n")
		b.WriteString("    /config hive.url http://host:8090/v1\n\n")
	}
	b.WriteString(m.theme.SystemNote.Render("  Type a message, /help for commands, @file: to attach context."))
	return b.String()
}

func (m *Model) renderMessage(msg *model.Message, width int) string {
	switch msg.Role {
	case model.RoleUser:
		return m.theme.UserLabel.Render("you") + "\n" +
			m.theme.MessageBody.Width(width).Render(msg.Content)

	case model.RoleAssistant:
		return m.renderAssistant(msg, width)

	case model.RoleSystem:
		return m.theme.SystemNote.Width(width).Render(msg.Content)

	case model.RoleTool:
		return m.renderTool(msg, width)
	}
	return msg.Content
}

func (m *Model) renderAssistant(msg *model.Message, width int) string {
	var b strings.Builder
	b.WriteString(m.theme.AssistantLabel.Render("golem"))
	b.WriteString("\n")

	reasoning, content := model.SplitThink(msg.Content)

	if reasoning != "" {
		if m.showReasoning {
			b.WriteString(m.theme.Reasoning.Width(width).Render(reasoning))
			b.WriteString("\n")
		} else {
			b.WriteString(m.theme.ReasoningHint.Render("· reasoning hidden (ctrl+r)"))
			b.WriteString("\n")
		}
	}

	if content != "" {
		rendered := components.ParseCodeBlocks(content, width)
		rendered = components.ParseInlineCode(rendered)
		b.WriteString(m.theme.MessageBody.Width(width).Render(rendered))
	} else if msg.IsStreaming && reasoning == "" {
		b.WriteString(m.theme.ThinkingText.Render("…"))
	}

	if msg.Interrupted {
		b.WriteString("\n" + m.theme.Interrupted.Render("⏸ interrupted"))
	}

	if meta := formatMeta(msg); meta != "" && !msg.IsStreaming {
		b.WriteString("\n" + m.theme.MessageMeta.Render(meta))
	}
	return b.String()
}

func (m *Model) renderTool(msg *model.Message, width int) string {
	style := m.theme.ToolSuccess
	marker := "✓"
	if !msg.IsSuccess {
		style = m.theme.ToolError
		marker = "✗"
	}

	result := msg.Content
	if lines := strings.Split(result, "\n"); len(lines) > 8 {
		result = strings.Join(lines[:8], "\n") + fmt.Sprintf("\n… %d more lines", len(lines)-8)
	}
	return style.Render(marker+" "+msg.ToolName) + "\n" +
		m.theme.MessageMeta.Width(width).Render(result)
}

// formatMeta builds the timing/token line under a settled assistant message.
func formatMeta(msg *model.Message) string {
	var parts []string
	if msg.TotalDuration > 0 {
		parts = append(parts, msg.TotalDuration.Round(100*time.Millisecond).String())
	}
	if msg.TokenCount > 0 {
		parts = append(parts, fmt.Sprintf("%d tok", msg.TokenCount))
	}
	if msg.TokensPerSec > 0 {
		parts = append(parts, fmt.Sprintf("%.1f tok/s", msg.TokensPerSec))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " · ")
}
