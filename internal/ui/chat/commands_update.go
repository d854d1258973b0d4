// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	stdctx "context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/commands"
	"github.com/jeranaias/golem-tui/internal/memory"
	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/telemetry"
	"github.com/jeranaias/golem-tui/internal/vault"
)

// =============================================================================
// COMMAND MESSAGE DISPATCH
// =============================================================================

// handleCommandMsg processes messages emitted by slash-command handlers.
// The third return reports whether the message was recognized.
func (m *Model) handleCommandMsg(msg tea.Msg) (tea.Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case commands.ShowHelpMsg:
		m.addPanel(m.renderHelp(msg.Topic))
		return m, nil, true

	case commands.ClearConversationMsg:
		m.interruptStream()
		m.session.Replace(model.NewConversationWithModel(m.client.GetModel()))
		m.toolResults = nil
		m.toolSteps = 0
		m.lastAssistant = ""
		m.notice = "Conversation cleared"
		m.refreshViewport()
		return m, nil, true

	case commands.SaveCompleteMsg:
		if msg.Error != nil {
			m.setError("Save failed", msg.Error.Error(), "")
		} else if msg.Name != "" {
			m.notice = fmt.Sprintf("Saved as %q (%s)", msg.Name, msg.ID)
		} else {
			m.notice = "Saved (" + msg.ID + ")"
		}
		return m, nil, true

	case commands.ConversationLoadedMsg:
		if msg.Error != nil {
			m.setError("Load failed", msg.Error.Error(), "List sessions with /sessions")
			return m, nil, true
		}
		m.interruptStream()
		m.session.Replace(msg.Conversation)
		m.toolResults = nil
		m.toolSteps = 0
		if last := msg.Conversation.GetLastAssistantMessage(); last != nil {
			m.lastAssistant = model.StripThink(last.Content)
		}
		m.notice = "Loaded " + msg.ID
		m.refreshViewport()
		return m, nil, true

	case commands.SessionListMsg:
		if msg.Error != nil {
			m.setError("Session list failed", msg.Error.Error(), "")
			return m, nil, true
		}
		m.addPanel(renderSessionList(msg.Sessions))
		return m, nil, true

	case commands.CopyToClipboardMsg:
		if m.lastAssistant == "" {
			m.notice = "Nothing to copy yet"
			return m, nil, true
		}
		if err := copyToClipboard(m.lastAssistant); err != nil {
			m.setError("Copy failed", err.Error(), "Install wl-copy, xclip, or pbcopy")
		} else {
			m.notice = "Copied last response"
		}
		return m, nil, true

	case commands.ExportCompleteMsg:
		if msg.Error != nil {
			m.setError("Export failed", msg.Error.Error(), "")
		} else {
			m.notice = fmt.Sprintf("Exported %s to %s", msg.Format, msg.Path)
		}
		return m, nil, true

	case commands.ModelSwitchMsg:
		m.client.SetModel(msg.Model)
		if m.cfg != nil {
			m.cfg.Hive.Model = msg.Model
		}
		m.notice = "Model switched to " + msg.Model
		return m, nil, true

	case commands.ShowModelsMsg:
		if msg.Error != nil {
			m.setError("Model list failed", msg.Error.Error(), "Check the hive with /status")
			return m, nil, true
		}
		m.addPanel(renderModelList(msg.Models, msg.Current))
		return m, nil, true

	case commands.ReasoningToggledMsg:
		m.showReasoning = msg.Visible
		if msg.Visible {
			m.notice = "Reasoning shown"
		} else {
			m.notice = "Reasoning hidden"
		}
		m.refreshViewport()
		return m, nil, true

	case commands.FactSavedMsg:
		if msg.Error != nil {
			m.setError("Remember failed", msg.Error.Error(), "")
		} else {
			m.notice = fmt.Sprintf("Remembered fact #%d", msg.Fact.ID)
		}
		return m, nil, true

	case commands.FactsListMsg:
		if msg.Error != nil {
			m.setError("Facts unavailable", msg.Error.Error(), "")
			return m, nil, true
		}
		m.addPanel(renderFacts(msg.Facts, msg.Query))
		return m, nil, true

	case commands.FactForgottenMsg:
		if msg.Error != nil {
			m.setError("Forget failed", msg.Error.Error(), "List facts with /facts")
		} else {
			m.notice = fmt.Sprintf("Forgot fact #%d", msg.ID)
		}
		return m, nil, true

	case commands.VaultSearchMsg:
		if msg.Error != nil {
			m.setError("Vault search failed", msg.Error.Error(), "")
			return m, nil, true
		}
		m.addPanel(renderVaultSearch(msg.Query, msg.Notes))
		return m, nil, true

	case commands.VaultNoteMsg:
		if msg.Error != nil {
			m.setError("Note unavailable", msg.Error.Error(), "Search with /vault <query>")
			return m, nil, true
		}
		m.addPanel(fmt.Sprintf("── %s ──\n\n%s", msg.Name, msg.Content))
		return m, nil, true

	case commands.ShowToolsMsg:
		m.addPanel(renderTools(msg))
		return m, nil, true

	case commands.ConfigChangedMsg:
		if msg.Error != nil {
			m.setError("Config edit failed", msg.Error.Error(), "Usage: /config <key> <value>")
		} else {
			m.notice = fmt.Sprintf("Set %s = %s", msg.Key, msg.Value)
		}
		return m, nil, true

	case commands.ShowStatsMsg:
		m.addPanel(renderStats(msg))
		return m, nil, true

	case commands.ShowStatusMsg:
		m.addPanel(m.renderStatus())
		return m, nil, true

	case commands.ErrorMsg:
		m.setError(msg.Title, msg.Message, msg.Tip)
		return m, nil, true

	case commands.SystemMessageMsg:
		m.addPanel(msg.Content)
		return m, nil, true
	}

	return m, nil, false
}

// addPanel shows command output as a system entry in the transcript.
func (m *Model) addPanel(content string) {
	m.session.Conversation().AddSystemMessage(content)
	m.refreshViewport()
}

// =============================================================================
// PANEL RENDERING
// =============================================================================

func (m *Model) renderHelp(topic string) string {
	var b strings.Builder

	byCategory := m.registry.ByCategory()
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	if topic != "" {
		for _, cat := range categories {
			if strings.EqualFold(cat, topic) {
				categories = []string{cat}
				break
			}
		}
	}

	b.WriteString("Commands\n")
	for _, cat := range categories {
		b.WriteString("\n" + cat + "\n")
		for _, cmd := range byCategory[cat] {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			b.WriteString(fmt.Sprintf("  %-28s %s\n", usage, cmd.Description))
		}
	}
	b.WriteString("\nShortcuts: tab complete · esc interrupt · ctrl+r reasoning · ctrl+j newline · ctrl+c quit")
	return b.String()
}

func renderSessionList(sessions []commands.SessionInfo) string {
	if len(sessions) == 0 {
		return "No saved sessions. Save the current one with /save."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Saved sessions (%d)\n\n", len(sessions)))
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		b.WriteString(fmt.Sprintf("  %-14s %-32s %3d msgs  %s\n", s.ID, title, s.MsgCount, s.UpdatedAt))
	}
	b.WriteString("\nLoad one with /load <id>")
	return b.String()
}

func renderModelList(models []string, current string) string {
	if len(models) == 0 {
		return "The hive reported no models."
	}
	var b strings.Builder
	b.WriteString("Available models\n\n")
	for _, name := range models {
		marker := "  "
		if name == current {
			marker = "● "
		}
		b.WriteString("  " + marker + name + "\n")
	}
	b.WriteString("\nSwitch with /model <name>")
	return b.String()
}

func renderFacts(facts []memory.Fact, query string) string {
	if len(facts) == 0 {
		if query != "" {
			return fmt.Sprintf("No facts match %q.", query)
		}
		return "No facts stored. Save one with /remember <fact>."
	}
	var b strings.Builder
	if query != "" {
		b.WriteString(fmt.Sprintf("Facts matching %q\n\n", query))
	} else {
		b.WriteString(fmt.Sprintf("Stored facts (%d)\n\n", len(facts)))
	}
	for _, f := range facts {
		tags := ""
		if len(f.Tags) > 0 {
			tags = "  #" + strings.Join(f.Tags, " #")
		}
		b.WriteString(fmt.Sprintf("  #%-4d %s%s\n", f.ID, f.Content, tags))
	}
	b.WriteString("\nForget one with /forget <id>")
	return b.String()
}

func renderVaultSearch(query string, notes []vault.Note) string {
	if len(notes) == 0 {
		return fmt.Sprintf("No notes match %q.", query)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Notes matching %q\n\n", query))
	for _, n := range notes {
		b.WriteString("  " + n.Relative + "\n")
	}
	b.WriteString("\nOpen one with /note <name>")
	return b.String()
}

func renderTools(msg commands.ShowToolsMsg) string {
	var b strings.Builder
	if msg.Enabled {
		b.WriteString(fmt.Sprintf("Tools enabled (confirm: %s)\n\n", msg.Policy))
	} else {
		b.WriteString("Tools disabled. Enable with /config tools.enabled true\n\n")
	}
	for _, t := range msg.Tools {
		confirm := ""
		if t.Confirm {
			confirm = " [confirm]"
		}
		b.WriteString(fmt.Sprintf("  %-14s %s%s\n", t.Name, t.Description, confirm))
	}
	return b.String()
}

func renderStats(msg commands.ShowStatsMsg) string {
	var b strings.Builder
	switch msg.View {
	case "lifetime":
		b.WriteString(fmt.Sprintf("Lifetime usage since %s\n\n", msg.Lifetime.Since.Format("2006-01-02")))
		writeSnapshot(&b, msg.Lifetime)
	case "recent":
		b.WriteString("Recent queries\n\n")
		for _, r := range msg.Recent {
			b.WriteString(fmt.Sprintf("  %s  %-20s %5d+%-5d tok  %5.1fs  %s\n",
				r.Timestamp.Format("15:04"), r.Model,
				r.PromptTokens, r.CompletionTokens,
				r.Duration.Seconds(), r.Prompt))
		}
		if len(msg.Recent) == 0 {
			b.WriteString("  (none yet)\n")
		}
	default:
		b.WriteString("Session usage\n\n")
		writeSnapshot(&b, msg.Session)
	}
	return b.String()
}

func writeSnapshot(b *strings.Builder, snap telemetry.Snapshot) {
	b.WriteString(fmt.Sprintf("  requests  %d\n", snap.Requests))
	b.WriteString(fmt.Sprintf("  tokens    %d\n", snap.Tokens))
	if len(snap.ByModel) == 0 {
		return
	}
	models := make([]string, 0, len(snap.ByModel))
	for name := range snap.ByModel {
		models = append(models, name)
	}
	sort.Strings(models)
	b.WriteString("\n")
	for _, name := range models {
		u := snap.ByModel[name]
		b.WriteString(fmt.Sprintf("  %-22s %4d req  %6d prompt  %6d completion\n",
			name, u.Requests, u.PromptTokens, u.CompletionTokens))
	}
}

func (m *Model) renderStatus() string {
	var b strings.Builder
	b.WriteString("golem status\n\n")

	if m.client != nil && m.client.IsConfigured() {
		state := "unreachable"
		if m.connected {
			state = "connected"
		}
		b.WriteString(fmt.Sprintf("  hive     %s (%s)\n", m.client.BaseURL(), state))
		b.WriteString(fmt.Sprintf("  model    %s\n", m.client.GetModel()))
	} else {
		b.WriteString("  hive     not configured\n")
	}

	conv := m.session.Conversation()
	b.WriteString(fmt.Sprintf("  context  %d messages, ~%d tokens (%.0f%%)\n",
		conv.MessageCount(), conv.EstimateTokens(), conv.GetContextPercent()))
	b.WriteString(fmt.Sprintf("  session  %s", m.session.Duration().Round(time.Second)))
	if m.session.IsDirty() {
		b.WriteString(" (unsaved changes)")
	}
	b.WriteString("\n")

	if m.cfg != nil {
		b.WriteString(fmt.Sprintf("  tools    enabled=%v confirm=%s\n",
			m.cfg.Tools.Enabled, m.cfg.Tools.ConfirmMode))
	}
	return b.String()
}

// =============================================================================
// CLIPBOARD
// =============================================================================

// copyToClipboard writes text through whichever clipboard tool is
// installed, trying Wayland first.
func copyToClipboard(text string) error {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	switch {
	case commandExists("wl-copy"):
		cmd = exec.CommandContext(ctx, "wl-copy")
	case commandExists("xclip"):
		cmd = exec.CommandContext(ctx, "xclip", "-selection", "clipboard")
	case commandExists("xsel"):
		cmd = exec.CommandContext(ctx, "xsel", "--clipboard", "--input")
	case commandExists("pbcopy"):
		cmd = exec.CommandContext(ctx, "pbcopy")
	default:
		return fmt.Errorf("no clipboard tool found")
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
