// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/config"
	"github.com/jeranaias/golem-tui/internal/memory"
	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/storage"
	"github.com/jeranaias/golem-tui/internal/telemetry"
	"github.com/jeranaias/golem-tui/internal/util"
	"github.com/jeranaias/golem-tui/internal/vault"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// Handlers communicate with the UI by emitting these messages through
// tea.Cmd. Handlers that have the needed service on the Context do the
// work themselves and emit a *Complete/*Result message; otherwise they
// emit a request message for the app to fulfill.

// ShowHelpMsg triggers the help display.
type ShowHelpMsg struct {
	Topic string // Empty for general help
}

// ClearConversationMsg starts a fresh conversation.
type ClearConversationMsg struct{}

// SaveCompleteMsg reports the outcome of /save.
type SaveCompleteMsg struct {
	ID    string
	Name  string
	Error error
}

// ConversationLoadedMsg carries a loaded conversation for the app to
// install via session.Replace.
type ConversationLoadedMsg struct {
	ID           string
	Conversation *model.Conversation
	Error        error
}

// SessionInfo describes one saved session for lists and completion.
type SessionInfo struct {
	ID        string
	Title     string
	Model     string
	Preview   string
	UpdatedAt string
	MsgCount  int
}

// SessionListMsg contains the list of available sessions.
type SessionListMsg struct {
	Sessions []SessionInfo
	Error    error
}

// CopyToClipboardMsg asks the app to copy the last response. The app
// fills in the content since handlers don't see render state.
type CopyToClipboardMsg struct{}

// ExportCompleteMsg reports the outcome of /export.
type ExportCompleteMsg struct {
	Path   string
	Format string
	Error  error
}

// ModelSwitchMsg asks the app to switch the active model.
type ModelSwitchMsg struct {
	Model string
}

// ShowModelsMsg carries the hive's model list.
type ShowModelsMsg struct {
	Models  []string
	Current string
	Error   error
}

// ReasoningToggledMsg reports the new reasoning visibility.
type ReasoningToggledMsg struct {
	Visible bool
}

// FactSavedMsg reports the outcome of /remember.
type FactSavedMsg struct {
	Fact  *memory.Fact
	Error error
}

// FactsListMsg carries facts for /facts and /recall.
type FactsListMsg struct {
	Facts []memory.Fact
	Query string // Empty for a plain listing
	Error error
}

// FactForgottenMsg reports the outcome of /forget.
type FactForgottenMsg struct {
	ID    int64
	Error error
}

// VaultSearchMsg carries vault search results.
type VaultSearchMsg struct {
	Query string
	Notes []vault.Note
	Error error
}

// VaultNoteMsg carries a single note's content.
type VaultNoteMsg struct {
	Name    string
	Content string
	Error   error
}

// ToolInfo describes one tool for the /tools listing.
type ToolInfo struct {
	Name        string
	Description string
	Confirm     bool
}

// ShowToolsMsg carries the tool listing.
type ShowToolsMsg struct {
	Tools   []ToolInfo
	Enabled bool
	Policy  string
}

// ConfigChangedMsg reports a /config edit.
type ConfigChangedMsg struct {
	Key   string
	Value string
	Error error
}

// ShowStatsMsg carries usage tallies for the /stats view.
type ShowStatsMsg struct {
	View     string // session, lifetime, or recent
	Session  telemetry.Snapshot
	Lifetime telemetry.Snapshot
	Recent   []telemetry.QueryRecord
}

// ShowStatusMsg asks the app to render the status panel; the app owns
// the live connection state.
type ShowStatusMsg struct{}

// ErrorMsg indicates a command error.
type ErrorMsg struct {
	Title   string
	Message string
	Tip     string
}

// SystemMessageMsg adds a system notice to the chat transcript.
type SystemMessageMsg struct {
	Content string
}

// =============================================================================
// NAVIGATION
// =============================================================================

// HandleHelp shows help information.
func HandleHelp(ctx *Context, args []string) tea.Cmd {
	topic := ""
	if len(args) > 0 {
		topic = strings.ToLower(args[0])
	}
	return func() tea.Msg {
		return ShowHelpMsg{Topic: topic}
	}
}

// HandleQuit exits the application.
func HandleQuit(ctx *Context, args []string) tea.Cmd {
	return tea.Quit
}

// =============================================================================
// CONVERSATION
// =============================================================================

// HandleNew starts a new conversation.
func HandleNew(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		return ClearConversationMsg{}
	}
}

// HandleClear clears the conversation history.
func HandleClear(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		return ClearConversationMsg{}
	}
}

// HandleSave saves the current conversation, optionally renaming it.
func HandleSave(ctx *Context, args []string) tea.Cmd {
	name := strings.Join(args, " ")

	if ctx == nil || ctx.Storage == nil || ctx.Session == nil {
		return errCmd("Save unavailable", "conversation storage is not configured", "")
	}
	store := ctx.Storage
	sess := ctx.Session

	return func() tea.Msg {
		conv := sess.Conversation()
		if conv == nil || conv.IsEmpty() {
			return SaveCompleteMsg{Error: fmt.Errorf("nothing to save")}
		}

		id, err := store.SaveConversation(conv)
		if err != nil {
			return SaveCompleteMsg{Error: err}
		}
		if name != "" {
			if err := store.Rename(id, name); err != nil {
				return SaveCompleteMsg{ID: id, Name: name, Error: err}
			}
		}
		return SaveCompleteMsg{ID: id, Name: name}
	}
}

// HandleLoad loads a saved conversation by ID or list index.
func HandleLoad(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		return HandleSessions(ctx, args)
	}
	target := args[0]

	if ctx == nil || ctx.Storage == nil {
		return errCmd("Load unavailable", "conversation storage is not configured", "")
	}
	store := ctx.Storage

	return func() tea.Msg {
		var stored *storage.StoredConversation
		var err error

		// A small number is a 1-based index into the session list.
		if n, convErr := strconv.Atoi(target); convErr == nil && n > 0 {
			stored, err = store.LoadByIndex(n)
		} else {
			stored, err = store.Load(target)
		}
		if err != nil {
			return ConversationLoadedMsg{ID: target, Error: err}
		}

		return ConversationLoadedMsg{
			ID:           stored.ID,
			Conversation: stored.ToConversation(),
		}
	}
}

// HandleSessions shows the session list.
func HandleSessions(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Storage == nil {
		return errCmd("Sessions unavailable", "conversation storage is not configured", "")
	}
	store := ctx.Storage

	return func() tea.Msg {
		metas, err := store.List()
		if err != nil {
			return SessionListMsg{Error: err}
		}

		sessions := make([]SessionInfo, len(metas))
		for i, m := range metas {
			sessions[i] = SessionInfo{
				ID:        m.ID,
				Title:     m.Summary,
				Model:     m.Model,
				Preview:   m.Preview,
				UpdatedAt: m.UpdatedAt.Format("2006-01-02 15:04"),
				MsgCount:  m.MessageCount,
			}
		}
		return SessionListMsg{Sessions: sessions}
	}
}

// HandleCopy copies the last response to the clipboard.
func HandleCopy(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		return CopyToClipboardMsg{}
	}
}

// HandleExport exports the conversation to a file in the working
// directory (or the given path).
func HandleExport(ctx *Context, args []string) tea.Cmd {
	format := "md"
	if len(args) > 0 {
		format = strings.ToLower(args[0])
		if format == "markdown" {
			format = "md"
		}
	}
	if format != "md" && format != "json" {
		return errCmd("Invalid export format", fmt.Sprintf("unknown format: %s", format), "Supported formats: md, json")
	}

	path := ""
	if len(args) > 1 {
		path = util.ExpandHome(args[1])
	}

	if ctx == nil || ctx.Session == nil {
		return errCmd("Export unavailable", "no active session", "")
	}
	sess := ctx.Session

	showReasoning := false
	if ctx.Config != nil {
		showReasoning = ctx.Config.UI.ShowReasoning
	}

	return func() tea.Msg {
		conv := sess.Conversation()
		if conv == nil || conv.IsEmpty() {
			return ExportCompleteMsg{Format: format, Error: fmt.Errorf("nothing to export")}
		}

		stored := storage.FromConversation(conv)
		out := path
		if out == "" {
			out = fmt.Sprintf("golem-%s.%s", time.Now().Format("20060102-150405"), format)
		}

		var data []byte
		if format == "json" {
			var err error
			data, err = stored.ExportJSON()
			if err != nil {
				return ExportCompleteMsg{Path: out, Format: format, Error: err}
			}
		} else {
			data = []byte(stored.ExportMarkdown(showReasoning))
		}

		if err := util.AtomicWriteFile(out, data, 0o644); err != nil {
			return ExportCompleteMsg{Path: out, Format: format, Error: err}
		}
		return ExportCompleteMsg{Path: out, Format: format}
	}
}

// =============================================================================
// MODEL
// =============================================================================

// HandleModel switches the active model or reports the current one.
func HandleModel(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		current := ""
		if ctx != nil && ctx.Hive != nil {
			current = ctx.Hive.GetModel()
		}
		return func() tea.Msg {
			if current == "" {
				return SystemMessageMsg{Content: "No model selected. Use /models to list what the hive offers."}
			}
			return SystemMessageMsg{Content: "Current model: " + current}
		}
	}

	name := args[0]
	return func() tea.Msg {
		return ModelSwitchMsg{Model: name}
	}
}

// HandleModels lists models available on the hive server.
func HandleModels(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Hive == nil {
		return errCmd("Hive unavailable", "no hive client configured", "Check hive.url in your config")
	}
	client := ctx.Hive

	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entries, err := client.ListModels(reqCtx)
		if err != nil {
			return ShowModelsMsg{Error: err}
		}

		models := make([]string, len(entries))
		for i, e := range entries {
			models[i] = e.ID
		}
		return ShowModelsMsg{Models: models, Current: client.GetModel()}
	}
}

// HandleReason toggles reasoning visibility, or sets it explicitly.
func HandleReason(ctx *Context, args []string) tea.Cmd {
	var visible bool
	switch {
	case len(args) > 0 && strings.EqualFold(args[0], "on"):
		visible = true
	case len(args) > 0 && strings.EqualFold(args[0], "off"):
		visible = false
	case ctx != nil && ctx.Config != nil:
		visible = !ctx.Config.UI.ShowReasoning
	default:
		visible = true
	}

	if ctx != nil && ctx.Config != nil {
		ctx.Config.UI.ShowReasoning = visible
		_ = config.Save(ctx.Config)
	}

	return func() tea.Msg {
		return ReasoningToggledMsg{Visible: visible}
	}
}

// =============================================================================
// MEMORY
// =============================================================================

// HandleRemember stores a fact. Trailing #tag tokens become tags.
func HandleRemember(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Memory == nil {
		return errCmd("Memory unavailable", "the facts store is not configured", "")
	}
	store := ctx.Memory

	content, tags := splitTrailingTags(args)
	if content == "" {
		return errCmd("Nothing to remember", "provide the fact text", "Usage: /remember <fact> [#tag ...]")
	}

	return func() tea.Msg {
		fact, err := store.Remember(content, tags)
		return FactSavedMsg{Fact: fact, Error: err}
	}
}

// HandleRecall searches stored facts.
func HandleRecall(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Memory == nil {
		return errCmd("Memory unavailable", "the facts store is not configured", "")
	}
	store := ctx.Memory

	query := strings.Join(args, " ")
	if query == "" {
		return errCmd("Empty query", "provide search terms", "Usage: /recall <query>")
	}

	return func() tea.Msg {
		facts, err := store.Recall(query, 10)
		return FactsListMsg{Facts: facts, Query: query, Error: err}
	}
}

// HandleFacts lists all stored facts.
func HandleFacts(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Memory == nil {
		return errCmd("Memory unavailable", "the facts store is not configured", "")
	}
	store := ctx.Memory

	return func() tea.Msg {
		facts, err := store.All()
		return FactsListMsg{Facts: facts, Error: err}
	}
}

// HandleForget deletes a fact by ID.
func HandleForget(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Memory == nil {
		return errCmd("Memory unavailable", "the facts store is not configured", "")
	}
	store := ctx.Memory

	if len(args) == 0 {
		return errCmd("Missing fact ID", "which fact should be forgotten?", "Run /facts to see IDs")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errCmd("Invalid fact ID", fmt.Sprintf("%q is not a number", args[0]), "Run /facts to see IDs")
	}

	return func() tea.Msg {
		return FactForgottenMsg{ID: id, Error: store.Forget(id)}
	}
}

// HandleVault searches or reads the notes vault.
func HandleVault(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Vault == nil {
		return errCmd("Vault unavailable", "no vault configured", "Set vault.path in your config")
	}
	v := ctx.Vault

	action := "recent"
	rest := ""
	if len(args) > 0 {
		action = strings.ToLower(args[0])
		rest = strings.Join(args[1:], " ")
	}

	switch action {
	case "search":
		if rest == "" {
			return errCmd("Empty query", "provide search terms", "Usage: /vault search <query>")
		}
		return func() tea.Msg {
			notes, err := v.Search(rest, 10)
			return VaultSearchMsg{Query: rest, Notes: notes, Error: err}
		}

	case "read", "open":
		if rest == "" {
			return errCmd("Missing note name", "which note should be read?", "Usage: /vault read <note>")
		}
		return func() tea.Msg {
			content, err := v.Read(rest)
			return VaultNoteMsg{Name: rest, Content: content, Error: err}
		}

	case "daily":
		return func() tea.Msg {
			return SystemMessageMsg{Content: "Today's daily note: " + v.Daily()}
		}

	case "tags":
		return func() tea.Msg {
			tags := v.Tags()
			if len(tags) == 0 {
				return SystemMessageMsg{Content: "No tags found in the vault."}
			}
			var sb strings.Builder
			sb.WriteString("Vault tags:\n")
			for _, tc := range tags {
				fmt.Fprintf(&sb, "  #%s (%d)\n", tc.Tag, tc.Count)
			}
			return SystemMessageMsg{Content: strings.TrimRight(sb.String(), "\n")}
		}

	case "recent":
		return func() tea.Msg {
			return VaultSearchMsg{Notes: v.Recent(10)}
		}

	default:
		// Bare "/vault foo bar" is shorthand for a search.
		query := strings.Join(args, " ")
		return func() tea.Msg {
			notes, err := v.Search(query, 10)
			return VaultSearchMsg{Query: query, Notes: notes, Error: err}
		}
	}
}

// =============================================================================
// TOOLS AND SETTINGS
// =============================================================================

// HandleTools lists the registered tools.
func HandleTools(ctx *Context, args []string) tea.Cmd {
	enabled := ctx != nil && ctx.Tools != nil
	policy := ""
	var infos []ToolInfo

	if ctx != nil && ctx.Config != nil {
		policy = ctx.Config.Tools.ConfirmMode
	}
	if enabled {
		for _, def := range ctx.Tools.All() {
			infos = append(infos, ToolInfo{
				Name:        def.Name,
				Description: def.Description,
				Confirm:     def.RequiresConfirm,
			})
		}
	}

	return func() tea.Msg {
		return ShowToolsMsg{Tools: infos, Enabled: enabled, Policy: policy}
	}
}

// HandleConfig shows or edits configuration values.
func HandleConfig(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Config == nil {
		return errCmd("Config unavailable", "no configuration loaded", "")
	}
	cfg := ctx.Config

	switch len(args) {
	case 0:
		return func() tea.Msg {
			return SystemMessageMsg{Content: cfg.String()}
		}

	case 1:
		key := args[0]
		return func() tea.Msg {
			val, err := cfg.Get(key)
			if err != nil {
				return ErrorMsg{Title: "Unknown config key", Message: err.Error(), Tip: "Run /config to list settings"}
			}
			return SystemMessageMsg{Content: fmt.Sprintf("%s = %v", key, val)}
		}

	default:
		key := args[0]
		value := strings.Join(args[1:], " ")
		return func() tea.Msg {
			if err := cfg.Set(key, value); err != nil {
				return ConfigChangedMsg{Key: key, Value: value, Error: err}
			}
			if err := config.Save(cfg); err != nil {
				return ConfigChangedMsg{Key: key, Value: value, Error: err}
			}
			return ConfigChangedMsg{Key: key, Value: value}
		}
	}
}

// HandleStats shows token usage statistics.
func HandleStats(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Usage == nil {
		return errCmd("Stats unavailable", "usage tracking is not configured", "")
	}
	tracker := ctx.Usage

	view := "session"
	if len(args) > 0 {
		view = strings.ToLower(args[0])
	}

	return func() tea.Msg {
		return ShowStatsMsg{
			View:     view,
			Session:  tracker.Session(),
			Lifetime: tracker.Lifetime(),
			Recent:   tracker.RecentQueries(10),
		}
	}
}

// HandleStatus shows the status panel.
func HandleStatus(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		return ShowStatusMsg{}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// errCmd wraps an ErrorMsg in a command.
func errCmd(title, message, tip string) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Title: title, Message: message, Tip: tip}
	}
}

// splitTrailingTags separates trailing #tag tokens from the fact text.
// Tags only count at the end: "#prod is down #infra" keeps "#prod is
// down" as content and takes "infra" as a tag.
func splitTrailingTags(args []string) (string, []string) {
	end := len(args)
	for end > 0 && strings.HasPrefix(args[end-1], "#") && len(args[end-1]) > 1 {
		end--
	}

	var tags []string
	for _, t := range args[end:] {
		tags = append(tags, strings.TrimPrefix(t, "#"))
	}
	return strings.Join(args[:end], " "), tags
}
