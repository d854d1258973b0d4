// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the bubbletea chat view for the golem TUI.
package chat

import (
	stdctx "context"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/commands"
	"github.com/jeranaias/golem-tui/internal/config"
	golemctx "github.com/jeranaias/golem-tui/internal/context"
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/session"
	"github.com/jeranaias/golem-tui/internal/tools"
	"github.com/jeranaias/golem-tui/internal/ui/components"
	"github.com/jeranaias/golem-tui/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// Deps bundles the services the chat view operates on. Everything past
// Config and Session is optional; nil services degrade the related
// commands to error notices.
type Deps struct {
	Config  *config.Config
	Client  *hive.Client
	Session *session.Manager
	CmdCtx  *commands.Context
	Tools   *tools.Registry
}

// Model is the bubbletea model for the chat view.
type Model struct {
	// Services
	cfg     *config.Config
	client  *hive.Client
	session *session.Manager
	cmdCtx  *commands.Context
	tools   *tools.Registry

	// Command system
	registry   *commands.Registry
	parser     *commands.Parser
	completer  *commands.Completer
	completion *commands.CompletionState

	// Components
	theme     *styles.Theme
	viewport  viewport.Model
	textarea  textarea.Model
	spinner   components.Spinner
	popup     *components.CompletionPopup
	statusBar components.StatusBar

	// Context expansion for @file / @clip refs
	expander *golemctx.Expander

	// Streaming state
	streaming    bool
	streamCh     chan tea.Msg
	cancelStream stdctx.CancelFunc
	streamStart  time.Time

	// Tool loop state
	pendingCalls []tools.Call
	toolResults  []string
	toolSteps    int
	awaitConfirm bool

	// Display state
	showReasoning bool
	ghost         string
	lastAssistant string
	notice        string // Transient system notice above the input
	errTitle      string
	errMessage    string
	errTip        string
	connected     bool

	width  int
	height int
	ready  bool
}

// New creates the chat model.
func New(deps Deps) *Model {
	theme := styles.NewTheme()
	registry := commands.NewRegistry()

	completer := commands.NewCompleter(registry)
	wireCompleter(completer, deps)

	ta := textarea.New()
	ta.Placeholder = "Message golem (/help for commands, @file: to attach)"
	ta.Prompt = "│ "
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(1)
	ta.Focus()

	showReasoning := false
	if deps.Config != nil {
		showReasoning = deps.Config.UI.ShowReasoning
	}

	return &Model{
		cfg:           deps.Config,
		client:        deps.Client,
		session:       deps.Session,
		cmdCtx:        deps.CmdCtx,
		tools:         deps.Tools,
		registry:      registry,
		parser:        commands.NewParser(registry),
		completer:     completer,
		completion:    commands.NewCompletionState(),
		theme:         theme,
		textarea:      ta,
		spinner:       components.NewSpinner(theme),
		popup:         components.NewCompletionPopup(theme),
		statusBar:     components.NewStatusBar(theme),
		expander:      golemctx.NewExpander(""),
		showReasoning: showReasoning,
	}
}

// wireCompleter points the completer's dynamic sources at live services.
func wireCompleter(c *commands.Completer, deps Deps) {
	if deps.CmdCtx == nil {
		return
	}

	if deps.CmdCtx.Storage != nil {
		store := deps.CmdCtx.Storage
		c.SessionsFn = func() []commands.SessionInfo {
			metas, err := store.List()
			if err != nil {
				return nil
			}
			infos := make([]commands.SessionInfo, 0, len(metas))
			for _, meta := range metas {
				infos = append(infos, commands.SessionInfo{
					ID:    meta.ID,
					Title: meta.Summary,
					Model: meta.Model,
				})
			}
			return infos
		}
	}

	if deps.CmdCtx.Vault != nil {
		v := deps.CmdCtx.Vault
		c.NotesFn = func() []string {
			notes := v.Notes()
			names := make([]string, 0, len(notes))
			for _, n := range notes {
				names = append(names, n.Name)
			}
			return names
		}
	}

	if deps.Tools != nil {
		reg := deps.Tools
		c.ToolsFn = func() []string {
			defs := reg.All()
			names := make([]string, 0, len(defs))
			for _, d := range defs {
				names = append(names, d.Name)
			}
			return names
		}
	}
}

// Init starts the background probes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		checkConnection(m.client),
		session.TickCmd(),
		textarea.Blink,
	)
}

// limits derives prune limits from config.
func (m *Model) limits() golemctx.Limits {
	if m.cfg == nil {
		return golemctx.DefaultLimits()
	}
	return golemctx.Limits{
		MaxHistoryChars:   m.cfg.Context.MaxHistoryChars,
		MaxMessageChars:   m.cfg.Context.MaxMessageChars,
		MinRecentMessages: m.cfg.Context.MinRecentMessages,
	}
}

// checkConnection pings the hive once at startup.
func checkConnection(client *hive.Client) tea.Cmd {
	return func() tea.Msg {
		if client == nil || !client.IsConfigured() {
			return connCheckMsg{ok: false}
		}
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 3*time.Second)
		defer cancel()
		err := client.Ping(ctx)
		return connCheckMsg{ok: err == nil, err: err}
	}
}
