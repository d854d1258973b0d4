// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	stdctx "context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/commands"
	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/session"
	"github.com/jeranaias/golem-tui/internal/suggest"
	"github.com/jeranaias/golem-tui/internal/tools"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	// Stream lifecycle
	case streamDeltaMsg:
		m.session.Conversation().AppendToLast(msg.text)
		m.spinner.Stop()
		m.refreshViewport()
		return m, listenStream(m.streamCh)

	case streamDoneMsg:
		m.finishStream(msg)
		m.refreshViewport()
		return m, m.maybeRunTools()

	case streamErrMsg:
		m.session.Conversation().InterruptLast()
		m.streaming = false
		m.streamCh = nil
		m.cancelStream = nil
		m.spinner.Stop()
		m.setError("Stream failed", msg.err.Error(), "Check the hive with /status")
		m.refreshViewport()
		return m, nil

	// Tool loop
	case toolResultMsg:
		return m.handleToolResult(msg)

	// Session upkeep
	case session.TickMsg:
		var cmds []tea.Cmd
		if cmd := m.session.HandleTick(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, session.TickCmd())
		return m, tea.Batch(cmds...)

	case connCheckMsg:
		m.connected = msg.ok
		if !msg.ok && msg.err != nil {
			m.setError("Hive unreachable", msg.err.Error(), "Check hive.url with /config")
		}
		return m, nil
	}

	// Command system messages
	if mdl, cmd, handled := m.handleCommandMsg(msg); handled {
		return mdl, cmd
	}

	// Everything else (spinner ticks, cursor blinks) goes to components
	return m.updateComponents(msg)
}

func (m *Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	inputHeight := 3 // Bordered textarea
	statusHeight := 1
	vpHeight := msg.Height - inputHeight - statusHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = newViewport(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}

	m.textarea.SetWidth(msg.Width - 2)
	m.statusBar.Width = msg.Width
	m.popup.SetWidth(msg.Width - 4)
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Tool confirmation intercepts everything
	if m.awaitConfirm {
		return m.handleConfirmKey(msg)
	}

	switch msg.String() {
	case "ctrl+c":
		m.interruptStream()
		return m, tea.Quit

	case "esc":
		if m.streaming {
			// Partial content is preserved; finishStream handles the rest
			m.interruptStream()
			return m, nil
		}
		if m.completion.Visible {
			m.completion.Clear()
			m.popup.SetCompletions(nil)
			return m, nil
		}
		m.clearError()
		m.notice = ""
		return m, nil

	case "enter":
		if m.completion.Visible {
			return m.acceptCompletion()
		}
		return m.submit()

	case "tab":
		return m.handleTab()

	case "shift+tab":
		if m.completion.Visible {
			m.completion.Prev()
			m.popup.SetSelected(m.completion.Selected)
			return m, nil
		}

	case "down":
		if m.completion.Visible {
			m.completion.Next()
			m.popup.SetSelected(m.completion.Selected)
			return m, nil
		}

	case "up":
		if m.completion.Visible {
			m.completion.Prev()
			m.popup.SetSelected(m.completion.Selected)
			return m, nil
		}

	case "right":
		// Accept the ghost suggestion when the cursor sits at the end
		if m.ghost != "" && !m.completion.Visible {
			m.textarea.SetValue(m.textarea.Value() + m.ghost)
			m.textarea.CursorEnd()
			m.ghost = ""
			return m, nil
		}

	case "ctrl+r":
		m.showReasoning = !m.showReasoning
		m.refreshViewport()
		return m, nil

	case "ctrl+j":
		m.textarea.SetValue(m.textarea.Value() + "\n")
		return m, nil

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	// Regular typing
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.afterInputChange()
	return m, cmd
}

// afterInputChange refreshes completion and ghost state for the new input.
func (m *Model) afterInputChange() {
	input := m.textarea.Value()

	if commands.IsCommand(input) || strings.Contains(input, "@") {
		comps := m.completer.Complete(input, len(input))
		m.completion.Update(input, comps)
		m.popup.SetCompletions(comps)
		m.popup.SetSelected(m.completion.Selected)
	} else {
		m.completion.Clear()
		m.popup.SetCompletions(nil)
	}

	if input != "" && !commands.IsCommand(input) {
		m.ghost = suggest.Ghost(input, m.lastAssistant)
	} else {
		m.ghost = ""
	}
}

func (m *Model) handleTab() (tea.Model, tea.Cmd) {
	if m.completion.Visible {
		m.completion.Next()
		m.popup.SetSelected(m.completion.Selected)
		return m, nil
	}
	if m.ghost != "" {
		m.textarea.SetValue(m.textarea.Value() + m.ghost)
		m.textarea.CursorEnd()
		m.ghost = ""
		return m, nil
	}
	return m, nil
}

func (m *Model) acceptCompletion() (tea.Model, tea.Cmd) {
	value := m.completion.Accept()
	if value == "" {
		return m, nil
	}

	input := m.textarea.Value()
	if idx := strings.LastIndexAny(input, " \t"); idx >= 0 {
		input = input[:idx+1] + value
	} else {
		input = value
	}
	m.textarea.SetValue(input + " ")
	m.textarea.CursorEnd()
	m.completion.Clear()
	m.popup.SetCompletions(nil)
	return m, nil
}

// =============================================================================
// SUBMIT
// =============================================================================

func (m *Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" || m.streaming {
		return m, nil
	}

	m.textarea.Reset()
	m.ghost = ""
	m.completion.Clear()
	m.popup.SetCompletions(nil)
	m.clearError()
	m.session.RecordActivity()

	if commands.IsCommand(input) {
		return m.execCommand(input)
	}

	if m.client == nil || !m.client.IsConfigured() {
		m.setError("No hive configured", "Set the server URL first.", "/config hive.url http://host:8090/v1")
		return m, nil
	}

	// Expand @file: and @clip references before the prompt goes on the wire
	expanded := input
	if m.expander != nil {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), 5*time.Second)
		expanded, _ = m.expander.ExpandRefs(ctx, input)
		cancel()
	}

	m.session.Conversation().AddUserMessage(expanded)
	m.session.MarkDirty()
	m.toolSteps = 0
	m.refreshViewport()

	return m, m.startStream()
}

func (m *Model) execCommand(input string) (tea.Model, tea.Cmd) {
	result := m.parser.Parse(input)
	if result.Command == nil {
		m.setError("Unknown command", result.CommandName, "Type /help for the command list")
		return m, nil
	}

	if err := commands.ValidateArgs(result.Command, result.Args); err != nil {
		m.setError("Invalid arguments", err.Error(), result.Command.Usage)
		return m, nil
	}

	return m, result.Command.Handler(m.cmdCtx, result.Args)
}

// =============================================================================
// TOOL LOOP
// =============================================================================

// maybeRunTools inspects the settled assistant message for tool calls and
// starts the execution round. Rounds are bounded by config.
func (m *Model) maybeRunTools() tea.Cmd {
	if m.tools == nil || m.cfg == nil || !m.cfg.Tools.Enabled {
		return nil
	}

	last := m.session.Conversation().GetLastAssistantMessage()
	if last == nil {
		return nil
	}

	maxSteps := m.cfg.Tools.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 8
	}
	if m.toolSteps >= maxSteps {
		m.notice = "Tool step limit reached"
		return nil
	}

	calls, _ := tools.ParseCalls(model.StripThink(last.Content))
	if len(calls) == 0 {
		return nil
	}

	m.toolSteps++
	m.pendingCalls = calls
	return m.nextToolCall()
}

// nextToolCall executes the next queued call, or resumes the stream with
// the collected results when the queue is empty.
func (m *Model) nextToolCall() tea.Cmd {
	if len(m.pendingCalls) == 0 {
		if len(m.toolResults) == 0 {
			return nil
		}
		m.refreshViewport()
		return m.startStream()
	}

	call := m.pendingCalls[0]

	policy := "smart"
	if m.cfg != nil && m.cfg.Tools.ConfirmMode != "" {
		policy = m.cfg.Tools.ConfirmMode
	}
	if m.tools.NeedsConfirm(call, policy) {
		m.awaitConfirm = true
		return nil
	}

	return m.execToolCall(call)
}

func (m *Model) execToolCall(call tools.Call) tea.Cmd {
	m.pendingCalls = m.pendingCalls[1:]

	timeout := 30 * time.Second
	if m.cfg != nil && m.cfg.Tools.ShellTimeoutSecs > 0 {
		timeout = time.Duration(m.cfg.Tools.ShellTimeoutSecs) * time.Second
	}

	reg := m.tools
	return func() tea.Msg {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), timeout)
		defer cancel()

		result, err := reg.Execute(ctx, call)
		return toolResultMsg{call: call, result: result, err: err}
	}
}

func (m *Model) handleToolResult(msg toolResultMsg) (tea.Model, tea.Cmd) {
	conv := m.session.Conversation()

	if msg.err != nil {
		conv.AddToolMessage(msg.call.Name, msg.err.Error(), false)
		m.toolResults = append(m.toolResults,
			fmt.Sprintf("%s failed: %s", msg.call.Name, msg.err.Error()))
	} else {
		conv.AddToolMessage(msg.call.Name, msg.result, true)
		m.toolResults = append(m.toolResults,
			fmt.Sprintf("%s:\n%s", msg.call.Name, msg.result))
	}
	m.session.MarkDirty()
	m.refreshViewport()

	return m, m.nextToolCall()
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.pendingCalls) == 0 {
		m.awaitConfirm = false
		return m, nil
	}
	call := m.pendingCalls[0]

	switch msg.String() {
	case "y", "Y", "enter":
		m.awaitConfirm = false
		return m, m.execToolCall(call)

	case "n", "N", "esc", "ctrl+c":
		m.awaitConfirm = false
		m.pendingCalls = m.pendingCalls[1:]
		m.session.Conversation().AddToolMessage(call.Name, "declined by user", false)
		m.toolResults = append(m.toolResults, call.Name+": declined by user")
		m.refreshViewport()
		return m, m.nextToolCall()
	}
	return m, nil
}

// =============================================================================
// COMPONENT PASSTHROUGH
// =============================================================================

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.spinner, cmd = m.spinner.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	m.textarea, cmd = m.textarea.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// ERROR STATE
// =============================================================================

func (m *Model) setError(title, message, tip string) {
	m.errTitle = title
	m.errMessage = message
	m.errTip = tip
}

func (m *Model) clearError() {
	m.errTitle = ""
	m.errMessage = ""
	m.errTip = ""
}
