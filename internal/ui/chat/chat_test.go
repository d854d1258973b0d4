// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/commands"
	"github.com/jeranaias/golem-tui/internal/config"
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/session"
	"github.com/jeranaias/golem-tui/internal/tools"
)

func newTestModel(t *testing.T) *Model {
	t.Helper()

	cfg := config.Default()
	client := hive.NewClient("http://127.0.0.1:1/v1", "").WithModel("test-model")
	sess := session.New(nil, session.Config{})
	cmdCtx := commands.NewContext(cfg, client, nil, sess)

	m := New(Deps{
		Config:  cfg,
		Client:  client,
		Session: sess,
		CmdCtx:  cmdCtx,
	})

	// Simulate the initial window size so the viewport exists
	mdl, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return mdl.(*Model)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestNewModelDefaults(t *testing.T) {
	m := newTestModel(t)

	if m.streaming {
		t.Error("fresh model should not be streaming")
	}
	if !m.showReasoning {
		t.Error("default config shows reasoning")
	}
	if !m.ready {
		t.Error("model should be ready after window size")
	}
}

func TestResizeSizesViewport(t *testing.T) {
	m := newTestModel(t)

	mdl, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = mdl.(*Model)

	if m.viewport.Width != 80 {
		t.Errorf("viewport width = %d, want 80", m.viewport.Width)
	}
	if m.viewport.Height >= 24 {
		t.Error("viewport should leave room for input and status bar")
	}
}

func TestInitReturnsCmd(t *testing.T) {
	m := newTestModel(t)
	if m.Init() == nil {
		t.Error("Init should return startup commands")
	}
}

// =============================================================================
// STREAMING
// =============================================================================

func TestStreamDeltaAppendsToLast(t *testing.T) {
	m := newTestModel(t)
	conv := m.session.Conversation()
	conv.AddUserMessage("hi")
	conv.AddAssistantMessage()

	m.streaming = true
	m.streamCh = make(chan tea.Msg, 1)

	mdl, cmd := m.Update(streamDeltaMsg{text: "Hello"})
	m = mdl.(*Model)

	if got := conv.GetLastAssistantMessage().Content; got != "Hello" {
		t.Errorf("content = %q, want %q", got, "Hello")
	}
	if cmd == nil {
		t.Error("delta should re-issue the channel listener")
	}

	m.Update(streamDeltaMsg{text: " world"})
	if got := conv.GetLastAssistantMessage().Content; got != "Hello world" {
		t.Errorf("content = %q, want %q", got, "Hello world")
	}
}

func TestStreamDoneFinalizes(t *testing.T) {
	m := newTestModel(t)
	conv := m.session.Conversation()
	conv.AddUserMessage("hi")
	conv.AddAssistantMessage()
	conv.AppendToLast("<think>pondering</think>answer")

	m.streaming = true
	m.streamStart = time.Now().Add(-2 * time.Second)

	mdl, _ := m.Update(streamDoneMsg{stats: hive.StreamStats{
		FirstTokenTime: 500 * time.Millisecond,
		Usage:          &hive.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}})
	m = mdl.(*Model)

	if m.streaming {
		t.Error("streaming flag should clear")
	}
	last := conv.GetLastAssistantMessage()
	if last.IsStreaming {
		t.Error("message should be finalized")
	}
	if m.lastAssistant != "answer" {
		t.Errorf("lastAssistant = %q, want reasoning stripped", m.lastAssistant)
	}
	if last.TotalDuration < time.Second {
		t.Errorf("TotalDuration = %v, want at least the stream elapsed time", last.TotalDuration)
	}
}

func TestStreamDoneInterruptedPreservesPartial(t *testing.T) {
	m := newTestModel(t)
	conv := m.session.Conversation()
	conv.AddUserMessage("hi")
	conv.AddAssistantMessage()
	conv.AppendToLast("partial resp")

	m.streaming = true
	m.streamStart = time.Now()

	mdl, _ := m.Update(streamDoneMsg{interrupted: true})
	m = mdl.(*Model)

	last := conv.GetLastAssistantMessage()
	if !last.Interrupted {
		t.Error("message should be marked interrupted")
	}
	if last.Content != "partial resp" {
		t.Errorf("partial content lost: %q", last.Content)
	}
}

func TestStreamErrShowsError(t *testing.T) {
	m := newTestModel(t)
	conv := m.session.Conversation()
	conv.AddUserMessage("hi")
	conv.AddAssistantMessage()
	m.streaming = true

	mdl, _ := m.Update(streamErrMsg{err: errFake("boom")})
	m = mdl.(*Model)

	if m.streaming {
		t.Error("streaming flag should clear on error")
	}
	if m.errTitle == "" {
		t.Error("error state should be set")
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }

// =============================================================================
// INPUT
// =============================================================================

func TestSlashInputShowsCompletions(t *testing.T) {
	m := newTestModel(t)
	m.textarea.SetValue("/he")
	m.afterInputChange()

	if !m.completion.Visible {
		t.Error("slash prefix should surface completions")
	}
	found := false
	for _, c := range m.completion.Completions {
		if c.Value == "/help" {
			found = true
		}
	}
	if !found {
		t.Error("/help missing from completions")
	}
}

func TestPlainInputClearsCompletions(t *testing.T) {
	m := newTestModel(t)
	m.textarea.SetValue("/he")
	m.afterInputChange()
	m.textarea.SetValue("hello")
	m.afterInputChange()

	if m.completion.Visible {
		t.Error("plain text should not show command completions")
	}
}

func TestSubmitEmptyIsNoop(t *testing.T) {
	m := newTestModel(t)
	mdl, cmd := m.submit()
	m = mdl.(*Model)

	if cmd != nil || m.streaming {
		t.Error("empty submit should do nothing")
	}
}

func TestSubmitWhileStreamingIsNoop(t *testing.T) {
	m := newTestModel(t)
	m.streaming = true
	m.textarea.SetValue("another question")

	_, cmd := m.submit()
	if cmd != nil {
		t.Error("submit during a stream should be ignored")
	}
}

func TestUnknownCommandSetsError(t *testing.T) {
	m := newTestModel(t)
	m.textarea.SetValue("/bogus")

	mdl, _ := m.submit()
	m = mdl.(*Model)

	if m.errTitle != "Unknown command" {
		t.Errorf("errTitle = %q", m.errTitle)
	}
}

// =============================================================================
// COMMAND MESSAGES
// =============================================================================

func TestClearConversationMsg(t *testing.T) {
	m := newTestModel(t)
	conv := m.session.Conversation()
	conv.AddUserMessage("hi")
	conv.AddAssistantMessage()
	conv.AppendToLast("yo")

	mdl, _ := m.Update(commands.ClearConversationMsg{})
	m = mdl.(*Model)

	if !m.session.Conversation().IsEmpty() {
		t.Error("conversation should be replaced with a fresh one")
	}
}

func TestReasoningToggledMsg(t *testing.T) {
	m := newTestModel(t)

	mdl, _ := m.Update(commands.ReasoningToggledMsg{Visible: false})
	m = mdl.(*Model)

	if m.showReasoning {
		t.Error("reasoning should be hidden")
	}
}

func TestModelSwitchMsg(t *testing.T) {
	m := newTestModel(t)

	mdl, _ := m.Update(commands.ModelSwitchMsg{Model: "qwen3-coder"})
	m = mdl.(*Model)

	if m.client.GetModel() != "qwen3-coder" {
		t.Errorf("model = %q", m.client.GetModel())
	}
	if m.cfg.Hive.Model != "qwen3-coder" {
		t.Error("config should track the switch")
	}
}

func TestErrorMsgSetsErrorState(t *testing.T) {
	m := newTestModel(t)

	mdl, _ := m.Update(commands.ErrorMsg{Title: "Nope", Message: "bad", Tip: "try /help"})
	m = mdl.(*Model)

	if m.errTitle != "Nope" || m.errTip != "try /help" {
		t.Error("error fields not set")
	}
}

func TestSystemMessageMsgAddsToTranscript(t *testing.T) {
	m := newTestModel(t)

	mdl, _ := m.Update(commands.SystemMessageMsg{Content: "notice text"})
	m = mdl.(*Model)

	last := m.session.Conversation().GetLastMessage()
	if last == nil || last.Role != model.RoleSystem || last.Content != "notice text" {
		t.Error("system message missing from transcript")
	}
}

// =============================================================================
// RENDERING
// =============================================================================

func TestViewRendersWelcomeWhenEmpty(t *testing.T) {
	m := newTestModel(t)

	got := m.View()
	if !strings.Contains(got, "golem") {
		t.Error("welcome screen missing")
	}
}

func TestTranscriptHidesReasoningWhenCollapsed(t *testing.T) {
	m := newTestModel(t)
	m.showReasoning = false
	conv := m.session.Conversation()
	conv.AddUserMessage("q")
	conv.AddAssistantMessage()
	conv.AppendToLast("<think>secret chain</think>visible answer")
	conv.FinalizeLast(nil)

	got := m.renderTranscript()
	if strings.Contains(got, "secret chain") {
		t.Error("hidden reasoning leaked into transcript")
	}
	if !strings.Contains(got, "visible answer") {
		t.Error("answer missing")
	}
	if !strings.Contains(got, "reasoning hidden") {
		t.Error("collapsed hint missing")
	}
}

func TestTranscriptShowsReasoningWhenExpanded(t *testing.T) {
	m := newTestModel(t)
	m.showReasoning = true
	conv := m.session.Conversation()
	conv.AddUserMessage("q")
	conv.AddAssistantMessage()
	conv.AppendToLast("<think>the chain</think>answer")
	conv.FinalizeLast(nil)

	if got := m.renderTranscript(); !strings.Contains(got, "the chain") {
		t.Error("expanded reasoning missing")
	}
}

func TestFormatMeta(t *testing.T) {
	msg := &model.Message{
		TotalDuration: 2 * time.Second,
		TokenCount:    42,
		TokensPerSec:  21.0,
	}
	got := formatMeta(msg)
	for _, want := range []string{"2s", "42 tok", "21.0 tok/s"} {
		if !strings.Contains(got, want) {
			t.Errorf("meta %q missing %q", got, want)
		}
	}

	if formatMeta(&model.Message{}) != "" {
		t.Error("empty stats should render nothing")
	}
}

// =============================================================================
// PANELS
// =============================================================================

func TestRenderSessionListEmpty(t *testing.T) {
	got := renderSessionList(nil)
	if !strings.Contains(got, "/save") {
		t.Error("empty list should point at /save")
	}
}

func TestRenderModelListMarksCurrent(t *testing.T) {
	got := renderModelList([]string{"a", "b"}, "b")
	if !strings.Contains(got, "● b") {
		t.Errorf("current model not marked: %q", got)
	}
}

func TestRenderHelpListsCommands(t *testing.T) {
	m := newTestModel(t)
	got := m.renderHelp("")

	for _, want := range []string{"/help", "/save", "/model"} {
		if !strings.Contains(got, want) {
			t.Errorf("help missing %s", want)
		}
	}
}

// =============================================================================
// TOOL LOOP
// =============================================================================

func TestMaybeRunToolsDisabled(t *testing.T) {
	m := newTestModel(t)
	m.cfg.Tools.Enabled = false
	conv := m.session.Conversation()
	conv.AddUserMessage("q")
	conv.AddAssistantMessage()
	conv.AppendToLast(`<tool_call>{"name":"read_file","arguments":{"path":"x"}}</tool_call>`)
	conv.FinalizeLast(nil)

	if cmd := m.maybeRunTools(); cmd != nil {
		t.Error("disabled tools should never run")
	}
}

func TestMaybeRunToolsRespectsStepLimit(t *testing.T) {
	m := newTestModel(t)
	m.cfg.Tools.Enabled = true
	m.tools = tools.NewRegistry(tools.Options{})
	m.toolSteps = m.cfg.Tools.MaxSteps
	conv := m.session.Conversation()
	conv.AddUserMessage("q")
	conv.AddAssistantMessage()
	conv.AppendToLast(`<tool_call>{"name":"read_file","arguments":{"path":"x"}}</tool_call>`)
	conv.FinalizeLast(nil)

	if cmd := m.maybeRunTools(); cmd != nil {
		t.Error("step limit should halt the loop")
	}
	if m.notice == "" {
		t.Error("step limit should surface a notice")
	}
}

func TestRenderStatusBarSyncsContext(t *testing.T) {
	m := newTestModel(t)
	conv := m.session.Conversation()
	conv.SetMaxTokens(1000)
	conv.AddUserMessage(strings.Repeat("x", 1750)) // ~500 tokens

	out := m.renderStatusBar()
	if out == "" {
		t.Fatal("status bar should render")
	}
	if got, want := m.statusBar.ContextPct, conv.GetContextPercent(); got != want {
		t.Errorf("ContextPct = %v, want %v", got, want)
	}
	if m.statusBar.ContextPct <= 0 {
		t.Error("context usage should be nonzero after a long message")
	}
	if !strings.Contains(out, "ctx") {
		t.Errorf("status bar missing context segment: %q", out)
	}
}
