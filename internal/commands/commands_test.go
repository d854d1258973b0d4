// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/config"
	"github.com/jeranaias/golem-tui/internal/session"
	"github.com/jeranaias/golem-tui/internal/storage"
)

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/load my-session", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
		{"/", true},
	}

	for _, tc := range tests {
		got := IsCommand(tc.input)
		if got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestExtractCommandName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/help", "/help"},
		{"/load abc123", "/load"},
		{"/save my-session", "/save"},
		{"  /help  ", "/help"},
		{"hello", ""},
		{"/", "/"},
	}

	for _, tc := range tests {
		got := ExtractCommandName(tc.input)
		if got != tc.want {
			t.Errorf("ExtractCommandName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestGetPartialCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/hel", "/hel"},
		{"/help", "/help"},
		{"/load ", ""},    // Space after command means complete
		{"/load abc", ""}, // Has arguments
		{"hello", ""},
	}

	for _, tc := range tests {
		got := GetPartialCommand(tc.input)
		if got != tc.want {
			t.Errorf("GetPartialCommand(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"/help", []string{"/help"}},
		{"/load abc123", []string{"/load", "abc123"}},
		{`/save "my session"`, []string{"/save", "my session"}},
		{`/save 'my session'`, []string{"/save", "my session"}},
		{"/config hive.model qwen3", []string{"/config", "hive.model", "qwen3"}},
		{`/export md "file with spaces.md"`, []string{"/export", "md", "file with spaces.md"}},
	}

	for _, tc := range tests {
		got := ParseArgs(tc.input)
		if len(got) != len(tc.want) {
			t.Errorf("ParseArgs(%q) = %v, want %v", tc.input, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseArgs(%q)[%d] = %q, want %q", tc.input, i, got[i], tc.want[i])
			}
		}
	}
}

func TestParserResolvesAliases(t *testing.T) {
	p := NewParser(NewRegistry())

	for alias, want := range map[string]string{
		"/h":     "/help",
		"/q":     "/quit",
		"/l":     "/load",
		"/think": "/reason",
		"/usage": "/stats",
	} {
		result := p.Parse(alias)
		if !result.IsCommand {
			t.Errorf("Parse(%q) not recognized as command", alias)
			continue
		}
		if result.Command == nil || result.Command.Name != want {
			t.Errorf("Parse(%q) resolved to %v, want %s", alias, result.Command, want)
		}
	}
}

func TestParseUnknownCommand(t *testing.T) {
	p := NewParser(NewRegistry())

	result := p.Parse("/definitely-not-a-command")
	if !result.IsCommand {
		t.Fatal("slash input must be flagged as a command")
	}
	if result.Command != nil {
		t.Errorf("unknown command resolved to %s", result.Command.Name)
	}
}

func TestParseRawArgs(t *testing.T) {
	p := NewParser(NewRegistry())

	result := p.Parse("/remember the deploy key lives in 1password #infra")
	if result.RawArgs != "the deploy key lives in 1password #infra" {
		t.Errorf("RawArgs = %q", result.RawArgs)
	}
	if len(result.Args) != 7 {
		t.Errorf("Args = %v", result.Args)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistryContainsCoreCommands(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{
		"/help", "/quit", "/new", "/clear", "/save", "/load", "/sessions",
		"/export", "/model", "/models", "/reason", "/remember", "/recall",
		"/facts", "/forget", "/vault", "/tools", "/config", "/stats", "/status",
	} {
		if r.Get(name) == nil {
			t.Errorf("registry missing %s", name)
		}
	}
}

func TestRegistryByCategory(t *testing.T) {
	r := NewRegistry()

	byCat := r.ByCategory()
	for _, cat := range []string{"Navigation", "Conversation", "Model", "Memory", "Tools", "Settings"} {
		if len(byCat[cat]) == 0 {
			t.Errorf("category %q has no commands", cat)
		}
	}
}

func TestValidateArgs(t *testing.T) {
	r := NewRegistry()

	load := r.Get("/load")
	if err := ValidateArgs(load, nil); err == nil {
		t.Error("missing required argument should fail validation")
	}
	if err := ValidateArgs(load, []string{"abc123"}); err != nil {
		t.Errorf("valid args rejected: %v", err)
	}

	reason := r.Get("/reason")
	if err := ValidateArgs(reason, []string{"sideways"}); err == nil {
		t.Error("invalid enum value should fail validation")
	}
	if err := ValidateArgs(reason, []string{"ON"}); err != nil {
		t.Errorf("enum values must match case-insensitively: %v", err)
	}
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

// run executes a handler command and returns the emitted message.
func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("handler returned nil command")
	}
	return cmd()
}

func testContext(t *testing.T) *Context {
	t.Helper()
	store, err := storage.NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sess := session.New(store, session.DefaultConfig())
	return NewContext(config.Default(), nil, store, sess)
}

func TestHandleHelpTopic(t *testing.T) {
	msg := run(t, HandleHelp(nil, []string{"Memory"}))
	help, ok := msg.(ShowHelpMsg)
	if !ok {
		t.Fatalf("got %T, want ShowHelpMsg", msg)
	}
	if help.Topic != "memory" {
		t.Errorf("topic = %q, want lowercased", help.Topic)
	}
}

func TestHandleSaveEmptyConversation(t *testing.T) {
	ctx := testContext(t)

	msg := run(t, HandleSave(ctx, nil))
	save, ok := msg.(SaveCompleteMsg)
	if !ok {
		t.Fatalf("got %T, want SaveCompleteMsg", msg)
	}
	if save.Error == nil {
		t.Error("saving an empty conversation should report an error")
	}
}

func TestHandleSaveAndLoadRoundTrip(t *testing.T) {
	ctx := testContext(t)
	ctx.Session.Conversation().AddUserMessage("what is a golem?")

	msg := run(t, HandleSave(ctx, []string{"folklore"}))
	save, ok := msg.(SaveCompleteMsg)
	if !ok || save.Error != nil {
		t.Fatalf("save failed: %v (%T)", save.Error, msg)
	}
	if save.ID == "" {
		t.Fatal("save produced no ID")
	}
	if save.Name != "folklore" {
		t.Errorf("name = %q", save.Name)
	}

	msg = run(t, HandleLoad(ctx, []string{save.ID}))
	loaded, ok := msg.(ConversationLoadedMsg)
	if !ok {
		t.Fatalf("got %T, want ConversationLoadedMsg", msg)
	}
	if loaded.Error != nil {
		t.Fatalf("load failed: %v", loaded.Error)
	}
	if loaded.Conversation.MessageCount() != 1 {
		t.Errorf("loaded %d messages, want 1", loaded.Conversation.MessageCount())
	}
}

func TestHandleLoadByIndex(t *testing.T) {
	ctx := testContext(t)
	ctx.Session.Conversation().AddUserMessage("indexed")
	run(t, HandleSave(ctx, nil))

	msg := run(t, HandleLoad(ctx, []string{"1"}))
	loaded, ok := msg.(ConversationLoadedMsg)
	if !ok {
		t.Fatalf("got %T, want ConversationLoadedMsg", msg)
	}
	if loaded.Error != nil {
		t.Errorf("load by index failed: %v", loaded.Error)
	}
}

func TestHandleLoadWithoutArgsListsSessions(t *testing.T) {
	ctx := testContext(t)

	msg := run(t, HandleLoad(ctx, nil))
	if _, ok := msg.(SessionListMsg); !ok {
		t.Errorf("got %T, want SessionListMsg", msg)
	}
}

func TestHandleSessionsEmpty(t *testing.T) {
	ctx := testContext(t)

	msg := run(t, HandleSessions(ctx, nil))
	list, ok := msg.(SessionListMsg)
	if !ok {
		t.Fatalf("got %T, want SessionListMsg", msg)
	}
	if list.Error != nil {
		t.Errorf("List() error: %v", list.Error)
	}
	if len(list.Sessions) != 0 {
		t.Errorf("fresh store has %d sessions", len(list.Sessions))
	}
}

func TestHandleExportRejectsUnknownFormat(t *testing.T) {
	ctx := testContext(t)

	msg := run(t, HandleExport(ctx, []string{"pdf"}))
	errMsg, ok := msg.(ErrorMsg)
	if !ok {
		t.Fatalf("got %T, want ErrorMsg", msg)
	}
	if !strings.Contains(errMsg.Message, "pdf") {
		t.Errorf("error should name the bad format: %q", errMsg.Message)
	}
}

func TestHandleModelWithoutArgsShowsCurrent(t *testing.T) {
	msg := run(t, HandleModel(nil, nil))
	sys, ok := msg.(SystemMessageMsg)
	if !ok {
		t.Fatalf("got %T, want SystemMessageMsg", msg)
	}
	if !strings.Contains(sys.Content, "No model selected") {
		t.Errorf("content = %q", sys.Content)
	}
}

func TestHandleModelSwitch(t *testing.T) {
	msg := run(t, HandleModel(nil, []string{"qwen3-coder"}))
	sw, ok := msg.(ModelSwitchMsg)
	if !ok {
		t.Fatalf("got %T, want ModelSwitchMsg", msg)
	}
	if sw.Model != "qwen3-coder" {
		t.Errorf("model = %q", sw.Model)
	}
}

func TestHandleReasonToggle(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // Sandbox the config.Save side effect
	ctx := &Context{Config: config.Default()}
	ctx.Config.UI.ShowReasoning = false

	msg := run(t, HandleReason(ctx, nil))
	toggled, ok := msg.(ReasoningToggledMsg)
	if !ok {
		t.Fatalf("got %T, want ReasoningToggledMsg", msg)
	}
	if !toggled.Visible {
		t.Error("toggle from off should turn reasoning on")
	}
	if !ctx.Config.UI.ShowReasoning {
		t.Error("config not updated")
	}

	msg = run(t, HandleReason(ctx, []string{"off"}))
	if msg.(ReasoningToggledMsg).Visible {
		t.Error("explicit off ignored")
	}
}

func TestHandlersWithoutServicesEmitErrors(t *testing.T) {
	handlers := map[string]tea.Cmd{
		"/save":     HandleSave(nil, nil),
		"/sessions": HandleSessions(nil, nil),
		"/models":   HandleModels(nil, nil),
		"/remember": HandleRemember(nil, []string{"x"}),
		"/recall":   HandleRecall(nil, []string{"x"}),
		"/facts":    HandleFacts(nil, nil),
		"/forget":   HandleForget(nil, []string{"1"}),
		"/vault":    HandleVault(nil, nil),
		"/stats":    HandleStats(nil, nil),
		"/config":   HandleConfig(nil, nil),
	}

	for name, cmd := range handlers {
		msg := run(t, cmd)
		if _, ok := msg.(ErrorMsg); !ok {
			t.Errorf("%s without services: got %T, want ErrorMsg", name, msg)
		}
	}
}

func TestHandleConfigGetAndSet(t *testing.T) {
	ctx := testContext(t)

	msg := run(t, HandleConfig(ctx, []string{"hive.model"}))
	if _, ok := msg.(SystemMessageMsg); !ok {
		t.Fatalf("got %T, want SystemMessageMsg", msg)
	}

	msg = run(t, HandleConfig(ctx, []string{"no.such.key"}))
	if _, ok := msg.(ErrorMsg); !ok {
		t.Errorf("unknown key: got %T, want ErrorMsg", msg)
	}
}

func TestHandleToolsDisabled(t *testing.T) {
	msg := run(t, HandleTools(&Context{Config: config.Default()}, nil))
	show, ok := msg.(ShowToolsMsg)
	if !ok {
		t.Fatalf("got %T, want ShowToolsMsg", msg)
	}
	if show.Enabled {
		t.Error("nil registry should report tools disabled")
	}
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestSplitTrailingTags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantText string
		wantTags []string
	}{
		{"no tags", []string{"plain", "fact"}, "plain fact", nil},
		{"one tag", []string{"deploy", "on", "fridays", "#ops"}, "deploy on fridays", []string{"ops"}},
		{"two tags", []string{"x", "#a", "#b"}, "x", []string{"a", "b"}},
		{"tag mid-sentence stays", []string{"#prod", "is", "down", "#infra"}, "#prod is down", []string{"infra"}},
		{"bare hash is content", []string{"use", "#"}, "use #", nil},
		{"empty", nil, "", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text, tags := splitTrailingTags(tc.args)
			if text != tc.wantText {
				t.Errorf("text = %q, want %q", text, tc.wantText)
			}
			if len(tags) != len(tc.wantTags) {
				t.Fatalf("tags = %v, want %v", tags, tc.wantTags)
			}
			for i := range tags {
				if tags[i] != tc.wantTags[i] {
					t.Errorf("tags[%d] = %q, want %q", i, tags[i], tc.wantTags[i])
				}
			}
		})
	}
}
