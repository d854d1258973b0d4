// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"strings"
	"testing"

	"github.com/jeranaias/golem-tui/internal/model"
)

// filler returns a message with content of exactly n bytes.
func filler(role model.Role, n int, tag byte) *model.Message {
	return model.NewMessage(role, strings.Repeat(string(tag), n))
}

// contents extracts message contents for comparisons.
func contents(msgs []*model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestPrune_EmptyConversation(t *testing.T) {
	out, report := Prune(nil, DefaultLimits())
	if len(out) != 0 {
		t.Errorf("Prune(nil) returned %d messages", len(out))
	}
	if report.Changed() {
		t.Error("empty conversation should report no changes")
	}
}

func TestPrune_UnderBudgetUntouched(t *testing.T) {
	msgs := []*model.Message{
		model.NewUserMessage("hello"),
		model.NewMessage(model.RoleAssistant, "hi there"),
		model.NewUserMessage("how are you?"),
	}

	out, report := Prune(msgs, DefaultLimits())
	if report.Changed() {
		t.Errorf("small conversation should pass untouched, report = %+v", report)
	}
	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}
	for i, want := range []string{"hello", "hi there", "how are you?"} {
		if out[i].Content != want {
			t.Errorf("message %d = %q, want %q", i, out[i].Content, want)
		}
	}
}

func TestPrune_StripsReasoningFromSettledMessages(t *testing.T) {
	msgs := []*model.Message{
		model.NewUserMessage("q1"),
		model.NewMessage(model.RoleAssistant, "<think>long deliberation</think>Answer one."),
		model.NewUserMessage("q2"),
		model.NewMessage(model.RoleAssistant, "<think>fresh thoughts</think>Answer two."),
	}

	out, report := Prune(msgs, DefaultLimits())

	if out[1].Content != "Answer one." {
		t.Errorf("settled assistant = %q, want reasoning stripped", out[1].Content)
	}
	// The freshest two messages may still be rendering; their reasoning
	// stays for the UI.
	if out[3].Content != "<think>fresh thoughts</think>Answer two." {
		t.Errorf("guarded assistant = %q, want untouched", out[3].Content)
	}
	if report.Stripped != 1 {
		t.Errorf("Stripped = %d, want 1", report.Stripped)
	}
}

func TestPrune_ThinkOnlyBecomesPlaceholder(t *testing.T) {
	msgs := []*model.Message{
		model.NewUserMessage("q"),
		model.NewMessage(model.RoleAssistant, "<think>only reasoning, no answer</think>"),
		model.NewUserMessage("follow-up"),
		model.NewMessage(model.RoleAssistant, "done"),
	}

	out, _ := Prune(msgs, DefaultLimits())
	if out[1].Content != model.ContinuedPlaceholder {
		t.Errorf("think-only message = %q, want %q", out[1].Content, model.ContinuedPlaceholder)
	}
}

func TestPrune_TruncatesOversizedSettledMessages(t *testing.T) {
	limits := Limits{MaxHistoryChars: 100000, MaxMessageChars: 100, MinRecentMessages: 2}

	msgs := []*model.Message{
		filler(model.RoleUser, 500, 'a'),
		model.NewMessage(model.RoleAssistant, "short"),
		filler(model.RoleUser, 500, 'b'),
		filler(model.RoleAssistant, 500, 'c'),
	}

	out, report := Prune(msgs, limits)

	want := strings.Repeat("a", 100) + TruncationMarker
	if out[0].Content != want {
		t.Errorf("oversized settled message not cut: %q", out[0].Content)
	}
	if out[1].Content != "short" {
		t.Errorf("small message modified: %q", out[1].Content)
	}
	// Last two are guarded even when oversized.
	if len(out[2].Content) != 500 || len(out[3].Content) != 500 {
		t.Error("guarded messages must never be truncated")
	}
	if report.Truncated != 1 {
		t.Errorf("Truncated = %d, want 1", report.Truncated)
	}
}

func TestPrune_RepeatPassesStable(t *testing.T) {
	limits := Limits{MaxHistoryChars: 100000, MaxMessageChars: 80, MinRecentMessages: 2}

	msgs := []*model.Message{
		filler(model.RoleUser, 300, 'x'),
		model.NewMessage(model.RoleAssistant, "<think>r</think>fine"),
		model.NewUserMessage("tail one"),
		model.NewMessage(model.RoleAssistant, "tail two"),
	}

	first, _ := Prune(msgs, limits)
	firstContents := contents(first)

	second, report := Prune(first, limits)
	if report.Changed() {
		t.Errorf("second pass should be a no-op, report = %+v", report)
	}
	for i, want := range firstContents {
		if second[i].Content != want {
			t.Errorf("message %d drifted on repeat pass: %q vs %q", i, second[i].Content, want)
		}
	}
}

func TestPrune_SmallConversationNeverStructurallyPruned(t *testing.T) {
	// Message count at MinRecentMessages+1 is exempt from dropping no
	// matter how far over budget it is.
	limits := Limits{MaxHistoryChars: 50, MaxMessageChars: 100000, MinRecentMessages: 4}

	msgs := []*model.Message{
		filler(model.RoleUser, 1000, 'a'),
		filler(model.RoleAssistant, 1000, 'b'),
		filler(model.RoleUser, 1000, 'c'),
		filler(model.RoleAssistant, 1000, 'd'),
		filler(model.RoleUser, 1000, 'e'),
	}

	out, report := Prune(msgs, limits)
	if len(out) != 5 {
		t.Errorf("got %d messages, want all 5 kept", len(out))
	}
	if report.Dropped != 0 || report.MarkerInserted {
		t.Errorf("small conversation was structurally pruned: %+v", report)
	}
}

// Nine 1000-char messages against a 3000-char budget with a recent window
// of four: the whole middle goes, replaced by the pruned marker.
func TestPrune_MiddleFullyConsumed(t *testing.T) {
	limits := Limits{MaxHistoryChars: 3000, MaxMessageChars: 3000, MinRecentMessages: 4}

	var msgs []*model.Message
	for i := 0; i < 9; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msgs = append(msgs, filler(role, 1000, byte('a'+i)))
	}
	firstContent := msgs[0].Content
	recentContents := contents(msgs[5:])

	out, report := Prune(msgs, limits)

	if len(out) != 6 {
		t.Fatalf("got %d messages, want first + marker + 4 recent", len(out))
	}
	if out[0].Content != firstContent {
		t.Error("anchor message modified or dropped")
	}
	if out[1].Role != model.RoleSystem || out[1].Content != PrunedMarker {
		t.Errorf("marker message = %s %q, want system %q", out[1].Role, out[1].Content, PrunedMarker)
	}
	for i, want := range recentContents {
		if out[2+i].Content != want {
			t.Errorf("recent message %d modified: %q", i, out[2+i].Content)
		}
	}
	if !report.MarkerInserted {
		t.Error("report should flag marker insertion")
	}
	if report.Dropped != 4 {
		t.Errorf("Dropped = %d, want 4", report.Dropped)
	}
}

func TestPrune_DropsOldestFirstUntilWithinBudget(t *testing.T) {
	limits := Limits{MaxHistoryChars: 850, MaxMessageChars: 3000, MinRecentMessages: 4}

	var msgs []*model.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, filler(model.RoleUser, 100, byte('a'+i)))
	}

	out, report := Prune(msgs, limits)

	// 1000 chars total; dropping the two oldest middle messages reaches 800.
	if report.Dropped != 2 {
		t.Fatalf("Dropped = %d, want 2", report.Dropped)
	}
	if report.MarkerInserted {
		t.Error("marker must not be inserted while middle messages remain")
	}

	want := []string{
		strings.Repeat("a", 100), // anchor
		strings.Repeat("d", 100), // middle survivors
		strings.Repeat("e", 100),
		strings.Repeat("f", 100),
		strings.Repeat("g", 100), // recent window
		strings.Repeat("h", 100),
		strings.Repeat("i", 100),
		strings.Repeat("j", 100),
	}
	got := contents(out)
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %.10q..., want %.10q...", i, got[i], want[i])
		}
	}
	if report.TotalChars > limits.MaxHistoryChars {
		t.Errorf("TotalChars = %d, want <= %d", report.TotalChars, limits.MaxHistoryChars)
	}
}

func TestPrune_GuardedReasoningCountsAtStrippedLength(t *testing.T) {
	// A huge reasoning span in one of the two freshest messages must not
	// trigger structural pruning: the budget counts its stripped length.
	limits := Limits{MaxHistoryChars: 500, MaxMessageChars: 100000, MinRecentMessages: 2}

	msgs := []*model.Message{
		model.NewUserMessage("q1"),
		model.NewMessage(model.RoleAssistant, "a1"),
		model.NewUserMessage("q2"),
		model.NewMessage(model.RoleAssistant, "<think>"+strings.Repeat("r", 5000)+"</think>ok"),
	}

	out, report := Prune(msgs, limits)
	if report.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0: reasoning must count stripped", report.Dropped)
	}
	if !strings.Contains(out[3].Content, "<think>") {
		t.Error("guarded message lost its reasoning span")
	}
}

// The strip/truncate guard (last 2) and the structural window
// (MinRecentMessages) are different sizes on purpose: a message inside the
// recent window but older than the freshest two still gets its reasoning
// stripped, it just cannot be dropped.
func TestPrune_TwoWindowsAreDistinct(t *testing.T) {
	limits := Limits{MaxHistoryChars: 100000, MaxMessageChars: 100000, MinRecentMessages: 4}

	msgs := []*model.Message{
		model.NewUserMessage("q1"),
		model.NewMessage(model.RoleAssistant, "a1"),
		model.NewUserMessage("q2"),
		model.NewMessage(model.RoleAssistant, "<think>settled reasoning</think>a2"),
		model.NewUserMessage("q3"),
		model.NewMessage(model.RoleAssistant, "<think>live reasoning</think>a3"),
	}

	out, _ := Prune(msgs, limits)

	// Index 3 is inside the recent-4 window but outside the last-2 guard.
	if out[3].Content != "a2" {
		t.Errorf("recent-but-settled assistant = %q, want stripped", out[3].Content)
	}
	if out[5].Content != "<think>live reasoning</think>a3" {
		t.Errorf("freshest assistant = %q, want untouched", out[5].Content)
	}
}

func TestNeedsPrune(t *testing.T) {
	limits := Limits{MaxHistoryChars: 300, MaxMessageChars: 3000, MinRecentMessages: 2}

	small := []*model.Message{
		model.NewUserMessage("tiny"),
		model.NewMessage(model.RoleAssistant, "reply"),
	}
	if NeedsPrune(small, limits) {
		t.Error("small conversation should not need pruning")
	}

	var big []*model.Message
	for i := 0; i < 6; i++ {
		big = append(big, filler(model.RoleUser, 100, 'x'))
	}
	if !NeedsPrune(big, limits) {
		t.Error("600 chars against a 300 budget should need pruning")
	}

	// Over budget but protected by the count guard.
	protected := []*model.Message{
		filler(model.RoleUser, 1000, 'x'),
		filler(model.RoleAssistant, 1000, 'y'),
		filler(model.RoleUser, 1000, 'z'),
	}
	if NeedsPrune(protected, limits) {
		t.Error("count guard should exempt conversations at MinRecentMessages+1")
	}
}

func TestLimits_WithDefaults(t *testing.T) {
	got := Limits{}.withDefaults()
	want := DefaultLimits()
	if got != want {
		t.Errorf("zero limits = %+v, want defaults %+v", got, want)
	}

	partial := Limits{MaxHistoryChars: 12000}.withDefaults()
	if partial.MaxHistoryChars != 12000 {
		t.Error("explicit field overwritten by defaults")
	}
	if partial.MaxMessageChars != want.MaxMessageChars || partial.MinRecentMessages != want.MinRecentMessages {
		t.Error("zero fields should take defaults")
	}
}
