// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"strings"

	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// BUDGET LIMITS
// =============================================================================

// Limits bounds the in-memory conversation enforced by Prune.
type Limits struct {
	// MaxHistoryChars is the character budget for the whole conversation.
	MaxHistoryChars int

	// MaxMessageChars caps individual settled messages.
	MaxMessageChars int

	// MinRecentMessages is the size of the recent window that structural
	// pruning never touches.
	MinRecentMessages int
}

// DefaultLimits returns the limits used when the config does not override
// them. Calibrated for ~8k-token context windows at roughly 3.5 chars/token,
// leaving headroom for the system prompt and the next response.
func DefaultLimits() Limits {
	return Limits{
		MaxHistoryChars:   24000,
		MaxMessageChars:   3000,
		MinRecentMessages: 6,
	}
}

// withDefaults fills zero or negative fields from DefaultLimits.
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxHistoryChars <= 0 {
		l.MaxHistoryChars = def.MaxHistoryChars
	}
	if l.MaxMessageChars <= 0 {
		l.MaxMessageChars = def.MaxMessageChars
	}
	if l.MinRecentMessages <= 0 {
		l.MinRecentMessages = def.MinRecentMessages
	}
	return l
}

// =============================================================================
// MARKERS
// =============================================================================

const (
	// TruncationMarker is appended to messages cut by MaxMessageChars.
	TruncationMarker = "\n...(truncated)"

	// PrunedMarker is the content of the synthetic system message inserted
	// when every middle message was dropped.
	PrunedMarker = "[earlier messages pruned]"

	// streamGuard is the number of freshest messages exempt from stripping
	// and truncation. These two may still be rendering or streaming, so
	// their content must not be rewritten underneath the UI. This window is
	// intentionally smaller than, and independent of, MinRecentMessages.
	streamGuard = 2
)

// =============================================================================
// PRUNE
// =============================================================================

// PruneReport describes what a Prune pass changed.
type PruneReport struct {
	// Stripped counts assistant messages whose reasoning spans were removed.
	Stripped int

	// Truncated counts messages cut to MaxMessageChars.
	Truncated int

	// Dropped counts middle messages removed to meet the budget.
	Dropped int

	// MarkerInserted is true when the middle was fully consumed and the
	// synthetic pruned-marker message was added.
	MarkerInserted bool

	// TotalChars is the counted conversation size after the pass.
	TotalChars int
}

// Changed returns true if the pass modified the conversation at all.
func (r PruneReport) Changed() bool {
	return r.Stripped > 0 || r.Truncated > 0 || r.Dropped > 0 || r.MarkerInserted
}

// Prune bounds a conversation to the character budget. Settled messages
// (everything but the freshest two) are rewritten in place: assistant
// reasoning spans are stripped and oversized content is truncated. If the
// conversation still exceeds the budget, middle messages are dropped
// oldest-first; the first message and the most recent MinRecentMessages
// always survive verbatim.
//
// The returned slice is the conversation to keep; callers hand it back to
// the conversation via ReplaceMessages. Prune never errors: for any input,
// including an empty one, it returns a valid sequence.
func Prune(msgs []*model.Message, limits Limits) ([]*model.Message, PruneReport) {
	limits = limits.withDefaults()

	var report PruneReport
	if len(msgs) == 0 {
		return msgs, report
	}

	settled := len(msgs) - streamGuard
	if settled < 0 {
		settled = 0
	}

	// Strip reasoning from settled assistant messages. A message that was
	// nothing but reasoning keeps a placeholder so the turn structure
	// stays visible.
	for _, msg := range msgs[:settled] {
		if msg.Role != model.RoleAssistant || !model.HasThink(msg.Content) {
			continue
		}
		msg.Content = model.StripThinkOrPlaceholder(msg.Content)
		report.Stripped++
	}

	// Cut oversized settled messages, whatever their role. Messages already
	// carrying the marker were cut by an earlier pass.
	for _, msg := range msgs[:settled] {
		if len(msg.Content) <= limits.MaxMessageChars || strings.HasSuffix(msg.Content, TruncationMarker) {
			continue
		}
		msg.Content = util.TruncateBytes(msg.Content, limits.MaxMessageChars) + TruncationMarker
		report.Truncated++
	}

	// Budget check. Assistant messages count at post-strip length so a
	// protected recent message with a huge reasoning span does not trigger
	// structural pruning by itself.
	total := countedSize(msgs)
	report.TotalChars = total
	if total <= limits.MaxHistoryChars || len(msgs) <= limits.MinRecentMessages+1 {
		return msgs, report
	}

	// Three windows: the anchor, the droppable middle, the recent tail.
	first := msgs[0]
	recentStart := len(msgs) - limits.MinRecentMessages
	middle := msgs[1:recentStart]
	recent := msgs[recentStart:]

	firstSize := countedLen(first)
	middleSize := countedSize(middle)
	recentSize := countedSize(recent)

	for len(middle) > 0 && firstSize+middleSize+recentSize > limits.MaxHistoryChars {
		middleSize -= countedLen(middle[0])
		middle = middle[1:]
		report.Dropped++
	}

	out := make([]*model.Message, 0, 2+len(middle)+len(recent))
	out = append(out, first)
	if len(middle) == 0 {
		out = append(out, model.NewSystemMessage(PrunedMarker))
		report.MarkerInserted = true
	} else {
		out = append(out, middle...)
	}
	out = append(out, recent...)

	report.TotalChars = countedSize(out)
	return out, report
}

// NeedsPrune reports whether a Prune pass would do structural work.
func NeedsPrune(msgs []*model.Message, limits Limits) bool {
	limits = limits.withDefaults()
	if len(msgs) <= limits.MinRecentMessages+1 {
		return false
	}
	return countedSize(msgs) > limits.MaxHistoryChars
}

// =============================================================================
// SIZE ACCOUNTING
// =============================================================================

// countedLen returns the budget-relevant length of one message: assistant
// messages count at their reasoning-stripped length.
func countedLen(msg *model.Message) int {
	if msg.Role == model.RoleAssistant && model.HasThink(msg.Content) {
		return len(model.StripThink(msg.Content))
	}
	return len(msg.Content)
}

// countedSize sums countedLen over a message sequence.
func countedSize(msgs []*model.Message) int {
	total := 0
	for _, msg := range msgs {
		total += countedLen(msg)
	}
	return total
}
