// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	stdctx "context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	golemctx "github.com/jeranaias/golem-tui/internal/context"
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/model"
)

// =============================================================================
// STREAM LIFECYCLE
// =============================================================================

// startStream prunes the conversation, builds the wire history, opens an
// assistant message, and launches the streaming goroutine. Deltas arrive
// in Update as streamDeltaMsg via the channel listener.
func (m *Model) startStream() tea.Cmd {
	conv := m.session.Conversation()

	// Budget enforcement happens before every request
	pruned, report := golemctx.Prune(conv.GetHistory(), m.limits())
	if report.Changed() {
		conv.ReplaceMessages(pruned)
	}

	history := golemctx.BuildAPIHistory(conv.GetHistory())

	// Tool results from the previous round ride along as a user turn on
	// the wire only; the transcript shows them as tool messages.
	if len(m.toolResults) > 0 {
		history = append(history, hive.ChatMessage{
			Role:    "user",
			Content: "Tool results:\n" + strings.Join(m.toolResults, "\n---\n"),
		})
		m.toolResults = nil
	}

	req := hive.ChatRequest{
		Model:    m.client.GetModel(),
		Messages: history,
		Stream:   true,
	}
	if m.tools != nil && m.cfg != nil && m.cfg.Tools.Enabled {
		req.Tools = m.tools.Schemas()
	}

	conv.AddAssistantMessage()
	m.session.MarkDirty()

	ctx, cancel := stdctx.WithCancel(stdctx.Background())
	ch := make(chan tea.Msg, 64)

	m.streaming = true
	m.streamCh = ch
	m.cancelStream = cancel
	m.streamStart = time.Now()

	client := m.client
	go func() {
		defer close(ch)

		asm := hive.NewAssembler()
		err := client.ChatStream(ctx, req, func(chunk hive.StreamChunk) {
			if out := asm.Feed(chunk); out != "" {
				ch <- streamDeltaMsg{text: out}
			}
		})

		// Close a reasoning span left open by an interrupt or a stream
		// that ended mid-think
		if tail := asm.Finish(); tail != "" {
			ch <- streamDeltaMsg{text: tail}
		}

		interrupted := ctx.Err() != nil
		if err != nil && !interrupted {
			ch <- streamErrMsg{err: err}
			return
		}
		ch <- streamDoneMsg{stats: asm.Stats(), interrupted: interrupted}
	}()

	return tea.Batch(listenStream(ch), m.spinner.Start("Thinking"))
}

// listenStream waits for the next message from the streaming goroutine.
// Update re-issues it after each delta until the channel closes.
func listenStream(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

// interruptStream cancels the in-flight stream. Partial content stays in
// the transcript; the done message arrives with interrupted set.
func (m *Model) interruptStream() {
	if m.cancelStream != nil {
		m.cancelStream()
		m.cancelStream = nil
	}
}

// finishStream settles the open assistant message and records usage.
func (m *Model) finishStream(msg streamDoneMsg) {
	conv := m.session.Conversation()

	stats := model.NewStatistics()
	stats.StartTime = m.streamStart
	if msg.stats.FirstTokenTime > 0 {
		stats.FirstTokenTime = m.streamStart.Add(msg.stats.FirstTokenTime)
		stats.TTFT = msg.stats.FirstTokenTime
	}
	completion := 0
	if msg.stats.Usage != nil {
		completion = msg.stats.Usage.CompletionTokens
	}
	stats.Finalize(completion)

	if msg.interrupted {
		conv.InterruptLast()
	} else {
		conv.FinalizeLast(stats)
	}
	m.session.MarkDirty()

	if last := conv.GetLastAssistantMessage(); last != nil {
		m.lastAssistant = model.StripThink(last.Content)
	}

	// Feed the usage tracker when the hive reported token counts
	if m.cmdCtx != nil && m.cmdCtx.Usage != nil && msg.stats.Usage != nil {
		prompt := ""
		if u := conv.GetLastUserMessage(); u != nil {
			prompt = u.Content
		}
		m.cmdCtx.Usage.Record(
			m.client.GetModel(),
			msg.stats.Usage.PromptTokens,
			msg.stats.Usage.CompletionTokens,
			time.Since(m.streamStart),
			prompt,
		)
	}

	m.streaming = false
	m.streamCh = nil
	m.cancelStream = nil
	m.spinner.Stop()
}
