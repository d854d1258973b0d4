// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Golem"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Assistant message content may include a <think>...</think> reasoning span
// produced by the stream assembler. The span is kept in Content so it can be
// shown or hidden at render time; it is stripped before the message goes back
// over the wire.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Streaming state (not persisted)
	// PERFORMANCE: strings.Builder avoids quadratic allocations during streaming
	IsStreaming   bool            `json:"-"`
	streamContent strings.Builder `json:"-"`

	// Interrupted marks a streaming message that was cut off (Esc, network
	// drop). Partial content is preserved.
	Interrupted bool `json:"interrupted,omitempty"`

	// Token statistics
	TokenCount int `json:"token_count,omitempty"`

	// For tool messages
	ToolName   string `json:"tool_name,omitempty"`
	ToolInput  string `json:"tool_input,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`
	IsSuccess  bool   `json:"is_success,omitempty"`

	// Performance metrics (for assistant messages)
	TTFT          time.Duration `json:"ttft_ns,omitempty"`
	TotalDuration time.Duration `json:"total_duration_ns,omitempty"`
	TokensPerSec  float64       `json:"tokens_per_sec,omitempty"`

	// Context information
	ContextMentions []string `json:"context_mentions,omitempty"` // @file, @clip refs in the original input
	ContextInfo     string   `json:"context_info,omitempty"`     // Summary of expanded context (e.g., "2 files, clipboard")
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new empty assistant message in streaming mode.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// NewToolMessage creates a new tool result message.
func NewToolMessage(toolName string, result string, success bool) *Message {
	msg := NewMessage(RoleTool, result)
	msg.ToolName = toolName
	msg.ToolResult = result
	msg.IsSuccess = success
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a token to a streaming message.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// FinalizeStream completes streaming and sets statistics.
func (m *Message) FinalizeStream(stats *Statistics) {
	if !m.IsStreaming {
		return
	}

	m.Content = m.streamContent.String()
	m.streamContent.Reset()
	m.IsStreaming = false

	if stats != nil {
		m.TTFT = stats.TTFT
		m.TotalDuration = stats.TotalDuration
		m.TokenCount = stats.CompletionTokens
		m.TokensPerSec = stats.TokensPerSecond
	}
}

// InterruptStream completes streaming early, keeping whatever partial
// content arrived. An unclosed reasoning span is closed so the stored
// content stays well formed.
func (m *Message) InterruptStream() {
	if !m.IsStreaming {
		return
	}

	content := m.streamContent.String()
	if HasOpenThink(content) {
		content += ThinkClose + "\n"
	}
	m.Content = content
	m.streamContent.Reset()
	m.IsStreaming = false
	m.Interrupted = true
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *Message) GetDisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// Reasoning returns the reasoning span of the message content, if any.
func (m *Message) Reasoning() string {
	reasoning, _ := SplitThink(m.GetDisplayContent())
	return reasoning
}

// VisibleContent returns the content with reasoning spans removed.
func (m *Message) VisibleContent() string {
	return StripThink(m.GetDisplayContent())
}

// Preview returns a truncated preview of the message content with
// reasoning spans removed.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.VisibleContent(), maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && m.streamContent.Len() == 0
}

// ContentLen returns the length in bytes of the current content.
func (m *Message) ContentLen() int {
	if m.IsStreaming {
		return m.streamContent.Len()
	}
	return len(m.Content)
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m *Message) EstimateTokens() int {
	return (m.ContentLen() + 3) / 4
}

// FormatStats returns a formatted string of message statistics.
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.TotalDuration == 0 {
		return ""
	}

	// Format: "2.5s | 128 tokens | 51.2 tok/s | TTFT 234ms"
	return util.FormatSeconds(m.TotalDuration.Seconds()) + " | " +
		util.IntToString(m.TokenCount) + " tokens | " +
		util.FloatToStringPrec(m.TokensPerSec, 1) + " tok/s | " +
		"TTFT " + util.Int64ToString(m.TTFT.Milliseconds()) + "ms"
}

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing and token count information for a generation.
type Statistics struct {
	// Timestamps
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	// Token counts
	PromptTokens     int
	CompletionTokens int

	// Derived metrics (computed on Finalize)
	TTFT            time.Duration
	TotalDuration   time.Duration
	TokensPerSecond float64
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
	}
}

// RecordFirstToken records when the first token was received.
func (s *Statistics) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize computes the final statistics.
func (s *Statistics) Finalize(tokenCount int) {
	s.EndTime = time.Now()
	if tokenCount > 0 {
		s.CompletionTokens = tokenCount
	}
	s.TotalDuration = s.EndTime.Sub(s.StartTime)

	if s.TotalDuration > 0 {
		s.TokensPerSecond = float64(s.CompletionTokens) / s.TotalDuration.Seconds()
	}
}

// Format returns a formatted string of the statistics.
func (s *Statistics) Format() string {
	return util.FormatSeconds(s.TotalDuration.Seconds()) + " | " +
		util.IntToString(s.CompletionTokens) + " tokens | " +
		util.FloatToStringPrec(s.TokensPerSecond, 1) + " tok/s | " +
		"TTFT " + util.Int64ToString(s.TTFT.Milliseconds()) + "ms"
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "msg_" + hex.EncodeToString(bytes)
}
