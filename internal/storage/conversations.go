// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is the on-disk form of a conversation.
type StoredConversation struct {
	// Identity
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages
	Messages []StoredMessage `json:"messages"`

	// Context tracking
	TokensUsed   int      `json:"tokens_used,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Mentions     []string `json:"mentions,omitempty"`
}

// StoredMessage is the on-disk form of a message.
type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user", "assistant", "system", "tool"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Interrupted marks a reply that was cut off mid-stream
	Interrupted bool `json:"interrupted,omitempty"`

	// Statistics (for assistant messages)
	TokenCount   int     `json:"token_count,omitempty"`
	DurationMs   int64   `json:"duration_ms,omitempty"`
	TokensPerSec float64 `json:"tokens_per_sec,omitempty"`
	TTFTMs       int64   `json:"ttft_ms,omitempty"`

	// Tool information
	ToolName   string `json:"tool_name,omitempty"`
	ToolInput  string `json:"tool_input,omitempty"`
	ToolResult string `json:"tool_result,omitempty"`
	IsSuccess  bool   `json:"is_success,omitempty"`
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message truncated
}

// =============================================================================
// MODEL CONVERSIONS
// =============================================================================

// FromConversation converts an in-memory conversation to its stored form.
// Mentions are aggregated across messages, deduplicated in first-seen order.
func FromConversation(conv *model.Conversation) *StoredConversation {
	sc := &StoredConversation{
		ID:           conv.ID,
		Summary:      conv.Title,
		Model:        conv.Model,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		TokensUsed:   conv.TokensUsed,
		MaxTokens:    conv.MaxTokens,
		SystemPrompt: conv.SystemPrompt,
		Messages:     make([]StoredMessage, 0, len(conv.Messages)),
	}

	seen := make(map[string]bool)
	for _, msg := range conv.Messages {
		sc.Messages = append(sc.Messages, fromMessage(msg))
		for _, m := range msg.ContextMentions {
			if !seen[m] {
				seen[m] = true
				sc.Mentions = append(sc.Mentions, m)
			}
		}
	}

	return sc
}

// fromMessage converts a single message to its stored form.
func fromMessage(msg *model.Message) StoredMessage {
	return StoredMessage{
		ID:           msg.ID,
		Role:         msg.Role.String(),
		Content:      msg.Content,
		Timestamp:    msg.Timestamp,
		Interrupted:  msg.Interrupted,
		TokenCount:   msg.TokenCount,
		DurationMs:   msg.TotalDuration.Milliseconds(),
		TokensPerSec: msg.TokensPerSec,
		TTFTMs:       msg.TTFT.Milliseconds(),
		ToolName:     msg.ToolName,
		ToolInput:    msg.ToolInput,
		ToolResult:   msg.ToolResult,
		IsSuccess:    msg.IsSuccess,
	}
}

// ToConversation converts a stored conversation back to its in-memory form.
func (c *StoredConversation) ToConversation() *model.Conversation {
	conv := &model.Conversation{
		ID:           c.ID,
		Title:        c.Summary,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Model:        c.Model,
		TokensUsed:   c.TokensUsed,
		MaxTokens:    c.MaxTokens,
		SystemPrompt: c.SystemPrompt,
		Messages:     make([]*model.Message, 0, len(c.Messages)),
	}

	// Files written before max_tokens was persisted carry a zero here.
	if conv.MaxTokens == 0 {
		conv.MaxTokens = model.DefaultMaxTokens
	}

	for i := range c.Messages {
		conv.Messages = append(conv.Messages, c.Messages[i].toMessage())
	}

	return conv
}

// toMessage converts a stored message back to its in-memory form.
func (m StoredMessage) toMessage() *model.Message {
	return &model.Message{
		ID:            m.ID,
		Role:          model.Role(m.Role),
		Content:       m.Content,
		Timestamp:     m.Timestamp,
		Interrupted:   m.Interrupted,
		TokenCount:    m.TokenCount,
		TokensPerSec:  m.TokensPerSec,
		TTFT:          time.Duration(m.TTFTMs) * time.Millisecond,
		TotalDuration: time.Duration(m.DurationMs) * time.Millisecond,
		ToolName:      m.ToolName,
		ToolInput:     m.ToolInput,
		ToolResult:    m.ToolResult,
		IsSuccess:     m.IsSuccess,
	}
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store handles conversation persistence.
type Store struct {
	// BaseDir is the directory for storing conversations
	// Default: ~/.golem/conversations/
	BaseDir string

	// MaxConversations limits stored conversations (0 = unlimited)
	MaxConversations int

	// cipher is set by EnableEncryption; nil means plaintext storage
	cipher *storeCipher
}

// NewStore creates a store rooted under the golem config directory.
func NewStore() (*Store, error) {
	configDir, err := util.ConfigDir()
	if err != nil {
		return nil, err
	}
	return NewStoreWithDir(filepath.Join(configDir, "conversations"))
}

// NewStoreWithDir creates a store with a custom directory.
func NewStoreWithDir(baseDir string) (*Store, error) {
	// SECURITY: 0700 keeps chat history private to the owning user
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}

	return &Store{
		BaseDir:          baseDir,
		MaxConversations: 100,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a conversation and returns its ID.
// Returns ErrLowDiskSpace without writing when free space is below the floor.
func (s *Store) Save(conv *StoredConversation) (string, error) {
	if err := checkDiskSpace(s.BaseDir); err != nil {
		return "", err
	}

	// Generate ID if not set
	if conv.ID == "" {
		conv.ID = generateConversationID()
	}

	// Auto-generate summary if not set
	if conv.Summary == "" {
		conv.Summary = generateSummary(conv)
	}

	// Update timestamp
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}

	if err := s.writeFile(s.filePath(conv.ID), data); err != nil {
		return "", err
	}

	// Enforce max conversations limit
	if s.MaxConversations > 0 {
		s.enforceLimit()
	}

	return conv.ID, nil
}

// SaveConversation persists an in-memory conversation and returns its ID.
func (s *Store) SaveConversation(conv *model.Conversation) (string, error) {
	return s.Save(FromConversation(conv))
}

// generateSummary creates a summary from the first user message.
func generateSummary(conv *StoredConversation) string {
	for _, msg := range conv.Messages {
		if msg.Role == "user" && msg.Content != "" {
			content := strings.ReplaceAll(msg.Content, "\n", " ")
			content = strings.ReplaceAll(content, "\r", "")
			return util.TruncateRunes(content, 50)
		}
	}
	return "New conversation"
}

// enforceLimit removes oldest conversations if over limit.
func (s *Store) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}

	// Sort by updated time (oldest first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.Before(metas[j].UpdatedAt)
	})

	// Delete excess
	excess := len(metas) - s.MaxConversations
	for i := 0; i < excess; i++ {
		s.Delete(metas[i].ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *Store) Load(id string) (*StoredConversation, error) {
	data, err := s.readFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv StoredConversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}

	return &conv, nil
}

// LoadByIndex loads a conversation by its index in the list (0 = most recent).
func (s *Store) LoadByIndex(index int) (*StoredConversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}

	return s.Load(metas[index].ID)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved conversations (most recent first).
func (s *Store) List() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	var metas []ConversationMeta

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		// Extract ID from filename
		id := strings.TrimSuffix(entry.Name(), ".json")

		// Load the conversation to get metadata
		conv, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted or undecryptable files
		}

		// Get first user message as preview
		preview := ""
		for _, msg := range conv.Messages {
			if msg.Role == "user" {
				preview = util.TruncateRunes(msg.Content, 80)
				break
			}
		}

		metas = append(metas, ConversationMeta{
			ID:           conv.ID,
			Summary:      conv.Summary,
			Model:        conv.Model,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
			Preview:      preview,
		})
	}

	// Sort by updated time (most recent first)
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// Search finds conversations whose summary or preview matches a query string.
func (s *Store) Search(query string) ([]ConversationMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []ConversationMeta

	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Summary), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}

	return results, nil
}

// SearchMessages searches conversations by message content.
// Returns conversations where any message contains the query string
// (case-insensitive).
func (s *Store) SearchMessages(query string) ([]ConversationMeta, error) {
	if query == "" {
		return s.List()
	}

	query = strings.ToLower(query)
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var results []ConversationMeta

	for _, meta := range all {
		// Load full conversation to search message content
		conv, err := s.Load(meta.ID)
		if err != nil {
			continue
		}

		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, meta)
				break // Found a match, move to next conversation
			}
		}
	}

	return results, nil
}

// =============================================================================
// RENAME AND DELETE OPERATIONS
// =============================================================================

// Rename replaces the summary of a stored conversation. The updated
// timestamp is preserved so a rename does not reorder the session list.
func (s *Store) Rename(id, summary string) error {
	conv, err := s.Load(id)
	if err != nil {
		return err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = generateSummary(conv)
	}
	conv.Summary = summary

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}

	return s.writeFile(s.filePath(id), data)
}

// Delete removes a conversation by ID.
func (s *Store) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrConversationNotFound
		}
		return err
	}

	return nil
}

// Clear removes all saved conversations.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}

	return nil
}

// =============================================================================
// FILE I/O
// =============================================================================

// writeFile seals the payload when encryption is enabled, then writes it.
func (s *Store) writeFile(path string, data []byte) error {
	if s.cipher != nil {
		sealed, err := s.cipher.seal(data)
		if err != nil {
			return err
		}
		data = sealed
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	// SECURITY: 0600 keeps chat history private to the owning user
	return util.AtomicWriteFile(path, data, 0600)
}

// readFile reads a conversation file, decrypting transparently when the
// encryption header is present.
func (s *Store) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if IsEncryptedData(data) {
		if s.cipher == nil {
			return nil, ErrEncrypted
		}
		return s.cipher.open(data)
	}

	return data, nil
}

// filePath returns the file path for a conversation ID.
func (s *Store) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// generateConversationID creates a unique conversation ID.
func generateConversationID() string {
	return "conv_" + uuid.NewString()
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
// It implements the error interface and can be compared using errors.Is.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
