// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/golem-tui/internal/model"
)

// =============================================================================
// STORE TESTS
// =============================================================================

func TestNewStoreWithDir(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewStoreWithDir(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if store.BaseDir != tempDir {
		t.Errorf("BaseDir = %q, want %q", store.BaseDir, tempDir)
	}
	if store.MaxConversations != 100 {
		t.Errorf("MaxConversations = %d, want 100", store.MaxConversations)
	}
	if store.EncryptionEnabled() {
		t.Error("Encryption should be off by default")
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	conv := &StoredConversation{
		Model:        "llama3.1:8b",
		SystemPrompt: "You are concise.",
		MaxTokens:    16384,
		Messages: []StoredMessage{
			{ID: "msg1", Role: "user", Content: "Hello", Timestamp: time.Now()},
			{ID: "msg2", Role: "assistant", Content: "Hi there!", Timestamp: time.Now()},
		},
	}

	id, err := store.Save(conv)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Error("Expected non-empty ID")
	}
	if !strings.HasPrefix(id, "conv_") {
		t.Errorf("ID should start with 'conv_', got %q", id)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ID != id {
		t.Errorf("Loaded ID = %q, want %q", loaded.ID, id)
	}
	if loaded.Model != "llama3.1:8b" {
		t.Errorf("Loaded Model = %q, want %q", loaded.Model, "llama3.1:8b")
	}
	if loaded.SystemPrompt != "You are concise." {
		t.Errorf("Loaded SystemPrompt = %q, want %q", loaded.SystemPrompt, "You are concise.")
	}
	if loaded.MaxTokens != 16384 {
		t.Errorf("Loaded MaxTokens = %d, want 16384", loaded.MaxTokens)
	}
	if len(loaded.Messages) != 2 {
		t.Errorf("Loaded Messages count = %d, want 2", len(loaded.Messages))
	}
}

func TestStore_SaveGeneratesSummary(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	conv := &StoredConversation{
		Messages: []StoredMessage{
			{Role: "system", Content: "setup"},
			{Role: "user", Content: "How do I\nread a file in Go?"},
		},
	}

	id, err := store.Save(conv)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Summary != "How do I read a file in Go?" {
		t.Errorf("Summary = %q, want newline-flattened first user message", loaded.Summary)
	}
}

func TestStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permissions not meaningful on Windows")
	}

	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	id, err := store.Save(&StoredConversation{
		Messages: []StoredMessage{{Role: "user", Content: "private"}},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(store.filePath(id))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("File permissions = %o, want 0600", perm)
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	_, err = store.Load("nonexistent-id")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected ErrConversationNotFound, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	id, err := store.Save(&StoredConversation{
		Messages: []StoredMessage{{Role: "user", Content: "Test"}},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err = store.Load(id)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected ErrConversationNotFound after delete, got %v", err)
	}
}

func TestStore_DeleteNotFound(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	err = store.Delete("nonexistent-id")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected ErrConversationNotFound, got %v", err)
	}
}

func TestStore_List(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	var ids []string
	for _, text := range []string{"first question", "second question", "third question"} {
		id, err := store.Save(&StoredConversation{
			Messages: []StoredMessage{{Role: "user", Content: text}},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, id)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(metas) != 3 {
		t.Fatalf("List count = %d, want 3", len(metas))
	}

	// Most recently saved first
	if metas[0].ID != ids[2] {
		t.Errorf("metas[0].ID = %q, want most recent %q", metas[0].ID, ids[2])
	}
	if metas[2].ID != ids[0] {
		t.Errorf("metas[2].ID = %q, want oldest %q", metas[2].ID, ids[0])
	}
	if metas[0].Preview != "third question" {
		t.Errorf("Preview = %q, want %q", metas[0].Preview, "third question")
	}
	if metas[0].MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", metas[0].MessageCount)
	}
}

func TestStore_ListEmptyDir(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("List count = %d, want 0", len(metas))
	}
}

func TestStore_LoadByIndex(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	var ids []string
	for _, text := range []string{"older", "newer"} {
		id, err := store.Save(&StoredConversation{
			Messages: []StoredMessage{{Role: "user", Content: text}},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, id)
	}

	conv, err := store.LoadByIndex(0)
	if err != nil {
		t.Fatalf("LoadByIndex failed: %v", err)
	}
	if conv.ID != ids[1] {
		t.Errorf("Index 0 loaded %q, want most recent %q", conv.ID, ids[1])
	}

	if _, err := store.LoadByIndex(5); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Out-of-range index: expected ErrConversationNotFound, got %v", err)
	}
	if _, err := store.LoadByIndex(-1); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Negative index: expected ErrConversationNotFound, got %v", err)
	}
}

func TestStore_Rename(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	id, err := store.Save(&StoredConversation{
		Messages: []StoredMessage{{Role: "user", Content: "original topic"}},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	before, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := store.Rename(id, "debugging session"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	after, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load after rename failed: %v", err)
	}
	if after.Summary != "debugging session" {
		t.Errorf("Summary = %q, want %q", after.Summary, "debugging session")
	}
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("Rename changed UpdatedAt from %v to %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestStore_RenameEmptyRegeneratesSummary(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	id, err := store.Save(&StoredConversation{
		Summary:  "manual name",
		Messages: []StoredMessage{{Role: "user", Content: "what is a goroutine"}},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.Rename(id, "   "); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	after, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if after.Summary != "what is a goroutine" {
		t.Errorf("Summary = %q, want regenerated from first user message", after.Summary)
	}
}

func TestStore_RenameNotFound(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	err = store.Rename("nonexistent-id", "anything")
	if !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("Expected ErrConversationNotFound, got %v", err)
	}
}

func TestStore_Search(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	for _, text := range []string{"explain goroutines", "write a haiku", "goroutine leaks"} {
		if _, err := store.Save(&StoredConversation{
			Messages: []StoredMessage{{Role: "user", Content: text}},
		}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	results, err := store.Search("GOROUTINE")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Search results = %d, want 2", len(results))
	}

	results, err = store.Search("sonnet")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search results = %d, want 0", len(results))
	}
}

func TestStore_SearchMessages(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if _, err := store.Save(&StoredConversation{
		Messages: []StoredMessage{
			{Role: "user", Content: "unrelated title"},
			{Role: "assistant", Content: "Channels synchronize goroutines."},
		},
	}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Matches assistant content that the summary search would miss
	results, err := store.SearchMessages("synchronize")
	if err != nil {
		t.Fatalf("SearchMessages failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("SearchMessages results = %d, want 1", len(results))
	}

	// Empty query returns everything
	results, err = store.SearchMessages("")
	if err != nil {
		t.Fatalf("SearchMessages failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Empty query results = %d, want 1", len(results))
	}
}

func TestStore_Clear(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.Save(&StoredConversation{
			Messages: []StoredMessage{{Role: "user", Content: "msg"}},
		}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("List count after Clear = %d, want 0", len(metas))
	}
}

func TestStore_EnforceLimit(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.MaxConversations = 3

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := store.Save(&StoredConversation{
			Messages: []StoredMessage{{Role: "user", Content: "msg"}},
		})
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids = append(ids, id)
	}

	metas, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("List count = %d, want 3 after limit enforcement", len(metas))
	}

	// Oldest two were evicted
	for _, id := range ids[:2] {
		if _, err := store.Load(id); !errors.Is(err, ErrConversationNotFound) {
			t.Errorf("Conversation %q should have been evicted, got err %v", id, err)
		}
	}
	// Newest still present
	if _, err := store.Load(ids[4]); err != nil {
		t.Errorf("Newest conversation should survive, got err %v", err)
	}
}

func TestStore_UnicodeContent(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	content := "日本語のテキスト with émojis 🎉 and ünïcödé"
	id, err := store.Save(&StoredConversation{
		Messages: []StoredMessage{{Role: "user", Content: content}},
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Messages[0].Content != content {
		t.Errorf("Unicode content corrupted: %q", loaded.Messages[0].Content)
	}
}

func TestGenerateSummary(t *testing.T) {
	tests := []struct {
		name string
		conv *StoredConversation
		want string
	}{
		{
			name: "first user message",
			conv: &StoredConversation{Messages: []StoredMessage{
				{Role: "user", Content: "short question"},
			}},
			want: "short question",
		},
		{
			name: "skips system messages",
			conv: &StoredConversation{Messages: []StoredMessage{
				{Role: "system", Content: "you are helpful"},
				{Role: "user", Content: "the real topic"},
			}},
			want: "the real topic",
		},
		{
			name: "no user messages",
			conv: &StoredConversation{Messages: []StoredMessage{
				{Role: "assistant", Content: "hello"},
			}},
			want: "New conversation",
		},
		{
			name: "long message truncated",
			conv: &StoredConversation{Messages: []StoredMessage{
				{Role: "user", Content: strings.Repeat("x", 100)},
			}},
			want: strings.Repeat("x", 47) + "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := generateSummary(tt.conv); got != tt.want {
				t.Errorf("generateSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversationError_Is(t *testing.T) {
	err := &ConversationError{Message: "conversation not found"}
	if !errors.Is(err, ErrConversationNotFound) {
		t.Error("Errors with same message should match")
	}

	other := &ConversationError{Message: "different"}
	if errors.Is(other, ErrConversationNotFound) {
		t.Error("Errors with different messages should not match")
	}

	if errors.Is(errors.New("plain"), ErrConversationNotFound) {
		t.Error("Plain errors should not match ConversationError")
	}
}

// =============================================================================
// MODEL CONVERSION TESTS
// =============================================================================

func TestFromConversation_RoundTrip(t *testing.T) {
	conv := model.NewConversationWithModel("llama3.1:8b")
	conv.Title = "channel tutorial"
	conv.SystemPrompt = "Be brief."
	conv.TokensUsed = 420

	user := model.NewUserMessage("explain @main.go to me")
	user.ContextMentions = []string{"main.go"}
	conv.Messages = append(conv.Messages, user)

	asst := model.NewMessage(model.RoleAssistant, "<think>recall syntax</think>Channels carry values.")
	asst.TokenCount = 12
	asst.TTFT = 150 * time.Millisecond
	asst.TotalDuration = 2 * time.Second
	asst.TokensPerSec = 6.0
	conv.Messages = append(conv.Messages, asst)

	tool := model.NewToolMessage("ls", "main.go\ngo.mod", true)
	conv.Messages = append(conv.Messages, tool)

	stored := FromConversation(conv)

	if stored.ID != conv.ID {
		t.Errorf("ID = %q, want %q", stored.ID, conv.ID)
	}
	if stored.Summary != "channel tutorial" {
		t.Errorf("Summary = %q, want Title", stored.Summary)
	}
	if stored.SystemPrompt != "Be brief." {
		t.Errorf("SystemPrompt = %q", stored.SystemPrompt)
	}
	if len(stored.Mentions) != 1 || stored.Mentions[0] != "main.go" {
		t.Errorf("Mentions = %v, want [main.go]", stored.Mentions)
	}
	if len(stored.Messages) != 3 {
		t.Fatalf("Messages = %d, want 3", len(stored.Messages))
	}
	if stored.Messages[1].TTFTMs != 150 {
		t.Errorf("TTFTMs = %d, want 150", stored.Messages[1].TTFTMs)
	}
	if stored.Messages[1].DurationMs != 2000 {
		t.Errorf("DurationMs = %d, want 2000", stored.Messages[1].DurationMs)
	}
	if stored.Messages[2].ToolName != "ls" {
		t.Errorf("ToolName = %q, want ls", stored.Messages[2].ToolName)
	}

	back := stored.ToConversation()

	if back.ID != conv.ID {
		t.Errorf("Round-trip ID = %q, want %q", back.ID, conv.ID)
	}
	if back.Title != conv.Title {
		t.Errorf("Round-trip Title = %q, want %q", back.Title, conv.Title)
	}
	if back.TokensUsed != 420 {
		t.Errorf("Round-trip TokensUsed = %d, want 420", back.TokensUsed)
	}
	if back.MaxTokens != conv.MaxTokens {
		t.Errorf("Round-trip MaxTokens = %d, want %d", back.MaxTokens, conv.MaxTokens)
	}
	if len(back.Messages) != 3 {
		t.Fatalf("Round-trip Messages = %d, want 3", len(back.Messages))
	}
	if back.Messages[1].Content != asst.Content {
		t.Errorf("Round-trip content = %q", back.Messages[1].Content)
	}
	if back.Messages[1].TTFT != 150*time.Millisecond {
		t.Errorf("Round-trip TTFT = %v, want 150ms", back.Messages[1].TTFT)
	}
	if back.Messages[1].TotalDuration != 2*time.Second {
		t.Errorf("Round-trip TotalDuration = %v, want 2s", back.Messages[1].TotalDuration)
	}
	if back.Messages[2].Role != model.RoleTool {
		t.Errorf("Round-trip tool role = %q", back.Messages[2].Role)
	}
}

func TestFromConversation_DeduplicatesMentions(t *testing.T) {
	conv := model.NewConversation()
	first := model.NewUserMessage("look at @a.go and @b.go")
	first.ContextMentions = []string{"a.go", "b.go"}
	second := model.NewUserMessage("now @a.go again")
	second.ContextMentions = []string{"a.go"}
	conv.Messages = append(conv.Messages, first, second)

	stored := FromConversation(conv)
	if len(stored.Mentions) != 2 {
		t.Fatalf("Mentions = %v, want 2 unique entries", stored.Mentions)
	}
	if stored.Mentions[0] != "a.go" || stored.Mentions[1] != "b.go" {
		t.Errorf("Mentions = %v, want first-seen order [a.go b.go]", stored.Mentions)
	}
}

func TestToConversation_DefaultsMaxTokens(t *testing.T) {
	stored := &StoredConversation{
		ID: "conv_legacy",
		Messages: []StoredMessage{
			{Role: "user", Content: "hello"},
		},
	}

	conv := stored.ToConversation()
	if conv.MaxTokens != model.DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want default %d", conv.MaxTokens, model.DefaultMaxTokens)
	}
}

func TestStore_SaveConversation(t *testing.T) {
	store, err := NewStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	conv := model.NewConversationWithModel("llama3.1:8b")
	conv.AddUserMessage("persist me")

	id, err := store.SaveConversation(conv)
	if err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	if id != conv.ID {
		t.Errorf("Saved ID = %q, want conversation's own ID %q", id, conv.ID)
	}

	loaded, err := store.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Messages[0].Content != "persist me" {
		t.Errorf("Loaded content = %q", loaded.Messages[0].Content)
	}
}

// =============================================================================
// DISK SPACE TESTS
// =============================================================================

func TestFreeDiskSpace(t *testing.T) {
	free, err := freeDiskSpace(t.TempDir())
	if err != nil {
		t.Fatalf("freeDiskSpace failed: %v", err)
	}
	if free == 0 {
		t.Error("Expected non-zero free space on temp dir")
	}
}

func TestCheckDiskSpace_MissingDirDoesNotBlock(t *testing.T) {
	// Probe failure must not prevent saves
	if err := checkDiskSpace("/nonexistent/path/for/golem/test"); err != nil {
		t.Errorf("checkDiskSpace on bad path = %v, want nil", err)
	}
}
