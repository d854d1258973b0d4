// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/storage"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns the live conversation for one client instance: it tracks
// the dirty flag, runs autosave against the conversation store, and
// fires the idle callback. All mutation of the conversation during a
// turn goes through the chat loop; the manager only coordinates
// persistence around it.
type Manager struct {
	mu sync.Mutex

	conv  *model.Conversation
	store *storage.Store

	startTime    time.Time
	lastActivity time.Time

	// Autosave
	autosaveInterval time.Duration
	lastAutosave     time.Time
	dirty            bool

	// Idle timeout; zero disables it
	idleTimeout time.Duration
	idleFired   bool

	onIdle     func(idle time.Duration)
	onAutosave func() error
}

// Config holds session manager settings.
type Config struct {
	// AutosaveInterval is how often a dirty conversation is saved.
	// Zero disables autosave.
	AutosaveInterval time.Duration

	// IdleTimeout fires the idle callback after this much inactivity.
	// Zero disables the callback.
	IdleTimeout time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		AutosaveInterval: 60 * time.Second,
		IdleTimeout:      0,
	}
}

// New starts a session around a fresh conversation.
func New(store *storage.Store, cfg Config) *Manager {
	return newManager(model.NewConversation(), store, cfg)
}

// Resume starts a session around a previously saved conversation.
func Resume(conv *model.Conversation, store *storage.Store, cfg Config) *Manager {
	return newManager(conv, store, cfg)
}

func newManager(conv *model.Conversation, store *storage.Store, cfg Config) *Manager {
	now := time.Now()
	m := &Manager{
		conv:             conv,
		store:            store,
		startTime:        now,
		lastActivity:     now,
		lastAutosave:     now,
		autosaveInterval: cfg.AutosaveInterval,
		idleTimeout:      cfg.IdleTimeout,
	}
	m.onAutosave = m.saveConversation
	return m
}

// =============================================================================
// CONVERSATION ACCESS
// =============================================================================

// Conversation returns the live conversation. The conversation itself
// is owned by the single chat loop; the manager only guards its own
// bookkeeping.
func (m *Manager) Conversation() *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conv
}

// Replace swaps in a different conversation (after /load or /clear) and
// resets the dirty state.
func (m *Manager) Replace(conv *model.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conv = conv
	m.dirty = false
	m.lastAutosave = time.Now()
}

// =============================================================================
// STATE
// =============================================================================

// Duration returns how long the session has been running.
func (m *Manager) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.startTime)
}

// IdleTime returns the time since the last recorded activity.
func (m *Manager) IdleTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity)
}

// RecordActivity notes user input. Resets the idle latch so a fresh
// idle period fires the callback again.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
	m.idleFired = false
}

// MarkDirty flags unsaved conversation changes.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = true
}

// IsDirty reports whether there are unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// SetIdleCallback sets the function fired once per idle period.
func (m *Manager) SetIdleCallback(fn func(idle time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onIdle = fn
}

// SetAutosaveFunc overrides the save action (tests, custom stores).
func (m *Manager) SetAutosaveFunc(fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAutosave = fn
}

// =============================================================================
// SAVING
// =============================================================================

// SaveNow persists the conversation immediately and clears the dirty
// flag on success. An empty conversation is not written.
func (m *Manager) SaveNow() error {
	m.mu.Lock()
	save := m.onAutosave
	m.mu.Unlock()

	if err := save(); err != nil {
		return err
	}

	m.mu.Lock()
	m.dirty = false
	m.lastAutosave = time.Now()
	m.mu.Unlock()
	return nil
}

// saveConversation is the default autosave action.
func (m *Manager) saveConversation() error {
	m.mu.Lock()
	conv := m.conv
	store := m.store
	m.mu.Unlock()

	if store == nil || conv == nil || conv.IsEmpty() {
		return nil
	}
	_, err := store.SaveConversation(conv)
	return err
}

// Check evaluates autosave and idle state, firing callbacks as needed.
// Call it from the UI tick. Callbacks run outside the lock.
func (m *Manager) Check() {
	m.mu.Lock()
	shouldSave := m.autosaveInterval > 0 && m.dirty &&
		time.Since(m.lastAutosave) >= m.autosaveInterval

	var fireIdle func(time.Duration)
	var idle time.Duration
	if m.idleTimeout > 0 && !m.idleFired {
		idle = time.Since(m.lastActivity)
		if idle >= m.idleTimeout {
			fireIdle = m.onIdle
			m.idleFired = true
		}
	}
	m.mu.Unlock()

	if shouldSave {
		// Errors leave the dirty flag set; the next tick retries.
		_ = m.SaveNow()
	}
	if fireIdle != nil {
		fireIdle(idle)
	}
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg drives periodic session checks from the event loop.
type TickMsg struct {
	Time time.Time
}

// IdleMsg is emitted when the idle timeout elapses.
type IdleMsg struct {
	Idle time.Duration
}

// TickCmd returns a command that ticks once per second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick runs Check and schedules the next tick. Idle expiry is
// delivered as an IdleMsg rather than through the callback when the
// caller is a bubbletea model.
func (m *Manager) HandleTick() tea.Cmd {
	var idleCmd tea.Cmd

	m.mu.Lock()
	if m.idleTimeout > 0 && !m.idleFired {
		if idle := time.Since(m.lastActivity); idle >= m.idleTimeout {
			m.idleFired = true
			idleCmd = func() tea.Msg { return IdleMsg{Idle: idle} }
		}
	}
	shouldSave := m.autosaveInterval > 0 && m.dirty &&
		time.Since(m.lastAutosave) >= m.autosaveInterval
	m.mu.Unlock()

	if shouldSave {
		_ = m.SaveNow()
	}

	if idleCmd != nil {
		return tea.Batch(idleCmd, TickCmd())
	}
	return TickCmd()
}
