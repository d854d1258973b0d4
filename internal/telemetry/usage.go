// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// USAGE TRACKER
// =============================================================================

// promptPreviewLen bounds the stored prompt excerpt per query record.
const promptPreviewLen = 100

// maxRecentQueries caps the rolling per-session query list.
const maxRecentQueries = 50

// ModelUsage tallies tokens and requests for a single model.
type ModelUsage struct {
	Requests         int `json:"requests"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns combined prompt+completion tokens.
func (m ModelUsage) Total() int {
	return m.PromptTokens + m.CompletionTokens
}

// QueryRecord describes one request for the /stats view.
type QueryRecord struct {
	Timestamp        time.Time     `json:"timestamp"`
	Model            string        `json:"model"`
	Prompt           string        `json:"prompt"` // First 100 chars
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Duration         time.Duration `json:"duration"`
}

// Snapshot is a point-in-time copy of usage tallies.
type Snapshot struct {
	Since    time.Time             `json:"since"`
	Requests int                   `json:"requests"`
	Tokens   int                   `json:"tokens"`
	ByModel  map[string]ModelUsage `json:"by_model"`
}

// usageFile is the on-disk shape of the lifetime tallies.
type usageFile struct {
	Since   time.Time             `json:"since"`
	ByModel map[string]ModelUsage `json:"by_model"`
}

// Tracker accumulates per-model token and request tallies. Session
// tallies reset with each Tracker; lifetime tallies persist as JSON at
// ~/.golem/usage.json across runs. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	path         string
	sessionStart time.Time
	session      map[string]ModelUsage
	lifetime     map[string]ModelUsage
	lifetimeSince time.Time
	recent       []QueryRecord
}

// NewTracker loads lifetime tallies from path, creating the file's
// directory if needed. An unreadable or corrupt file starts fresh
// rather than failing: usage tracking is never worth blocking a chat.
func NewTracker(path string) (*Tracker, error) {
	if path == "" {
		dir, err := util.ConfigDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "usage.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	now := time.Now()
	t := &Tracker{
		path:          path,
		sessionStart:  now,
		session:       make(map[string]ModelUsage),
		lifetime:      make(map[string]ModelUsage),
		lifetimeSince: now,
	}

	if data, err := os.ReadFile(path); err == nil {
		var f usageFile
		if json.Unmarshal(data, &f) == nil && f.ByModel != nil {
			t.lifetime = f.ByModel
			if !f.Since.IsZero() {
				t.lifetimeSince = f.Since
			}
		}
	}

	return t, nil
}

// Record adds one request's token counts under the given model.
func (t *Tracker) Record(model string, promptTokens, completionTokens int, duration time.Duration, prompt string) {
	if model == "" {
		model = "unknown"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.session[model]
	s.Requests++
	s.PromptTokens += promptTokens
	s.CompletionTokens += completionTokens
	t.session[model] = s

	l := t.lifetime[model]
	l.Requests++
	l.PromptTokens += promptTokens
	l.CompletionTokens += completionTokens
	t.lifetime[model] = l

	t.recent = append(t.recent, QueryRecord{
		Timestamp:        time.Now(),
		Model:            model,
		Prompt:           util.TruncateRunes(prompt, promptPreviewLen),
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Duration:         duration,
	})
	if len(t.recent) > maxRecentQueries {
		t.recent = t.recent[len(t.recent)-maxRecentQueries:]
	}
}

// Session returns the current session's tallies.
func (t *Tracker) Session() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.sessionStart, t.session)
}

// Lifetime returns the persisted all-time tallies including this session.
func (t *Tracker) Lifetime() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshot(t.lifetimeSince, t.lifetime)
}

// RecentQueries returns up to limit most recent query records, newest
// last. limit <= 0 returns all retained records.
func (t *Tracker) RecentQueries(limit int) []QueryRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := t.recent
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	out := make([]QueryRecord, len(records))
	copy(out, records)
	return out
}

// Save writes the lifetime tallies to disk atomically.
func (t *Tracker) Save() error {
	t.mu.Lock()
	f := usageFile{
		Since:   t.lifetimeSince,
		ByModel: make(map[string]ModelUsage, len(t.lifetime)),
	}
	for k, v := range t.lifetime {
		f.ByModel[k] = v
	}
	path := t.path
	t.mu.Unlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(path, data, 0o600)
}

// Reset clears the lifetime tallies and persists the empty state.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	t.lifetime = make(map[string]ModelUsage)
	t.lifetimeSince = time.Now()
	t.mu.Unlock()
	return t.Save()
}

// snapshot copies a tally map into a Snapshot. Caller holds the lock.
func snapshot(since time.Time, byModel map[string]ModelUsage) Snapshot {
	snap := Snapshot{
		Since:   since,
		ByModel: make(map[string]ModelUsage, len(byModel)),
	}
	for model, usage := range byModel {
		snap.ByModel[model] = usage
		snap.Requests += usage.Requests
		snap.Tokens += usage.Total()
	}
	return snap
}

// Models returns the snapshot's model names sorted by total tokens,
// heaviest first. Ties break alphabetically for stable output.
func (s Snapshot) Models() []string {
	names := make([]string, 0, len(s.ByModel))
	for name := range s.ByModel {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := s.ByModel[names[i]].Total(), s.ByModel[names[j]].Total()
		if ti != tj {
			return ti > tj
		}
		return names[i] < names[j]
	})
	return names
}
