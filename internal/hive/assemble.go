// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package hive

import (
	"strings"
	"sync"
	"time"
)

// =============================================================================
// STREAM ASSEMBLER
// =============================================================================

// Assembler folds the two delta channels of a streamed response into a
// single string. Reasoning deltas are wrapped in <think> markup; content
// deltas close an open reasoning span before appending.
//
// The markup contract:
//
//   - the first reasoning delta opens a span: "<think>" + text
//   - further reasoning deltas append bare text
//   - the first content delta after reasoning closes the span: "</think>\n" + text
//   - Finish closes a span left open when the stream ends
//
// A finished assembly therefore never contains an unclosed <think>.
// Assembler is not safe for concurrent use; Registry adds locking for
// multi-request routing.
type Assembler struct {
	buf     strings.Builder
	inThink bool
	done    bool

	// Stream metadata collected along the way
	model        string
	finishReason string
	usage        *Usage

	// Timing
	startTime    time.Time
	firstTokenAt time.Time
	chunkCount   int
}

// StreamStats holds statistics collected during streaming.
type StreamStats struct {
	FirstTokenTime time.Duration
	TotalTime      time.Duration
	ChunkCount     int
	Model          string
	Usage          *Usage
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		startTime: time.Now(),
	}
}

// Feed processes one stream chunk and returns the text emitted for it,
// markup included. The same text is appended to the accumulated result.
// Feeding after Finish is a no-op.
func (a *Assembler) Feed(chunk StreamChunk) string {
	if a.done {
		return ""
	}

	if chunk.Model != "" {
		a.model = chunk.Model
	}
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
	if reason := chunk.GetFinishReason(); reason != "" {
		a.finishReason = reason
	}

	var emitted strings.Builder

	// A single chunk carries reasoning or content, never meaningfully both,
	// but handle both in channel order just in case.
	if r := chunk.GetReasoning(); r != "" {
		emitted.WriteString(a.feedReasoning(r))
	}
	if c := chunk.GetContent(); c != "" {
		emitted.WriteString(a.feedContent(c))
	}

	if emitted.Len() > 0 {
		a.chunkCount++
		if a.firstTokenAt.IsZero() {
			a.firstTokenAt = time.Now()
		}
	}

	return emitted.String()
}

// feedReasoning appends a reasoning delta, opening a span if needed.
func (a *Assembler) feedReasoning(text string) string {
	var out string
	if !a.inThink {
		out = "<think>" + text
		a.inThink = true
	} else {
		out = text
	}
	a.buf.WriteString(out)
	return out
}

// feedContent appends a content delta, closing an open reasoning span first.
func (a *Assembler) feedContent(text string) string {
	var out string
	if a.inThink {
		out = "</think>\n" + text
		a.inThink = false
	} else {
		out = text
	}
	a.buf.WriteString(out)
	return out
}

// Finish marks the stream complete and returns the markup needed to close
// an open reasoning span ("" when none is open). Safe to call repeatedly;
// only the first call can emit.
func (a *Assembler) Finish() string {
	if a.done {
		return ""
	}
	a.done = true

	if a.inThink {
		a.inThink = false
		const closing = "</think>\n"
		a.buf.WriteString(closing)
		return closing
	}
	return ""
}

// String returns the accumulated response, markup included.
func (a *Assembler) String() string {
	return a.buf.String()
}

// Len returns the accumulated length in bytes.
func (a *Assembler) Len() int {
	return a.buf.Len()
}

// InThink reports whether the assembler is currently inside a reasoning span.
func (a *Assembler) InThink() bool {
	return a.inThink
}

// Done reports whether Finish has been called.
func (a *Assembler) Done() bool {
	return a.done
}

// Model returns the model name reported by the stream, if any.
func (a *Assembler) Model() string {
	return a.model
}

// FinishReason returns the finish reason reported by the stream, if any.
func (a *Assembler) FinishReason() string {
	return a.finishReason
}

// Usage returns the token usage reported on the final chunk, or nil.
func (a *Assembler) Usage() *Usage {
	return a.usage
}

// Stats returns the statistics collected during streaming.
func (a *Assembler) Stats() StreamStats {
	var ttft time.Duration
	if !a.firstTokenAt.IsZero() {
		ttft = a.firstTokenAt.Sub(a.startTime)
	}

	return StreamStats{
		FirstTokenTime: ttft,
		TotalTime:      time.Since(a.startTime),
		ChunkCount:     a.chunkCount,
		Model:          a.model,
		Usage:          a.usage,
	}
}

// =============================================================================
// ASSEMBLER REGISTRY
// =============================================================================

// Registry routes stream chunks to the assembler registered for their
// request ID. Deltas for unknown or already-finished requests are dropped,
// which keeps late chunks from a cancelled stream out of the next response.
type Registry struct {
	mu         sync.Mutex
	assemblers map[string]*Assembler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		assemblers: make(map[string]*Assembler),
	}
}

// Start registers a fresh assembler for the request ID, replacing any
// previous one under the same ID.
func (r *Registry) Start(id string) *Assembler {
	r.mu.Lock()
	defer r.mu.Unlock()

	asm := NewAssembler()
	r.assemblers[id] = asm
	return asm
}

// Feed routes a chunk to the assembler for id. The second return is false
// when no assembler is registered, in which case the delta was dropped.
func (r *Registry) Feed(id string, chunk StreamChunk) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asm, ok := r.assemblers[id]
	if !ok {
		return "", false
	}
	return asm.Feed(chunk), true
}

// Finish completes the stream for id and returns any closing markup.
// The assembler stays registered until Drop so the result can be read.
func (r *Registry) Finish(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asm, ok := r.assemblers[id]
	if !ok {
		return "", false
	}
	return asm.Finish(), true
}

// Get returns the assembler for id, if registered.
func (r *Registry) Get(id string) (*Assembler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	asm, ok := r.assemblers[id]
	return asm, ok
}

// Drop removes the assembler for id. Subsequent deltas for that request
// are dropped by Feed.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.assemblers, id)
}

// Active returns the number of registered assemblers.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.assemblers)
}
