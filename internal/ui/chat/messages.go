// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/tools"
)

// =============================================================================
// STREAM MESSAGES
// =============================================================================

// streamDeltaMsg carries assembled text emitted for one stream chunk,
// <think> markup included.
type streamDeltaMsg struct {
	text string
}

// streamDoneMsg reports a completed stream. Interrupted streams keep
// their partial content; Usage is nil when the hive did not report it.
type streamDoneMsg struct {
	stats       hive.StreamStats
	interrupted bool
}

// streamErrMsg reports a failed stream. Partial content already shown
// stays in the transcript.
type streamErrMsg struct {
	err error
}

// =============================================================================
// TOOL LOOP MESSAGES
// =============================================================================

// toolResultMsg carries the outcome of one executed tool call.
type toolResultMsg struct {
	call   tools.Call
	result string
	err    error
}

// =============================================================================
// LIFECYCLE MESSAGES
// =============================================================================

// connCheckMsg reports the initial hive reachability probe.
type connCheckMsg struct {
	ok  bool
	err error
}
