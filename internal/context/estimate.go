// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"github.com/jeranaias/golem-tui/internal/model"
)

// Token estimation for the status bar and /stats. The budget itself is
// enforced in characters (Prune); these figures exist so users can relate
// the conversation to a model's context window without a tokenizer.
//
// Calibration: ~3.5 characters per token, measured against the tokenizers
// of the model families a hive typically serves (qwen, llama, deepseek).
// Each message additionally costs a few tokens of chat-template framing.

const messageOverheadTokens = 4

// EstimateText approximates the token count of a text fragment.
func EstimateText(s string) int {
	return len(s) * 2 / 7
}

// Estimate approximates the total prompt tokens a message sequence will
// consume, including per-message template overhead.
func Estimate(msgs []*model.Message) int {
	total := 0
	for _, msg := range msgs {
		total += EstimateText(msg.Content) + messageOverheadTokens
	}
	return total
}

// EstimatePercent returns Estimate as a percentage of a context window,
// clamped to [0, 100]. A non-positive window yields 0.
func EstimatePercent(msgs []*model.Message, contextWindow int) float64 {
	if contextWindow <= 0 {
		return 0
	}
	pct := float64(Estimate(msgs)) / float64(contextWindow) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
