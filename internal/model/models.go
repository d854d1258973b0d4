// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo contains detailed information about a model served by a hive
// backend. The authoritative list comes from the server's /v1/models
// endpoint; this registry supplies metadata the endpoint does not carry
// (context windows, reasoning support) and works offline.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Family groups related models (Qwen, DeepSeek, Llama, ...)
	Family string `json:"family"`

	// MaxTokens is the maximum context window size
	MaxTokens int `json:"max_tokens"`

	// Reasons is true for models that emit a reasoning channel
	// (reasoning_content deltas, folded into <think> spans client-side)
	Reasons bool `json:"reasons"`

	// Description is a brief explanation of the model's strengths
	Description string `json:"description"`
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Models is the registry of known self-hosted models with their metadata.
var Models = map[string]ModelInfo{
	"deepseek-r1": {
		ID:          "deepseek-r1:32b",
		Name:        "DeepSeek R1 32B",
		Family:      "DeepSeek",
		MaxTokens:   65536,
		Reasons:     true,
		Description: "Distilled reasoning model, strong at math and code",
	},
	"deepseek-r1:8b": {
		ID:          "deepseek-r1:8b",
		Name:        "DeepSeek R1 8B",
		Family:      "DeepSeek",
		MaxTokens:   65536,
		Reasons:     true,
		Description: "Smaller R1 distill for modest hardware",
	},
	"qwq": {
		ID:          "qwq:32b",
		Name:        "QwQ 32B",
		Family:      "Qwen",
		MaxTokens:   32768,
		Reasons:     true,
		Description: "Qwen reasoning preview, verbose deliberation",
	},
	"qwen3": {
		ID:          "qwen3:14b",
		Name:        "Qwen 3 14B",
		Family:      "Qwen",
		MaxTokens:   40960,
		Reasons:     true,
		Description: "Hybrid thinking mode, good all-rounder",
	},
	"qwen2.5-coder": {
		ID:          "qwen2.5-coder:14b",
		Name:        "Qwen 2.5 Coder 14B",
		Family:      "Qwen",
		MaxTokens:   32768,
		Reasons:     false,
		Description: "Optimized for code generation",
	},
	"llama3.3": {
		ID:          "llama3.3:70b",
		Name:        "Llama 3.3 70B",
		Family:      "Llama",
		MaxTokens:   131072,
		Reasons:     false,
		Description: "Meta's large general-purpose model",
	},
	"llama3.1": {
		ID:          "llama3.1:8b",
		Name:        "Llama 3.1 8B",
		Family:      "Llama",
		MaxTokens:   131072,
		Reasons:     false,
		Description: "Extended context, runs everywhere",
	},
	"mistral-small": {
		ID:          "mistral-small:24b",
		Name:        "Mistral Small 24B",
		Family:      "Mistral",
		MaxTokens:   32768,
		Reasons:     false,
		Description: "Fast and efficient general purpose",
	},
	"glm-4": {
		ID:          "glm-4:9b",
		Name:        "GLM-4 9B",
		Family:      "GLM",
		MaxTokens:   131072,
		Reasons:     false,
		Description: "Multilingual with solid tool calling",
	},
	"phi4": {
		ID:          "phi4:14b",
		Name:        "Phi-4 14B",
		Family:      "Phi",
		MaxTokens:   16384,
		Reasons:     false,
		Description: "Microsoft's compact efficient model",
	},
	"gemma3": {
		ID:          "gemma3:12b",
		Name:        "Gemma 3 12B",
		Family:      "Gemma",
		MaxTokens:   131072,
		Reasons:     false,
		Description: "Google's lightweight model",
	},
}

// =============================================================================
// MODEL INFO METHODS
// =============================================================================

// CapabilitiesString returns a comma-separated list of model capabilities.
// Infers capabilities from model properties like context size and family.
func (m ModelInfo) CapabilitiesString() string {
	caps := []string{}

	if m.MaxTokens >= 100000 {
		caps = append(caps, "Long context")
	} else if m.MaxTokens >= 32000 {
		caps = append(caps, "Extended context")
	}

	if m.Reasons {
		caps = append(caps, "Visible reasoning")
	}

	if strings.Contains(strings.ToLower(m.Name), "code") ||
		strings.Contains(strings.ToLower(m.ID), "coder") {
		caps = append(caps, "Code optimized")
	}

	if len(caps) == 0 {
		return "General purpose"
	}

	return strings.Join(caps, ", ")
}

// ReasonIcon returns a marker character for reasoning-capable models.
func (m ModelInfo) ReasonIcon() string {
	if m.Reasons {
		return "*"
	}
	return " "
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	if m.MaxTokens >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(m.MaxTokens)/1000000)
	}
	if m.MaxTokens >= 1000 {
		return fmt.Sprintf("%dK tokens", m.MaxTokens/1000)
	}
	return fmt.Sprintf("%d tokens", m.MaxTokens)
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by short name or ID.
// Returns the ModelInfo and true if found, otherwise empty ModelInfo and false.
func GetModelInfo(nameOrID string) (ModelInfo, bool) {
	// Try direct lookup by short name
	if info, ok := Models[nameOrID]; ok {
		return info, true
	}

	// Try lookup by ID
	for _, info := range Models {
		if info.ID == nameOrID {
			return info, true
		}
	}

	// Try partial match on name or ID
	lowerName := strings.ToLower(nameOrID)
	for _, info := range Models {
		if strings.Contains(strings.ToLower(info.Name), lowerName) {
			return info, true
		}
		if strings.Contains(strings.ToLower(info.ID), lowerName) {
			return info, true
		}
	}

	return ModelInfo{}, false
}

// IsReasoningModel reports whether the named model emits a reasoning channel.
// Unknown models are assumed not to reason; the assembler handles either way.
func IsReasoningModel(nameOrID string) bool {
	info, ok := GetModelInfo(nameOrID)
	return ok && info.Reasons
}

// GetModelsByFamily returns all models from a specific family.
func GetModelsByFamily(family string) []ModelInfo {
	result := []ModelInfo{}
	lowerFamily := strings.ToLower(family)

	for _, info := range Models {
		if strings.ToLower(info.Family) == lowerFamily {
			result = append(result, info)
		}
	}

	return result
}

// GetReasoningModels returns all models that emit a reasoning channel.
func GetReasoningModels() []ModelInfo {
	result := []ModelInfo{}

	for _, info := range Models {
		if info.Reasons {
			result = append(result, info)
		}
	}

	return result
}

// ModelShortNames returns a sorted slice of all model short names.
func ModelShortNames() []string {
	names := make([]string, 0, len(Models))
	for name := range Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
