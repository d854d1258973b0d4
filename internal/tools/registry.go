// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/memory"
	"github.com/jeranaias/golem-tui/internal/vault"
)

// =============================================================================
// TOOL DEFINITIONS
// =============================================================================

// Handler executes one tool call and returns the text fed back to the
// model. Handlers report tool-level problems ("file not found") in the
// returned string so the model can react; an error return means the
// call itself could not run.
type Handler func(ctx context.Context, call Call) (string, error)

// ToolDef describes one callable tool.
type ToolDef struct {
	// Name is the identifier the model uses.
	Name string

	// Description is shown to the model in the schema and prompt.
	Description string

	// Parameters is the JSON Schema for the arguments object.
	Parameters json.RawMessage

	// Handler runs the tool.
	Handler Handler

	// RequiresConfirm marks tools that mutate state outside golem;
	// the confirm policy decides whether to prompt.
	RequiresConfirm bool
}

// =============================================================================
// REGISTRY
// =============================================================================

// MaxSteps is the default cap on tool-call rounds per user turn.
const MaxSteps = 8

// Registry holds the available tools. Optional collaborators (facts
// store, notes vault) gate which builtins get registered.
type Registry struct {
	tools map[string]*ToolDef

	// ShellTimeout bounds run_command invocations.
	ShellTimeout time.Duration

	// WorkDir is the base directory for relative file operations.
	WorkDir string
}

// Options configures the builtin tool set.
type Options struct {
	// Memory enables remember_fact/recall_facts when non-nil.
	Memory *memory.Store

	// Vault enables vault_search/vault_read when non-nil.
	Vault *vault.Vault

	// Client enables web_search against the hive's search endpoint
	// when non-nil.
	Client *hive.Client

	// ShellTimeout bounds run_command; zero means DefaultShellTimeout.
	ShellTimeout time.Duration

	// WorkDir is the base directory for relative paths; empty means
	// the process working directory.
	WorkDir string
}

// NewRegistry builds a registry with the builtin tools wired to the
// given collaborators.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		tools:        make(map[string]*ToolDef),
		ShellTimeout: opts.ShellTimeout,
		WorkDir:      opts.WorkDir,
	}
	if r.ShellTimeout <= 0 {
		r.ShellTimeout = DefaultShellTimeout
	}
	r.registerBuiltins(opts)
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(def *ToolDef) {
	r.tools[def.Name] = def
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *ToolDef {
	return r.tools[name]
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []*ToolDef {
	defs := make([]*ToolDef, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute dispatches one parsed call to its handler.
func (r *Registry) Execute(ctx context.Context, call Call) (string, error) {
	def := r.Get(call.Name)
	if def == nil {
		return "", fmt.Errorf("unknown tool: %s", call.Name)
	}
	return def.Handler(ctx, call)
}

// NeedsConfirm reports whether a call should prompt under the given
// policy ("always", "smart", "never"). Under "smart" only mutating
// tools prompt, and run_command only for commands flagged dangerous.
func (r *Registry) NeedsConfirm(call Call, policy string) bool {
	switch strings.ToLower(policy) {
	case "never":
		return false
	case "always":
		return true
	}

	def := r.Get(call.Name)
	if def == nil || !def.RequiresConfirm {
		return false
	}
	if call.Name == "run_command" {
		return Dangerous(call.GetString("command", ""))
	}
	return true
}

// =============================================================================
// SCHEMA RENDERING
// =============================================================================

// Schemas returns the tool set in the OpenAI function format for the
// request's tools array.
func (r *Registry) Schemas() []hive.Tool {
	defs := r.All()
	out := make([]hive.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, hive.Tool{
			Type: "function",
			Function: hive.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return out
}

// SystemPrompt renders the prompt suffix teaching tag-based calling to
// models without native function support.
func (r *Registry) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("\n\nYou have access to the following tools. To use a tool, output a <tool_call> tag:\n")
	sb.WriteString(`<tool_call>{"name": "tool_name", "arguments": {...}}</tool_call>`)
	sb.WriteString("\n\nAvailable tools:\n")

	for _, def := range r.All() {
		sb.WriteString("- ")
		sb.WriteString(def.Name)
		sb.WriteString(": ")
		sb.WriteString(def.Description)
		sb.WriteString("\n")

		var schema struct {
			Properties map[string]struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			} `json:"properties"`
		}
		if json.Unmarshal(def.Parameters, &schema) != nil {
			continue
		}
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := schema.Properties[name]
			fmt.Fprintf(&sb, "    %s (%s): %s\n", name, p.Type, p.Description)
		}
	}

	return sb.String()
}

// params is a shorthand for building a JSON Schema object literal.
func params(s string) json.RawMessage {
	return json.RawMessage(s)
}
