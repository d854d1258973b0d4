// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/golem-tui/internal/config"
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/memory"
	"github.com/jeranaias/golem-tui/internal/session"
	"github.com/jeranaias/golem-tui/internal/storage"
	"github.com/jeranaias/golem-tui/internal/telemetry"
	"github.com/jeranaias/golem-tui/internal/tools"
	"github.com/jeranaias/golem-tui/internal/vault"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/load <session>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Handler is the function that executes the command
	Handler func(ctx *Context, args []string) tea.Cmd

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	// Name of the argument
	Name string

	// Required indicates if the argument must be provided
	Required bool

	// Type determines completion behavior
	Type ArgType

	// Description explains the argument
	Description string

	// Values for enum types
	Values []string

	// Completer for custom completion
	Completer func() []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString  ArgType = iota // Free-form string
	ArgTypeModel                  // Model name from the hive server
	ArgTypeSession                // Session ID from saved sessions
	ArgTypeFile                   // File path
	ArgTypeEnum                   // One of predefined values
	ArgTypeTool                   // Tool name
	ArgTypeConfig                 // Config key
	ArgTypeNote                   // Vault note name
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	return cmds
}

// ByCategory returns commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.commands {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = "General"
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Navigation
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show help and available commands",
		Usage:       "/help [<category>]",
		Args: []ArgDef{
			{
				Name:        "category",
				Required:    false,
				Type:        ArgTypeEnum,
				Values:      []string{"navigation", "conversation", "model", "memory", "tools", "settings"},
				Description: "Help category",
			},
		},
		Category: "Navigation",
		Handler:  HandleHelp,
	})

	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit golem",
		Category:    "Navigation",
		Handler:     HandleQuit,
	})

	// Conversation
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new conversation",
		Category:    "Conversation",
		Handler:     HandleNew,
	})

	r.Register(&Command{
		Name:        "/clear",
		Aliases:     []string{"/c"},
		Description: "Clear conversation history",
		Category:    "Conversation",
		Handler:     HandleClear,
	})

	r.Register(&Command{
		Name:        "/save",
		Aliases:     []string{"/s"},
		Description: "Save current conversation",
		Usage:       "/save [name]",
		Args: []ArgDef{
			{Name: "name", Required: false, Type: ArgTypeString, Description: "Optional name for the session"},
		},
		Category: "Conversation",
		Handler:  HandleSave,
	})

	r.Register(&Command{
		Name:        "/load",
		Aliases:     []string{"/l", "/resume"},
		Description: "Load a saved conversation",
		Usage:       "/load <session>",
		Args: []ArgDef{
			{Name: "session", Required: true, Type: ArgTypeSession, Description: "Session ID or list index"},
		},
		Category: "Conversation",
		Handler:  HandleLoad,
	})

	r.Register(&Command{
		Name:        "/sessions",
		Aliases:     []string{"/list"},
		Description: "List saved sessions",
		Category:    "Conversation",
		Handler:     HandleSessions,
	})

	r.Register(&Command{
		Name:        "/copy",
		Description: "Copy last response to clipboard",
		Category:    "Conversation",
		Handler:     HandleCopy,
	})

	r.Register(&Command{
		Name:        "/export",
		Description: "Export conversation to file",
		Usage:       "/export [md|json] [path]",
		Args: []ArgDef{
			{Name: "format", Required: false, Type: ArgTypeEnum, Values: []string{"md", "json"}, Description: "Export format"},
			{Name: "path", Required: false, Type: ArgTypeFile, Description: "Output file"},
		},
		Category: "Conversation",
		Handler:  HandleExport,
	})

	// Model
	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Switch or show current model",
		Usage:       "/model [name]",
		Args: []ArgDef{
			{Name: "name", Required: false, Type: ArgTypeModel, Description: "Model to switch to"},
		},
		Category: "Model",
		Handler:  HandleModel,
	})

	r.Register(&Command{
		Name:        "/models",
		Description: "List models available on the hive",
		Category:    "Model",
		Handler:     HandleModels,
	})

	r.Register(&Command{
		Name:        "/reason",
		Aliases:     []string{"/think"},
		Description: "Toggle reasoning visibility",
		Usage:       "/reason [on|off]",
		Args: []ArgDef{
			{Name: "state", Required: false, Type: ArgTypeEnum, Values: []string{"on", "off"}, Description: "Show or hide reasoning"},
		},
		Category: "Model",
		Handler:  HandleReason,
	})

	// Memory
	r.Register(&Command{
		Name:        "/remember",
		Description: "Store a fact in long-term memory",
		Usage:       "/remember <fact> [#tag ...]",
		Args: []ArgDef{
			{Name: "fact", Required: true, Type: ArgTypeString, Description: "Fact to remember, trailing #tags are stored as tags"},
		},
		Category: "Memory",
		Handler:  HandleRemember,
	})

	r.Register(&Command{
		Name:        "/recall",
		Description: "Search long-term memory",
		Usage:       "/recall <query>",
		Args: []ArgDef{
			{Name: "query", Required: true, Type: ArgTypeString, Description: "Search terms"},
		},
		Category: "Memory",
		Handler:  HandleRecall,
	})

	r.Register(&Command{
		Name:        "/facts",
		Description: "List stored facts",
		Category:    "Memory",
		Handler:     HandleFacts,
	})

	r.Register(&Command{
		Name:        "/forget",
		Description: "Delete a stored fact",
		Usage:       "/forget <id>",
		Args: []ArgDef{
			{Name: "id", Required: true, Type: ArgTypeString, Description: "Fact ID from /facts"},
		},
		Category: "Memory",
		Handler:  HandleForget,
	})

	r.Register(&Command{
		Name:        "/vault",
		Description: "Search or read the notes vault",
		Usage:       "/vault [search <query>|read <note>|recent|tags|daily]",
		Args: []ArgDef{
			// Action is a plain string so bare "/vault <terms>" can fall
			// through to a search; the completer still offers the verbs.
			{Name: "action", Required: false, Type: ArgTypeString, Description: "Vault action or search terms",
				Completer: func() []string { return []string{"search", "read", "recent", "tags", "daily"} }},
			{Name: "arg", Required: false, Type: ArgTypeNote, Description: "Query or note name"},
		},
		Category: "Memory",
		Handler:  HandleVault,
	})

	// Tools
	r.Register(&Command{
		Name:        "/tools",
		Description: "List available tools and the confirm policy",
		Category:    "Tools",
		Handler:     HandleTools,
	})

	// Settings
	r.Register(&Command{
		Name:        "/config",
		Description: "Show or edit configuration",
		Usage:       "/config [key] [value]",
		Args: []ArgDef{
			{Name: "key", Required: false, Type: ArgTypeConfig, Description: "Config key to show/set"},
			{Name: "value", Required: false, Type: ArgTypeString, Description: "New value"},
		},
		Category: "Settings",
		Handler:  HandleConfig,
	})

	r.Register(&Command{
		Name:        "/stats",
		Aliases:     []string{"/usage"},
		Description: "Show token usage statistics",
		Usage:       "/stats [session|lifetime|recent]",
		Args: []ArgDef{
			{Name: "view", Required: false, Type: ArgTypeEnum, Values: []string{"session", "lifetime", "recent"}, Description: "Stats view"},
		},
		Category: "Settings",
		Handler:  HandleStats,
	})

	r.Register(&Command{
		Name:        "/status",
		Description: "Show connection and session status",
		Category:    "Settings",
		Handler:     HandleStatus,
	})
}

// =============================================================================
// CONTEXT TYPE
// =============================================================================

// Context provides access to application state for command handlers.
// It follows the dependency injection pattern, allowing handlers to access
// services without direct coupling to the application structure.
//
// All fields are optional and may be nil - handlers check before use and
// fall back to emitting a request message for the UI to fulfill.
type Context struct {
	// Config provides access to application configuration
	Config *config.Config

	// Hive is the client for the inference server
	Hive *hive.Client

	// Storage handles conversation persistence
	Storage *storage.Store

	// Session manages the live conversation
	Session *session.Manager

	// Memory is the durable facts store
	Memory *memory.Store

	// Vault is the markdown notes vault (optional)
	Vault *vault.Vault

	// Usage tracks token consumption
	Usage *telemetry.Tracker

	// Tools is the tool registry (nil when tools are disabled)
	Tools *tools.Registry
}

// NewContext creates a new command context with the given dependencies.
// All parameters are optional and can be nil.
func NewContext(cfg *config.Config, client *hive.Client, store *storage.Store, sess *session.Manager) *Context {
	return &Context{
		Config:  cfg,
		Hive:    client,
		Storage: store,
		Session: sess,
	}
}

// RecordActivity records user activity in the session manager if available.
func (c *Context) RecordActivity() {
	if c.Session != nil {
		c.Session.RecordActivity()
	}
}

// MarkDirty marks the session as having unsaved changes.
func (c *Context) MarkDirty() {
	if c.Session != nil {
		c.Session.MarkDirty()
	}
}

// =============================================================================
// COMPLETION TYPE
// =============================================================================

// Completion represents a completion suggestion.
type Completion struct {
	// Value to insert
	Value string

	// Display text (may include formatting)
	Display string

	// Description shown alongside
	Description string

	// Score for ranking (higher = better match)
	Score int

	// IsCurrent indicates this is the current selection
	IsCurrent bool
}
