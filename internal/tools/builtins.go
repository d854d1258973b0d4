// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeranaias/golem-tui/internal/memory"
	"github.com/jeranaias/golem-tui/internal/util"
	"github.com/jeranaias/golem-tui/internal/vault"
)

// =============================================================================
// BUILTIN TOOLS
// =============================================================================

const (
	// maxFileReadChars caps read_file output fed to the model.
	maxFileReadChars = 8000

	// maxListEntries caps list_dir output.
	maxListEntries = 100

	// maxSearchMatches caps search_text output lines.
	maxSearchMatches = 50

	// maxSearchFileSize skips files too large to scan line by line.
	maxSearchFileSize = 1 << 20
)

func (r *Registry) registerBuiltins(opts Options) {
	r.Register(&ToolDef{
		Name:        "read_file",
		Description: "Read a file and return its contents (truncated to 8K chars)",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Path to the file to read"}
			},
			"required": ["path"]
		}`),
		Handler: r.handleReadFile,
	})

	r.Register(&ToolDef{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories if needed",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "Path to write to"},
				"content": {"type": "string", "description": "Content to write"}
			},
			"required": ["path", "content"]
		}`),
		Handler:         r.handleWriteFile,
		RequiresConfirm: true,
	})

	r.Register(&ToolDef{
		Name:        "list_dir",
		Description: "List directory entries, optionally filtered by a glob pattern",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"directory": {"type": "string", "description": "Directory to list (default .)"},
				"pattern": {"type": "string", "description": "Glob pattern to filter names (default *)"}
			}
		}`),
		Handler: r.handleListDir,
	})

	r.Register(&ToolDef{
		Name:        "run_command",
		Description: "Execute a shell command and return its output with the exit code",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"command": {"type": "string", "description": "Shell command to execute"}
			},
			"required": ["command"]
		}`),
		Handler:         r.handleRunCommand,
		RequiresConfirm: true,
	})

	r.Register(&ToolDef{
		Name:        "search_text",
		Description: "Search files under a directory for a substring, returning matching lines",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Text to search for (case-insensitive)"},
				"directory": {"type": "string", "description": "Directory to search (default .)"}
			},
			"required": ["query"]
		}`),
		Handler: r.handleSearchText,
	})

	r.Register(&ToolDef{
		Name:        "fetch_url",
		Description: "Fetch a URL and return its readable text content",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "HTTP or HTTPS URL to fetch"}
			},
			"required": ["url"]
		}`),
		Handler: handleFetchURL,
	})

	if opts.Client != nil {
		r.registerWebSearch(opts.Client)
	}
	if opts.Memory != nil {
		r.registerMemoryTools(opts.Memory)
	}
	if opts.Vault != nil {
		r.registerVaultTools(opts.Vault)
	}
}

// =============================================================================
// FILE TOOLS
// =============================================================================

// resolvePath anchors relative paths at the registry's working directory
// and expands ~.
func (r *Registry) resolvePath(path string) string {
	path = util.ExpandHome(path)
	if filepath.IsAbs(path) || r.WorkDir == "" {
		return path
	}
	return filepath.Join(r.WorkDir, path)
}

func (r *Registry) handleReadFile(_ context.Context, call Call) (string, error) {
	path := r.resolvePath(call.GetString("path", ""))
	if path == "" {
		return "error: path is required", nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("error: %s not found", call.GetString("path", "")), nil
	}
	if info.IsDir() {
		return fmt.Sprintf("error: %s is a directory", call.GetString("path", "")), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}

	text := string(data)
	if len(text) > maxFileReadChars {
		text = util.TruncateBytes(text, maxFileReadChars) + "\n...(truncated at 8K chars)"
	}
	return text, nil
}

func (r *Registry) handleWriteFile(_ context.Context, call Call) (string, error) {
	rawPath := call.GetString("path", "")
	content := call.GetString("content", "")
	path := r.resolvePath(rawPath)
	if path == "" {
		return "error: path is required", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}
	if err := util.AtomicWriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}
	return fmt.Sprintf("wrote %d chars to %s", len(content), rawPath), nil
}

func (r *Registry) handleListDir(_ context.Context, call Call) (string, error) {
	dir := r.resolvePath(call.GetString("directory", "."))
	pattern := call.GetString("pattern", "*")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if ok, _ := filepath.Match(pattern, name); !ok {
			continue
		}
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
		if len(names) >= maxListEntries {
			break
		}
	}
	if len(names) == 0 {
		return "(no matches)", nil
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

// =============================================================================
// SHELL AND SEARCH TOOLS
// =============================================================================

func (r *Registry) handleRunCommand(ctx context.Context, call Call) (string, error) {
	command := call.GetString("command", "")
	if command == "" {
		return "error: command is required", nil
	}

	result, err := RunShell(ctx, command, r.ShellTimeout)
	if err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}
	return result.FormatResult(), nil
}

func (r *Registry) handleSearchText(_ context.Context, call Call) (string, error) {
	query := call.GetString("query", "")
	if query == "" {
		return "error: query is required", nil
	}
	root := r.resolvePath(call.GetString("directory", "."))
	lowerQuery := strings.ToLower(query)

	var matches []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || len(matches) >= maxSearchMatches {
			return nil
		}
		name := filepath.Base(path)
		if info.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Size() > maxSearchFileSize {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil || !strings.Contains(strings.ToLower(string(data)), lowerQuery) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		for i, line := range strings.Split(string(data), "\n") {
			if len(matches) >= maxSearchMatches {
				break
			}
			if strings.Contains(strings.ToLower(line), lowerQuery) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, i+1, util.TruncateRunes(strings.TrimSpace(line), 200)))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Sprintf("error: %v", err), nil
	}
	if len(matches) == 0 {
		return "(no matches)", nil
	}
	return strings.Join(matches, "\n"), nil
}

// =============================================================================
// FACTS AND VAULT TOOLS
// =============================================================================

func (r *Registry) registerMemoryTools(store *memory.Store) {
	r.Register(&ToolDef{
		Name:        "remember_fact",
		Description: "Store a persistent fact in the knowledge base",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"fact": {"type": "string", "description": "The fact to remember"},
				"tags": {"type": "string", "description": "Optional comma-separated tags"}
			},
			"required": ["fact"]
		}`),
		Handler: func(_ context.Context, call Call) (string, error) {
			content := call.GetString("fact", "")
			if content == "" {
				return "error: fact is required", nil
			}
			var tags []string
			if raw := call.GetString("tags", ""); raw != "" {
				tags = strings.Split(raw, ",")
			}
			fact, err := store.Remember(content, tags)
			if err != nil {
				return fmt.Sprintf("error: %v", err), nil
			}
			return fmt.Sprintf("remembered fact #%d", fact.ID), nil
		},
	})

	r.Register(&ToolDef{
		Name:        "recall_facts",
		Description: "Search the knowledge base for stored facts",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search text; empty returns recent facts"}
			}
		}`),
		Handler: func(_ context.Context, call Call) (string, error) {
			facts, err := store.Recall(call.GetString("query", ""), 10)
			if err != nil {
				return fmt.Sprintf("error: %v", err), nil
			}
			if len(facts) == 0 {
				return "(no facts found)", nil
			}
			var sb strings.Builder
			for _, fact := range facts {
				fmt.Fprintf(&sb, "#%d %s\n", fact.ID, fact.Content)
			}
			return strings.TrimRight(sb.String(), "\n"), nil
		},
	})
}

func (r *Registry) registerVaultTools(v *vault.Vault) {
	r.Register(&ToolDef{
		Name:        "vault_search",
		Description: "Search the notes vault by filename and content",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Search text"}
			},
			"required": ["query"]
		}`),
		Handler: func(_ context.Context, call Call) (string, error) {
			notes, err := v.Search(call.GetString("query", ""), 10)
			if err != nil {
				return fmt.Sprintf("error: %v", err), nil
			}
			if len(notes) == 0 {
				return "(no notes found)", nil
			}
			var names []string
			for _, note := range notes {
				names = append(names, note.Relative)
			}
			return strings.Join(names, "\n"), nil
		},
	})

	r.Register(&ToolDef{
		Name:        "vault_read",
		Description: "Read a note from the vault by name or relative path",
		Parameters: params(`{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Note name or relative path"}
			},
			"required": ["name"]
		}`),
		Handler: func(_ context.Context, call Call) (string, error) {
			content, err := v.Read(call.GetString("name", ""))
			if err != nil {
				return fmt.Sprintf("error: %v", err), nil
			}
			if len(content) > maxFileReadChars {
				content = util.TruncateBytes(content, maxFileReadChars) + "\n...(truncated)"
			}
			return content, nil
		},
	})
}
