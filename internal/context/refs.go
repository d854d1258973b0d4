// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package context

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jeranaias/golem-tui/internal/util"
)

// =============================================================================
// REFERENCE EXPANSION
// =============================================================================

const (
	// MaxRefChars caps the content inlined for a single reference.
	MaxRefChars = 8000

	// RefTruncationMarker is appended when a reference was cut at MaxRefChars.
	RefTruncationMarker = "\n...(file truncated)"

	// clipboardTimeout bounds clipboard tool invocations.
	clipboardTimeout = 5 * time.Second

	refDivider = "----------------------------------------"
)

var (
	// ErrClipboardUnavailable is returned when no clipboard tool exists.
	ErrClipboardUnavailable = errors.New("clipboard unavailable")

	// ErrClipboardEmpty is returned when the clipboard has no text.
	ErrClipboardEmpty = errors.New("clipboard is empty")
)

// refPattern matches @target tokens at a word boundary. The leading
// whitespace-or-start guard keeps email addresses and code like a@b from
// matching.
var refPattern = regexp.MustCompile(`(?:^|\s)@([^\s@]+)`)

// Ref is one expanded reference from user input.
type Ref struct {
	// Raw is the token as typed ("@notes/todo.md", "@clip").
	Raw string

	// Target is the resolved subject: a file path, or "clipboard".
	Target string

	// Content is the inlined text (possibly truncated).
	Content string

	// Truncated is true when Content was cut at MaxRefChars.
	Truncated bool

	// Err is set when the reference resolved but could not be read.
	Err error
}

// Expander resolves @ references against a working directory.
type Expander struct {
	dir   string
	cache *FileCache
}

// NewExpander creates an expander rooted at dir. An empty dir means the
// current working directory.
func NewExpander(dir string) *Expander {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Expander{
		dir:   dir,
		cache: DefaultFileCache,
	}
}

// ExpandRefs scans input for @ references and returns the input with
// matching content appended as labeled blocks, plus the list of references
// that resolved. @clip inlines the clipboard; any other @token names a file
// relative to the expander's directory. Tokens that do not name an existing
// file are left verbatim and produce no block, so plain prose mentioning
// @someone is unaffected.
func (e *Expander) ExpandRefs(ctx context.Context, input string) (string, []Ref) {
	matches := refPattern.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return input, nil
	}

	var refs []Ref
	var blocks []string
	seen := make(map[string]bool)

	for _, m := range matches {
		target := m[1]
		if seen[target] {
			continue
		}
		seen[target] = true

		if strings.EqualFold(target, "clip") || strings.EqualFold(target, "clipboard") {
			ref := e.expandClipboard(ctx, "@"+target)
			refs = append(refs, ref)
			if ref.Err == nil {
				blocks = append(blocks, "Clipboard:\n"+refDivider+"\n"+ref.Content)
			}
			continue
		}

		ref, ok := e.expandFile(target)
		if !ok {
			continue
		}
		refs = append(refs, ref)
		if ref.Err == nil {
			blocks = append(blocks, "File: "+target+"\n"+refDivider+"\n"+ref.Content)
		}
	}

	if len(blocks) == 0 {
		return input, refs
	}
	return input + "\n\n" + strings.Join(blocks, "\n\n"), refs
}

// expandFile resolves a file reference. The second return is false when the
// token does not name an existing file and should stay verbatim.
func (e *Expander) expandFile(target string) (Ref, bool) {
	path := util.ExpandHome(target)
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, path)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Ref{}, false
	}

	ref := Ref{Raw: "@" + target, Target: path}

	if e.cache != nil {
		if content, truncated, hit := e.cache.Get(path); hit {
			ref.Content = content
			ref.Truncated = truncated
			return ref, true
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		ref.Err = err
		return ref, true
	}

	content := string(data)
	if len(content) > MaxRefChars {
		content = util.TruncateBytes(content, MaxRefChars) + RefTruncationMarker
		ref.Truncated = true
	}
	ref.Content = content

	if e.cache != nil {
		e.cache.Put(path, content, info.ModTime(), ref.Truncated)
	}
	return ref, true
}

// expandClipboard reads the system clipboard through whichever tool is
// installed, trying Wayland first.
func (e *Expander) expandClipboard(ctx context.Context, raw string) Ref {
	ref := Ref{Raw: raw, Target: "clipboard"}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, clipboardTimeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	switch {
	case commandExists("wl-paste"):
		cmd = exec.CommandContext(ctx, "wl-paste", "--no-newline")
	case commandExists("xclip"):
		cmd = exec.CommandContext(ctx, "xclip", "-selection", "clipboard", "-o")
	case commandExists("xsel"):
		cmd = exec.CommandContext(ctx, "xsel", "--clipboard", "--output")
	case commandExists("pbpaste"):
		cmd = exec.CommandContext(ctx, "pbpaste")
	default:
		ref.Err = ErrClipboardUnavailable
		return ref
	}

	output, err := cmd.Output()
	if err != nil {
		select {
		case <-ctx.Done():
			ref.Err = ctx.Err()
		default:
			ref.Err = ErrClipboardUnavailable
		}
		return ref
	}

	content := strings.TrimSpace(string(output))
	if content == "" {
		ref.Err = ErrClipboardEmpty
		return ref
	}
	if len(content) > MaxRefChars {
		content = util.TruncateBytes(content, MaxRefChars) + RefTruncationMarker
		ref.Truncated = true
	}
	ref.Content = content
	return ref
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// HasRefs reports whether input contains anything ExpandRefs might resolve.
func HasRefs(input string) bool {
	return refPattern.MatchString(input)
}
