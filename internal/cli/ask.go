// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question command.
//
// Streams the answer to stdout as it arrives. When stdout is a TTY the
// settled answer is re-rendered through glamour; piped output stays
// plain so it composes with other tools.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"

	golemctx "github.com/jeranaias/golem-tui/internal/context"
	"github.com/jeranaias/golem-tui/internal/hive"
)

// maxAskFileSize caps --file attachments at 50KB.
const maxAskFileSize = 50 * 1024

// RunAsk executes the ask command.
func RunAsk(args Args) {
	if strings.TrimSpace(args.Query) == "" {
		Fatal("usage: golem ask \"question\" [--file FILE]")
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		Fatal("%v", err)
	}
	client := NewHiveClient(cfg)
	if !client.IsConfigured() {
		Fatal("no hive configured; set one with: golem config set hive.url http://host:8090/v1")
	}

	prompt := args.Query
	if args.File != "" {
		attached, err := readAttachment(args.File)
		if err != nil {
			Fatal("%v", err)
		}
		prompt = fmt.Sprintf("%s\n\n--- %s ---\n%s", prompt, args.File, attached)
	}

	// Expand @file: and @clip references like the TUI does
	expander := golemctx.NewExpander("")
	expandCtx, cancelExpand := context.WithTimeout(context.Background(), 5*time.Second)
	prompt, _ = expander.ExpandRefs(expandCtx, prompt)
	cancelExpand()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C cancels the stream but keeps what already printed
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	req := hive.ChatRequest{
		Model: client.GetModel(),
		Messages: []hive.ChatMessage{
			{Role: "user", Content: prompt},
		},
		Stream: true,
	}

	start := time.Now()
	var answer strings.Builder
	inReasoning := false

	err = client.ChatStreamWithRetry(ctx, req, func(chunk hive.StreamChunk) {
		if r := chunk.GetReasoning(); r != "" && !args.Quiet {
			if !inReasoning {
				inReasoning = true
				fmt.Fprint(os.Stderr, reasoningStyle.Render("· thinking "))
			}
			// Reasoning progress goes to stderr as dots; the full chain
			// is noise on a one-shot ask
			fmt.Fprint(os.Stderr, reasoningStyle.Render("."))
		}
		if c := chunk.GetContent(); c != "" {
			if inReasoning {
				inReasoning = false
				fmt.Fprintln(os.Stderr)
			}
			answer.WriteString(c)
			if !IsStdoutTTY() {
				// Piped: stream plain text straight through
				fmt.Print(c)
			}
		}
	})

	interrupted := ctx.Err() != nil
	if err != nil && !interrupted {
		Fatal("ask failed: %v", err)
	}
	if inReasoning {
		fmt.Fprintln(os.Stderr)
	}

	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(answer.String()))
	} else if answer.Len() > 0 {
		fmt.Println()
	}

	if interrupted {
		info(args.Quiet, "(interrupted)")
	}
	info(args.Quiet, "%s · %s", client.GetModel(), time.Since(start).Round(100*time.Millisecond))
}

// readAttachment reads a file for --file, enforcing the size cap.
func readAttachment(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if st.Size() > maxAskFileSize {
		return "", fmt.Errorf("%s is %d bytes; attachment limit is %d", path, st.Size(), maxAskFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders content through glamour for terminal display,
// falling back to the raw text when rendering fails.
func renderMarkdown(content string) string {
	width := TerminalWidth()
	if width > 100 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}
