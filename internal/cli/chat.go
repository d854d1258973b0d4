// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based REPL for terminals where the TUI is unwanted
// (ssh sessions, screen readers, minimal environments).
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/golem-tui/internal/config"
	golemctx "github.com/jeranaias/golem-tui/internal/context"
	"github.com/jeranaias/golem-tui/internal/hive"
	"github.com/jeranaias/golem-tui/internal/model"
	"github.com/jeranaias/golem-tui/internal/tools"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// replInput wraps liner with persistent history.
type replInput struct {
	line        *liner.State
	historyFile string
}

func newReplInput() *replInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	r := &replInput{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *replInput) read(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *replInput) close() {
	if err := config.EnsureConfigDir(); err == nil {
		// History may hold prompts; owner-only permissions
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// RunChat executes the chat command.
func RunChat(args Args) {
	cfg, err := LoadConfig(args)
	if err != nil {
		Fatal("%v", err)
	}
	client := NewHiveClient(cfg)
	if !client.IsConfigured() {
		Fatal("no hive configured; set one with: golem config set hive.url http://host:8090/v1")
	}

	input := newReplInput()
	defer input.close()

	conv := model.NewConversationWithModel(client.GetModel())
	expander := golemctx.NewExpander("")
	limits := golemctx.Limits{
		MaxHistoryChars:   cfg.Context.MaxHistoryChars,
		MaxMessageChars:   cfg.Context.MaxMessageChars,
		MinRecentMessages: cfg.Context.MinRecentMessages,
	}
	showReasoning := cfg.UI.ShowReasoning

	if !args.Quiet {
		fmt.Println(promptStyle.Render("golem chat") + infoStyle.Render(" · "+client.GetModel()))
		fmt.Println(infoStyle.Render("/quit to exit · /clear resets · !cmd runs a shell command · @file: attaches"))
		fmt.Println()
	}

	for {
		raw, err := input.read(promptStyle.Render("> "))
		if err == liner.ErrPromptAborted {
			continue
		}
		if err != nil {
			// io.EOF on Ctrl+D
			fmt.Println()
			return
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		// Shell bypass: run locally, never sent to the hive
		if strings.HasPrefix(line, "!") {
			runShellLine(strings.TrimPrefix(line, "!"), cfg)
			continue
		}

		if strings.HasPrefix(line, "/") {
			switch cmd := strings.Fields(line)[0]; cmd {
			case "/quit", "/exit", "/q":
				return
			case "/clear", "/new":
				conv = model.NewConversationWithModel(client.GetModel())
				info(args.Quiet, "conversation cleared")
				continue
			case "/reasoning":
				showReasoning = !showReasoning
				info(args.Quiet, "reasoning %s", map[bool]string{true: "shown", false: "hidden"}[showReasoning])
				continue
			case "/model":
				fields := strings.Fields(line)
				if len(fields) > 1 {
					client.SetModel(fields[1])
					info(args.Quiet, "model switched to %s", fields[1])
				} else {
					fmt.Println(client.GetModel())
				}
				continue
			case "/help":
				fmt.Println("/quit /clear /reasoning /model [name] /help · !cmd for shell · @file: to attach")
				continue
			default:
				fmt.Println(warnStyle.Render("unknown command " + cmd + " (try /help)"))
				continue
			}
		}

		expandCtx, cancelExpand := context.WithTimeout(context.Background(), 5*time.Second)
		expanded, _ := expander.ExpandRefs(expandCtx, line)
		cancelExpand()

		conv.AddUserMessage(expanded)
		streamTurn(conv, client, limits, showReasoning)
	}
}

// streamTurn sends the conversation and streams one reply to stdout.
func streamTurn(conv *model.Conversation, client *hive.Client, limits golemctx.Limits, showReasoning bool) {
	pruned, report := golemctx.Prune(conv.GetHistory(), limits)
	if report.Changed() {
		conv.ReplaceMessages(pruned)
	}

	req := hive.ChatRequest{
		Model:    client.GetModel(),
		Messages: golemctx.BuildAPIHistory(conv.GetHistory()),
		Stream:   true,
	}
	conv.AddAssistantMessage()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigCh)
		cancel()
	}()
	go func() {
		<-sigCh
		cancel()
	}()

	asm := hive.NewAssembler()
	inReasoning := false

	err := client.ChatStreamWithRetry(ctx, req, func(chunk hive.StreamChunk) {
		if out := asm.Feed(chunk); out != "" {
			conv.AppendToLast(out)
		}

		if r := chunk.GetReasoning(); r != "" && showReasoning {
			if !inReasoning {
				inReasoning = true
				fmt.Print(reasoningStyle.Render("┆ "))
			}
			fmt.Print(reasoningStyle.Render(strings.ReplaceAll(r, "\n", "\n┆ ")))
		}
		if c := chunk.GetContent(); c != "" {
			if inReasoning {
				inReasoning = false
				fmt.Println()
			}
			fmt.Print(c)
		}
	})
	if tail := asm.Finish(); tail != "" {
		conv.AppendToLast(tail)
	}

	interrupted := ctx.Err() != nil
	fmt.Println()

	if interrupted {
		conv.InterruptLast()
		fmt.Println(warnStyle.Render("(interrupted)"))
		return
	}
	if err != nil {
		conv.InterruptLast()
		fmt.Println(errStyle.Render("stream failed: " + err.Error()))
		return
	}
	conv.FinalizeLast(nil)
	fmt.Println()
}

// runShellLine executes a local shell command with the configured timeout.
func runShellLine(command string, cfg *config.Config) {
	command = strings.TrimSpace(command)
	if command == "" {
		return
	}
	if tools.Dangerous(command) {
		fmt.Println(warnStyle.Render("refusing to run: " + command))
		return
	}

	timeout := 30 * time.Second
	if cfg.Tools.ShellTimeoutSecs > 0 {
		timeout = time.Duration(cfg.Tools.ShellTimeoutSecs) * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := tools.RunShell(ctx, command, timeout)
	if err != nil {
		fmt.Println(errStyle.Render(err.Error()))
		return
	}
	fmt.Print(result.FormatResult())
}
