// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Argument parsing and command dispatch for golem.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (overridden at build time via -ldflags).
var (
	Version   = "0.4.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdServe
	CmdStatus
	CmdSessions
	CmdExport
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Model   string // --model overrides the configured model
	URL     string // --url overrides the hive URL
	NoColor bool   // --no-color disables styled output
	Quiet   bool   // --quiet suppresses informational chatter

	// Command-specific
	Query      string // ask: the question
	File       string // ask: --file attachment
	Subcommand string // sessions/config: first positional
	ConfigKey  string
	ConfigVal  string
	Format     string // export: --format md|json|html
	Output     string // export: --output directory
	SessionID  string // export/sessions: target session

	// serve
	ListenAddr string // --listen host:port

	// Raw args remaining after flag parsing
	Raw []string
}

const usageText = `golem - terminal chat for self-hosted LLMs

Golem talks to any OpenAI-compatible inference server (llama.cpp,
vLLM, ollama, LM Studio) and keeps reasoning models readable: think
spans stream live and collapse out of your way.

Usage:
  golem                       Start the TUI (default)
  golem ask "question"        One-shot question, answer to stdout
  golem chat                  Line-based REPL (no TUI)
  golem serve                 Relay server with auth and rate limits
  golem status                Show hive connectivity and config
  golem sessions [list|show|delete] Manage saved conversations
  golem export <id>           Export a saved conversation
  golem config [get|set|list] Configuration
  golem version               Version information
  golem help                  This help

Global flags:
  --model NAME    Use a specific model for this invocation
  --url URL       Hive base URL (e.g. http://host:8090/v1)
  --no-color      Disable colored output
  -q, --quiet     Minimal output

Ask flags:
  -f, --file FILE Attach a file to the question

Export flags:
  --format FMT    md, json, or html (default: md)
  --output DIR    Output directory (default: current)

Serve flags:
  --listen ADDR   Listen address (default: from config)

Examples:
  golem ask "why does my mutex deadlock?"
  golem ask -f main.go "review this"
  golem chat
  golem serve --listen 0.0.0.0:8090
  golem export conv-a1b2c3 --format html
  golem config set hive.url http://gpu-box:8090/v1
`

// Usage prints the top-level help text.
func Usage() {
	fmt.Print(usageText)
}

// Parse reads os.Args and returns the command plus its arguments.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

func parseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "ask":
		parseAskArgs(&args, remaining)
		return CmdAsk, args

	case "chat":
		return CmdChat, args

	case "serve":
		parseServeArgs(&args, remaining)
		return CmdServe, args

	case "status", "s":
		return CmdStatus, args

	case "session", "sessions":
		parseSessionsArgs(&args, remaining)
		return CmdSessions, args

	case "export":
		parseExportArgs(&args, remaining)
		return CmdExport, args

	case "config":
		parseConfigArgs(&args, remaining)
		return CmdConfig, args

	case "version", "--version", "-v":
		return CmdVersion, args

	case "help", "--help", "-h":
		return CmdHelp, args
	}

	// Unknown command; suggest a correction when one is close
	fmt.Fprintf(os.Stderr, "golem: unknown command %q\n", cmd)
	if suggestion := SuggestCommand(cmd); suggestion != "" {
		fmt.Fprintf(os.Stderr, "Did you mean %q?\n", suggestion)
	}
	fmt.Fprintln(os.Stderr, "Run 'golem help' for usage.")
	os.Exit(2)
	return CmdHelp, args
}

// parseGlobalFlags extracts flags valid for every command and returns
// the remaining arguments.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	var remaining []string

	i := 0
	for i < len(argv) {
		arg := argv[i]
		switch {
		case arg == "--no-color":
			args.NoColor = true
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "--model" || arg == "-m":
			if i+1 < len(argv) {
				args.Model = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--model="):
			args.Model = strings.TrimPrefix(arg, "--model=")
		case arg == "--url":
			if i+1 < len(argv) {
				args.URL = argv[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--url="):
			args.URL = strings.TrimPrefix(arg, "--url=")
		default:
			remaining = append(remaining, arg)
		}
		i++
	}
	return remaining, args
}

func parseAskArgs(args *Args, argv []string) {
	p := NewArgParser(argv)
	args.File = p.FlagOrDefault("file", p.Flag("f"))
	args.Query = strings.Join(p.PositionalFrom(0), " ")
}

func parseServeArgs(args *Args, argv []string) {
	p := NewArgParser(argv)
	args.ListenAddr = p.Flag("listen")
}

func parseSessionsArgs(args *Args, argv []string) {
	p := NewArgParser(argv)
	args.Subcommand = p.Subcommand()
	args.SessionID = p.Positional(1)
}

func parseExportArgs(args *Args, argv []string) {
	p := NewArgParser(argv)
	args.SessionID = p.Positional(0)
	args.Format = p.FlagOrDefault("format", "md")
	args.Output = p.FlagOrDefault("output", ".")
}

func parseConfigArgs(args *Args, argv []string) {
	p := NewArgParser(argv)
	args.Subcommand = p.Subcommand()
	args.ConfigKey = p.Positional(1)
	args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
}
