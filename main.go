// golem - terminal chat for self-hosted LLM servers.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/golem-tui/internal/cli"
	"github.com/jeranaias/golem-tui/internal/commands"
	"github.com/jeranaias/golem-tui/internal/memory"
	"github.com/jeranaias/golem-tui/internal/session"
	"github.com/jeranaias/golem-tui/internal/telemetry"
	"github.com/jeranaias/golem-tui/internal/tools"
	"github.com/jeranaias/golem-tui/internal/ui/chat"
	"github.com/jeranaias/golem-tui/internal/util"
	"github.com/jeranaias/golem-tui/internal/vault"
)

func main() {
	cmd, args := cli.Parse()

	if args.NoColor {
		cli.DisableColors()
	}

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdAsk:
		cli.RunAsk(args)
	case cli.CmdChat:
		cli.RunChat(args)
	case cli.CmdServe:
		cli.RunServe(args)
	case cli.CmdStatus:
		cli.RunStatus(args)
	case cli.CmdSessions:
		cli.RunSessions(args)
	case cli.CmdExport:
		cli.RunExport(args)
	case cli.CmdConfig:
		cli.RunConfig(args)
	case cli.CmdVersion:
		cli.RunVersion()
	case cli.CmdHelp:
		cli.Usage()
	}
}

// runTUI wires the service graph and starts the chat view.
func runTUI(args cli.Args) {
	cfg, err := cli.LoadConfig(args)
	if err != nil {
		cli.Fatal("%v", err)
	}
	client := cli.NewHiveClient(cfg)

	// Conversation storage; the TUI still works without it
	store, err := cli.OpenStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: conversation store unavailable: %v\n", err)
		store = nil
	}

	sess := session.New(store, session.Config{
		AutosaveInterval: time.Duration(cfg.Storage.AutosaveIntervalSecs) * time.Second,
	})

	cmdCtx := commands.NewContext(cfg, client, store, sess)

	// Durable facts store (SQLite)
	if dir, err := util.ConfigDir(); err == nil {
		if mem, err := memory.NewStore(filepath.Join(dir, "memory.db")); err == nil {
			cmdCtx.Memory = mem
			defer mem.Close()
		} else {
			fmt.Fprintf(os.Stderr, "warning: facts store unavailable: %v\n", err)
		}
	}

	// Markdown notes vault, when configured
	if cfg.Vault.Path != "" {
		if v, err := vault.Open(util.ExpandHome(cfg.Vault.Path)); err == nil {
			cmdCtx.Vault = v
		} else {
			fmt.Fprintf(os.Stderr, "warning: vault unavailable: %v\n", err)
		}
	}

	// Usage tallies persist across runs
	if tracker, err := telemetry.NewTracker(""); err == nil {
		cmdCtx.Usage = tracker
	}

	var toolReg *tools.Registry
	if cfg.Tools.Enabled {
		toolReg = tools.NewRegistry(tools.Options{
			Memory:       cmdCtx.Memory,
			Vault:        cmdCtx.Vault,
			Client:       client,
			ShellTimeout: time.Duration(cfg.Tools.ShellTimeoutSecs) * time.Second,
		})
		cmdCtx.Tools = toolReg
	}

	if err := chat.Run(chat.Deps{
		Config:  cfg,
		Client:  client,
		Session: sess,
		CmdCtx:  cmdCtx,
		Tools:   toolReg,
	}); err != nil {
		cli.Fatal("tui: %v", err)
	}
}
