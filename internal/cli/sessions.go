// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sessions.go - Saved conversation management.
package cli

import (
	"fmt"

	"github.com/jeranaias/golem-tui/internal/storage"
)

// RunSessions executes the sessions command.
func RunSessions(args Args) {
	cfg, err := LoadConfig(args)
	if err != nil {
		Fatal("%v", err)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		Fatal("open conversation store: %v", err)
	}

	switch args.Subcommand {
	case "", "list":
		listSessions(store)
	case "show":
		showSession(store, args.SessionID)
	case "delete":
		deleteSession(store, args.SessionID)
	default:
		Fatal("unknown sessions subcommand %q (list, show, delete)", args.Subcommand)
	}
}

func listSessions(store *storage.Store) {
	metas, err := store.List()
	if err != nil {
		Fatal("list sessions: %v", err)
	}
	if len(metas) == 0 {
		fmt.Println("No saved sessions.")
		return
	}

	fmt.Printf("%d saved session(s)\n\n", len(metas))
	for _, meta := range metas {
		summary := meta.Summary
		if summary == "" {
			summary = "(untitled)"
		}
		fmt.Printf("  %-14s %-40s %3d msgs  %s\n",
			meta.ID, summary, meta.MessageCount, meta.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func showSession(store *storage.Store, id string) {
	if id == "" {
		Fatal("usage: golem sessions show <id>")
	}
	conv, err := store.Load(id)
	if err != nil {
		Fatal("load %s: %v", id, err)
	}

	fmt.Println(promptStyle.Render(conv.Summary))
	fmt.Printf("%s · %d messages · %s\n\n", conv.Model, len(conv.Messages),
		conv.UpdatedAt.Format("2006-01-02 15:04"))

	for _, msg := range conv.Messages {
		label := msg.Role
		switch msg.Role {
		case "user":
			label = "you"
		case "assistant":
			label = "golem"
		}
		fmt.Println(promptStyle.Render(label + ":"))
		fmt.Println(msg.Content)
		fmt.Println()
	}
}

func deleteSession(store *storage.Store, id string) {
	if id == "" {
		Fatal("usage: golem sessions delete <id>")
	}
	if err := store.Delete(id); err != nil {
		Fatal("delete %s: %v", id, err)
	}
	fmt.Printf("Deleted %s\n", id)
}
