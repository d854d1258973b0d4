// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// exportcmd.go - Export a saved conversation to a file.
package cli

import (
	"fmt"

	"github.com/jeranaias/golem-tui/internal/export"
)

// RunExport executes the export command.
func RunExport(args Args) {
	if args.SessionID == "" {
		Fatal("usage: golem export <session-id> [--format md|json|html] [--output DIR]")
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		Fatal("%v", err)
	}

	store, err := OpenStore(cfg)
	if err != nil {
		Fatal("open conversation store: %v", err)
	}
	conv, err := store.Load(args.SessionID)
	if err != nil {
		Fatal("load %s: %v", args.SessionID, err)
	}

	opts := export.DefaultOptions()
	opts.OutputDir = args.Output
	opts.ShowReasoning = cfg.UI.ShowReasoning

	exporter, err := export.ForFormat(args.Format, opts)
	if err != nil {
		Fatal("%v", err)
	}

	path, err := export.ExportToFile(conv, exporter, opts)
	if err != nil {
		Fatal("%v", err)
	}
	fmt.Printf("Exported %s to %s\n", args.SessionID, path)
}
