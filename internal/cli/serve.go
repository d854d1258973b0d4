// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Relay server command.
package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/jeranaias/golem-tui/internal/server"
	"github.com/jeranaias/golem-tui/internal/telemetry"
)

// RunServe starts the OpenAI-compatible relay in the foreground.
func RunServe(args Args) {
	cfg, err := LoadConfig(args)
	if err != nil {
		Fatal("%v", err)
	}
	client := NewHiveClient(cfg)
	if !client.IsConfigured() {
		Fatal("no upstream hive configured; set one with: golem config set hive.url http://host:8090/v1")
	}

	if args.ListenAddr != "" {
		cfg.Server.Addr = args.ListenAddr
	}

	logger := log.New(os.Stderr, "golem-serve ", log.LstdFlags)

	srv := server.New(cfg.Server, client).WithLogger(logger)
	if tracker, err := telemetry.NewTracker(""); err == nil {
		srv = srv.WithUsageTracker(tracker)
	}

	addr := cfg.Server.Addr
	if addr == "" {
		addr = server.DefaultAddr
	}
	fmt.Printf("golem relay listening on %s (upstream %s)\n", addr, client.BaseURL())
	if cfg.Server.AuthToken != "" {
		fmt.Println("bearer auth enabled")
	}
	if err := srv.Start(cfg.Server); err != nil {
		Fatal("serve: %v", err)
	}
}
