// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Hive connectivity and configuration report.
package cli

import (
	"context"
	"fmt"
	"time"
)

// RunStatus executes the status command.
func RunStatus(args Args) {
	cfg, err := LoadConfig(args)
	if err != nil {
		Fatal("%v", err)
	}

	fmt.Println(promptStyle.Render("golem " + Version))
	fmt.Println()

	if cfg.Hive.URL == "" {
		fmt.Println(warnStyle.Render("hive: not configured"))
		fmt.Println(infoStyle.Render("  set one with: golem config set hive.url http://host:8090/v1"))
		return
	}

	client := NewHiveClient(cfg)
	fmt.Printf("hive:   %s\n", client.BaseURL())
	fmt.Printf("model:  %s\n", client.GetModel())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		fmt.Println(errStyle.Render("status: unreachable"))
		fmt.Println(infoStyle.Render("  " + err.Error()))
		return
	}
	fmt.Printf("status: %s (%s)\n", "connected", time.Since(start).Round(time.Millisecond))

	models, err := client.ListModels(ctx)
	if err != nil {
		fmt.Println(warnStyle.Render("models: list failed: " + err.Error()))
		return
	}
	fmt.Printf("models: %d available\n", len(models))
	for _, m := range models {
		marker := "  "
		if m.ID == client.GetModel() {
			marker = "● "
		}
		fmt.Println("  " + marker + m.ID)
	}
}
