// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// configcmd.go - Configuration get/set/list.
package cli

import (
	"fmt"

	"github.com/jeranaias/golem-tui/internal/config"
)

// RunConfig executes the config command.
func RunConfig(args Args) {
	switch args.Subcommand {
	case "", "show", "list":
		showConfig()
	case "get":
		getConfig(args.ConfigKey)
	case "set":
		setConfig(args.ConfigKey, args.ConfigVal)
	case "path":
		path, err := config.ConfigPathTOML()
		if err != nil {
			Fatal("%v", err)
		}
		fmt.Println(path)
	default:
		Fatal("unknown config subcommand %q (show, get, set, path)", args.Subcommand)
	}
}

func showConfig() {
	cfg, err := config.Load()
	if err != nil {
		Fatal("%v", err)
	}

	for _, key := range config.GetAllKeys() {
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Printf("%-28s = %v\n", key, val)
	}
}

func getConfig(key string) {
	if key == "" {
		Fatal("usage: golem config get <key>")
	}
	cfg, err := config.Load()
	if err != nil {
		Fatal("%v", err)
	}
	val, err := cfg.Get(key)
	if err != nil {
		Fatal("%v", err)
	}
	fmt.Println(val)
}

func setConfig(key, value string) {
	if key == "" || value == "" {
		Fatal("usage: golem config set <key> <value>")
	}
	cfg, err := config.Load()
	if err != nil {
		Fatal("%v", err)
	}
	if err := cfg.Set(key, value); err != nil {
		Fatal("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		Fatal("invalid config: %v", err)
	}
	if err := config.Save(cfg); err != nil {
		Fatal("save config: %v", err)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}
