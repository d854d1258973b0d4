// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a local OpenAI-compatible relay in front of
// the configured hive.
//
// Other applications on the machine point at the relay's listen address
// and inherit golem's upstream configuration, credentials, and rate
// limiting. Streaming responses pass through unchanged, including the
// reasoning_content delta channel.
//
// # Endpoints
//
//   - POST /v1/chat/completions - OpenAI-compatible chat completions
//   - GET  /v1/models          - List the hive's models
//   - GET  /health             - Relay and hive health
//   - GET  /stats              - Relay usage counters
//
// # Security
//
//   - Bearer token authentication with constant-time comparison
//   - Optional IP allowlist
//   - CORS origin allowlist (localhost by default)
//   - Per-IP token bucket rate limiting
//   - Security headers and panic recovery
//
// # Usage
//
//	client := hive.NewClient(cfg.Hive.URL, cfg.Hive.APIKey)
//	srv := server.New(cfg.Server, client)
//	if err := srv.Start(cfg.Server); err != nil {
//		log.Fatal(err)
//	}
package server
