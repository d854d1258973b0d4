// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry tracks local token usage per model.
//
// A Tracker keeps two views of the same tallies: the current session
// (in memory, reset each run) and lifetime totals persisted as JSON at
// ~/.golem/usage.json. Token counts come from the usage block the hive
// reports on the final stream chunk; nothing ever leaves the machine.
package telemetry
