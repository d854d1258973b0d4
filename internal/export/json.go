// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/golem-tui/internal/storage"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes the stored conversation as indented JSON. The
// output round-trips through the storage format, so an exported file can
// be re-imported.
type JSONExporter struct {
	opts *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{opts: opts}
}

// Export renders the conversation.
func (e *JSONExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	return json.MarshalIndent(conv, "", "  ")
}

// FileExtension returns ".json".
func (e *JSONExporter) FileExtension() string { return ".json" }
