// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out as markdown, JSON, or HTML.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/golem-tui/internal/storage"
)

// =============================================================================
// EXPORTER INTERFACE
// =============================================================================

// Exporter converts a stored conversation to one output format.
type Exporter interface {
	Export(conv *storage.StoredConversation) ([]byte, error)
	FileExtension() string
}

// Options configures export behavior.
type Options struct {
	// OutputDir is where files land. Default: current directory.
	OutputDir string

	// IncludeMetadata adds a header with model, timestamps, and totals.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool

	// ShowReasoning keeps reasoning spans in the output; otherwise they
	// are stripped.
	ShowReasoning bool
}

// DefaultOptions returns the default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// ForFormat returns the exporter for a format name ("md", "json", "html").
func ForFormat(format string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch format {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "html":
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("unknown export format: %s", format)
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// ExportToFile writes a conversation through the exporter and returns the
// output path.
func ExportToFile(conv *storage.StoredConversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("golem_%s_%s%s",
		sanitizeFilename(conv.Summary),
		time.Now().Format("20060102_150405"),
		exporter.FileExtension(),
	)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames on
// either Windows or Unix.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		s = string(runes[:50])
	}

	var out []rune
	for _, r := range s {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "conversation"
	}
	return string(out)
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	return fmt.Sprintf("%dm %ds", int(seconds)/60, int(seconds)%60)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
