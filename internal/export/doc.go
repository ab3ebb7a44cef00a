// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders conversations for download or saving to disk.
//
// # Key Types
//
//   - Exporter: renders one conversation in one format
//   - JSONExporter: indented, re-importable record
//   - TextExporter: plain transcript
//   - MarkdownExporter: front matter plus one heading per message
//
// # Supported Formats
//
//   - json
//   - text (alias txt)
//   - markdown (alias md)
//
// # Usage
//
//	exp, ok := export.ForFormat("text")
//	if ok {
//	    data, err := exp.Export(conv)
//	}
//
// Write straight to a file, choosing the format from the extension:
//
//	err := export.WriteFile(conv, "chat.md")
package export
