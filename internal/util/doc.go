// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds the small text and file helpers shared by the CLI,
// the web server and the conversation store.
//
// # Key Functions
//
//   - SanitizeInput: strips control characters and normalizes user input
//   - TruncateRunes: rune-safe truncation with an ellipsis
//   - PadRight: display-width aware padding for table columns
//   - AtomicWriteFile: crash-safe file writes (temp file, fsync, rename)
//
// # Usage
//
//	msg := util.SanitizeInput(line)
//	if msg == "" {
//	    return
//	}
//	err := util.AtomicWriteFile(path, data, 0600)
package util
