// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// ErrNilConversation is returned by every exporter for a nil input.
var ErrNilConversation = errors.New("conversation is nil")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a conversation to the target format.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string

	// MimeType returns the Content-Type for downloads.
	MimeType() string
}

// Formats lists the canonical format names.
var Formats = []string{"json", "text", "markdown"}

// ForFormat returns the exporter for a format name. Unknown names report
// false.
func ForFormat(format string) (Exporter, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return NewJSONExporter(), true
	case "text", "txt":
		return NewTextExporter(), true
	case "markdown", "md":
		return NewMarkdownExporter(), true
	default:
		return nil, false
	}
}

// ForPath picks an exporter from a file extension, defaulting to text.
func ForPath(path string) Exporter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return NewJSONExporter()
	case ".md", ".markdown":
		return NewMarkdownExporter()
	default:
		return NewTextExporter()
	}
}

// WriteFile renders conv in the format implied by path and writes it
// atomically.
func WriteFile(conv *model.Conversation, path string) error {
	content, err := ForPath(path).Export(conv)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Filename suggests a download name such as
// conversation_Hello_there_20250101_120000.md.
func Filename(conv *model.Conversation, exporter Exporter, now time.Time) string {
	title := model.DefaultTitle
	if conv != nil {
		title = conv.Title
	}
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(title),
		now.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		runes = runes[:50]
	}

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

// formatTimestamp renders a time the way the JSON record stores it. Zero
// times render empty.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
