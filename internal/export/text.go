// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// TEXT EXPORTER
// =============================================================================

var (
	headerRule  = strings.Repeat("=", 50)
	messageRule = strings.Repeat("-", 30)
)

// TextExporter renders a plain transcript:
//
//	Title: ...
//	Created: ...
//	Updated: ...
//	System prompt: ...   (only when set)
//	==================================================
//	[timestamp] User:
//	content
//	------------------------------
type TextExporter struct{}

// NewTextExporter creates a new text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Export converts a conversation to a transcript. Lines are joined with
// "\n" and there is no trailing newline.
func (e *TextExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}

	lines := make([]string, 0, 5+3*len(conv.Messages))
	lines = append(lines,
		"Title: "+conv.Title,
		"Created: "+formatTimestamp(conv.CreatedAt),
		"Updated: "+formatTimestamp(conv.UpdatedAt),
	)
	if conv.SystemPrompt != "" {
		lines = append(lines, "System prompt: "+conv.SystemPrompt)
	}
	lines = append(lines, headerRule)

	for _, msg := range conv.Messages {
		role := "Assistant"
		if msg.Role == model.RoleUser {
			role = "User"
		}
		lines = append(lines,
			"["+formatTimestamp(msg.Timestamp)+"] "+role+":",
			msg.Content,
			messageRule,
		)
	}

	return []byte(strings.Join(lines, "\n")), nil
}

// FileExtension returns the file extension for text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for text.
func (e *TextExporter) MimeType() string {
	return "text/plain; charset=utf-8"
}
