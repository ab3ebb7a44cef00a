// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

const (
	// DefaultTitle is shown until the first user message names the conversation.
	DefaultTitle = "New conversation"

	// TitleMaxRunes bounds a derived title before the ellipsis.
	TitleMaxRunes = 20
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a titled, timestamped container of ordered turns plus an
// optional system instruction.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// Summary is the list view of a conversation. Message bodies are excluded.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
}

// Summary builds the list view of c.
func (c *Conversation) Summary() Summary {
	return Summary{
		ID:           c.ID,
		Title:        c.Title,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
		SystemPrompt: c.SystemPrompt,
	}
}

// Clone returns a deep copy so callers never alias store-owned slices.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}

// DeriveTitle turns a first user message into a conversation title: the
// first TitleMaxRunes characters, whitespace-trimmed, with "..." appended
// only when the message was longer than that.
func DeriveTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= TitleMaxRunes {
		return strings.TrimSpace(firstMessage)
	}
	return strings.TrimSpace(string(runes[:TitleMaxRunes])) + "..."
}
