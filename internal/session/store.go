// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/jeranaias/rigchat/internal/model"
)

// Store is the conversation store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create allocates a conversation and returns its id.
	Create(systemPrompt string) string

	// Get returns a copy of the conversation.
	Get(id string) (*model.Conversation, bool)

	// Messages returns a copy of the stored history, empty for an unknown id.
	Messages(id string) []model.Message

	// AddMessage appends a user or assistant message, deriving the title
	// from the first user message.
	AddMessage(id string, role model.Role, content string) bool

	// AddMessageNoTitle appends without title derivation.
	AddMessageNoTitle(id string, role model.Role, content string) bool

	UpdateSystemPrompt(id, prompt string) bool
	Clear(id string) bool
	Delete(id string) bool

	// List returns summaries, most recently updated first.
	List() []model.Summary

	// Export renders a conversation as json, text or markdown.
	Export(id, format string) (string, bool)

	// Import stores a serialized conversation under a fresh id.
	Import(data []byte) (string, bool)

	Stats() Stats
}

// Stats aggregates message counts over every conversation.
type Stats struct {
	TotalConversations int     `json:"total_conversations"`
	TotalMessages      int     `json:"total_messages"`
	AverageMessages    float64 `json:"average_messages_per_conversation"`
}
