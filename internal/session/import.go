// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

// Import validation errors.
var (
	ErrNotObject       = errors.New("conversation must be a JSON object")
	ErrMissingMessages = errors.New("conversation has no messages field")
	ErrBadMessages     = errors.New("messages must be an array of objects")
)

// timestampLayouts are accepted on import, RFC 3339 first. The others
// cover records written without a zone offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// DecodeConversation parses and validates a serialized conversation.
//
// The record must be an object with a messages array whose entries are
// objects with a role of user or assistant and a content field. Missing
// or unparseable timestamps become now and an empty title becomes the
// default. The returned conversation has no id.
func DecodeConversation(data []byte, now time.Time) (*model.Conversation, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, ErrNotObject
	}

	rawMessages, ok := top["messages"]
	if !ok {
		return nil, ErrMissingMessages
	}
	var entries []json.RawMessage
	if isNull(rawMessages) || json.Unmarshal(rawMessages, &entries) != nil {
		return nil, ErrBadMessages
	}

	conv := &model.Conversation{
		Title:        stringField(top, "title"),
		SystemPrompt: stringField(top, "system_prompt"),
		CreatedAt:    timeField(top, "created_at", now),
		UpdatedAt:    timeField(top, "updated_at", now),
		Messages:     make([]model.Message, 0, len(entries)),
	}
	if strings.TrimSpace(conv.Title) == "" {
		conv.Title = model.DefaultTitle
	}
	conv.UpdatedAt = newest(conv.UpdatedAt, conv.CreatedAt)

	for i, raw := range entries {
		msg, err := decodeMessage(raw, now)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, nil
}

func decodeMessage(raw json.RawMessage, now time.Time) (model.Message, error) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil || fields == nil {
		return model.Message{}, ErrBadMessages
	}

	var role model.Role
	if r, ok := fields["role"]; !ok || json.Unmarshal(r, &role) != nil || !role.IsStored() {
		return model.Message{}, fmt.Errorf("role must be %q or %q", model.RoleUser, model.RoleAssistant)
	}

	c, ok := fields["content"]
	if !ok {
		return model.Message{}, errors.New("missing content")
	}
	// Non-string content keeps its JSON text.
	var content string
	if !isNull(c) && json.Unmarshal(c, &content) != nil {
		content = string(bytes.TrimSpace(c))
	}

	return model.Message{
		Role:      role,
		Content:   content,
		Timestamp: timeField(fields, "timestamp", now),
	}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func timeField(fields map[string]json.RawMessage, key string, fallback time.Time) time.Time {
	s := stringField(fields, key)
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
