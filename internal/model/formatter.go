// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
)

// ErrInvalidHistory is returned by ValidateHistory for any malformed turn.
var ErrInvalidHistory = errors.New("invalid message format")

// FormatMessages builds the role/content sequence sent to a backend: a
// leading system turn when systemPrompt is non-empty, then every user and
// assistant turn of history in order. Other roles are dropped. Timestamps
// are cleared; history is not modified.
func FormatMessages(history []Message, systemPrompt string) []Message {
	out := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, Message{Role: RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		if !m.Role.IsStored() {
			continue
		}
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// ValidateHistory checks that every turn carries a role adapters accept.
// An empty history is valid.
func ValidateHistory(history []Message) error {
	for i, m := range history {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidHistory, i, m.Role)
		}
	}
	return nil
}
