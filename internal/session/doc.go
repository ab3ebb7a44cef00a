// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds conversation state between model calls.
//
// A Store owns every Conversation. Callers receive copies, never the
// stored record, so the store's invariants cannot be bypassed:
//
//   - a conversation holds at most 2 x maxHistory messages after any append
//   - only user and assistant messages are stored
//   - the title is derived once, from the first user message
//
// # Key Types
//
//   - Store: the storage seam used by the CLI and web layers
//   - MemoryStore: the in-process implementation
//   - Stats: aggregate counts
//
// # Usage
//
//	store := session.NewMemoryStore(cfg.Chat.MaxHistoryLength)
//	id := store.Create("You are terse.")
//	store.AddMessage(id, model.RoleUser, "Hello")
//	resp := adapter.Chat(ctx, store.Messages(id), opts)
//	if resp.Success {
//	    store.AddMessage(id, model.RoleAssistant, resp.Content())
//	}
//
// Mutations report failure with a false return. Nothing in this package
// panics on bad input.
package session
