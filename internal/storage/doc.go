// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage saves conversations to disk as JSON files.
//
// Persistence is opt-in. The session store lives in memory and this
// package only writes or reads a conversation when asked to.
//
// # Key Types
//
//   - Dir: a directory of <id>.json conversation files
//   - ConversationError: comparable error values for errors.Is
//
// # Usage
//
// Save a conversation and load it back into a store:
//
//	dir, err := storage.DefaultDir()
//	path, err := dir.Save(conv)
//	newID, err := storage.LoadConversation(store, path)
//
// Loading always goes through the store's import validation, so a
// loaded conversation receives a fresh id.
//
// # Storage Location
//
// Conversations are stored in ~/.rigchat/conversations/ with owner-only
// permissions.
package storage
