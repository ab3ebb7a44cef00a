// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the domain types shared by the conversation store
// and the provider adapters.
//
// # Key Types
//
//   - Conversation, Message, Role: stored conversation records
//   - Summary: list view of a conversation without message bodies
//   - Response: the success/failure envelope returned by every adapter call
//   - Adapter: the uniform chat contract every backend implements
//   - ChatOptions: per-call generation parameters
//
// # Usage
//
// Format stored history for a backend and inspect the result:
//
//	turns := model.FormatMessages(history, "You are helpful.")
//	resp := adapter.Chat(ctx, history, model.ChatOptions{SystemPrompt: prompt, Temperature: 0.7})
//	if !resp.Success {
//	    fmt.Println(resp.ErrorMessage())
//	}
//	fmt.Println(resp.Content())
//
// Streaming yields plain fragments, or one serialized failure envelope:
//
//	for chunk := range adapter.ChatStream(ctx, history, opts) {
//	    if failure, ok := model.ParseStreamFailure(chunk); ok {
//	        return errors.New(failure.ErrorMessage())
//	    }
//	    fmt.Print(chunk)
//	}
package model
