// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama implements the local-inference adapter on top of a small
// HTTP client for the Ollama API.
//
// # Key Types
//
//   - Client: raw access to /api/tags and /api/chat
//   - StreamReader: newline-delimited JSON reader for streamed replies
//   - Adapter: model.Adapter implementation bound to one model name
//
// # Usage
//
//	a := ollama.NewAdapter("llama3.1:8b", nil).WithLogger(logger)
//	resp := a.Chat(ctx, history, model.ChatOptions{SystemPrompt: prompt, Temperature: 0.7})
//
//	for chunk := range a.ChatStream(ctx, history, opts) {
//	    fmt.Print(chunk)
//	}
//
// Availability means the server answered /api/tags and the bound model is
// in the returned list; a running server without the model reads as
// unavailable.
package ollama
