// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements the hosted-API adapter.
//
// One Adapter type serves every hosted provider. The provider name picks a
// Dialect, which decides request shape, authentication and streaming:
//
//   - DialectOpenAI (deepseek, openai): POST {base}/chat/completions with a
//     bearer token; streams arrive as server-sent events ending in [DONE].
//   - DialectGemini (gemini): POST {base}/models/{model}:generateContent with
//     the key as a query parameter; no native system role.
//
// # Key Types
//
//   - Adapter: model.Adapter for a hosted provider and model
//   - Config: base URL, credential and timeouts for one provider
//   - SSEReader: minimal server-sent event parser
//
// # Usage
//
//	a, err := cloud.NewAdapter("deepseek", "deepseek-chat", cloud.Config{
//	    BaseURL: "https://api.deepseek.com/v1",
//	    APIKey:  os.Getenv("DEEPSEEK_API_KEY"),
//	})
//	if err != nil {
//	    return err // Unsupported provider
//	}
//	resp := a.Chat(ctx, history, model.ChatOptions{SystemPrompt: prompt, Temperature: 0.7})
//
// # Streaming
//
// Gemini replies are not streamed natively. ChatStream makes one full call
// and re-emits the answer one character at a time, so the first fragment
// arrives only after the whole answer is generated.
//
// # Security
//
// API keys are never logged. Only a short SHA-256 fingerprint appears in
// debug output.
package cloud
