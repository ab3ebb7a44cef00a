// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router builds chat adapters by provider kind.
//
// Two kinds are built in: the local Ollama server and the hosted,
// OpenAI-compatible or Gemini providers.
//
// # Key Types
//
//   - Registry: kind to constructor mapping
//   - Constructor: builds one adapter for a model name
//   - Options: per-construction endpoint, key and logger
//
// # Usage
//
//	reg := router.NewRegistry().WithLogger(logger)
//	adapter, ok := reg.ForModel(ctx, cfg, "deepseek")
//	if !ok {
//	    // unknown model or construction failed (already logged)
//	}
//	resp := adapter.Chat(ctx, history, cfg.ChatOptions(prompt))
//
// Failures never surface as errors from Create. The cause is logged and
// the caller only learns that no adapter is available.
package router
