// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the rigchat JSON web API.
//
// # Endpoints
//
//   - GET    /api/models                              - List models with availability
//   - POST   /api/models/{name}                       - Select the current model
//   - GET    /api/conversations                       - List conversations
//   - POST   /api/conversations                       - Create a conversation
//   - GET    /api/conversations/{id}                  - Fetch one conversation
//   - DELETE /api/conversations/{id}                  - Delete
//   - POST   /api/conversations/{id}/clear            - Remove all messages
//   - PUT    /api/conversations/{id}/system-prompt    - Replace the system prompt
//   - GET    /api/conversations/{id}/export?format=   - Export as json, text or markdown
//   - POST   /api/conversations/{id}/import           - Import an exported JSON document
//   - POST   /api/conversations/{id}/chat             - Chat, optionally as SSE
//   - POST   /api/conversations/{id}/save             - Save to the conversations directory
//   - GET    /api/saved                               - List saved conversations
//   - POST   /api/saved/{id}/load                     - Load a saved conversation
//   - DELETE /api/saved/{id}                          - Delete a saved conversation
//   - GET    /api/stats                               - Store and traffic statistics
//
// Errors are {"success":false,"error":"..."}. Chat failures return the
// adapter's response envelope unchanged.
//
// # Middleware
//
// Requests pass through panic recovery, request ids, security headers,
// structured logging and a per-client token bucket, in that order.
//
// # Usage
//
//	srv := server.New(cfg, store, registry).WithLogger(logger)
//	if _, err := srv.SelectModel(ctx, cfg.Ollama.DefaultModel); err != nil {
//	    logger.Warn("no default model", "error", err)
//	}
//	return srv.Run(ctx, configPath)
package server
