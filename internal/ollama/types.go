// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Message is a chat turn in Ollama's wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body for /api/chat.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options contains the decoding parameters this client sends.
type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"` // max new tokens
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatResponse is a complete /api/chat reply, and also the shape of each
// line of a streamed reply.
type ChatResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Message       Message   `json:"message"`
	Done          bool      `json:"done"`
	DoneReason    string    `json:"done_reason,omitempty"`
	TotalDuration int64     `json:"total_duration,omitempty"` // nanoseconds
	LoadDuration  int64     `json:"load_duration,omitempty"`  // nanoseconds
	EvalCount     int       `json:"eval_count,omitempty"`
}

// ModelInfo is one entry of /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// ListModelsResponse is the body of /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// OllamaError is the error body Ollama returns on failure.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// ENVELOPE PAYLOAD
// =============================================================================

// ChatData is the success payload of Adapter.Chat.
type ChatData struct {
	Content       string `json:"content"`
	TotalDuration int64  `json:"total_duration"`
	LoadDuration  int64  `json:"load_duration"`
	EvalCount     int    `json:"eval_count"`
}

// GetContent returns the reply text.
func (d ChatData) GetContent() string {
	return d.Content
}
