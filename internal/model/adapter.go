// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"context"
	"iter"
)

// Default generation parameters.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// Kind tags an adapter family.
type Kind string

const (
	KindOllama Kind = "ollama"
	KindOnline Kind = "online"
)

// =============================================================================
// ADAPTER CONTRACT
// =============================================================================

// Adapter is the uniform chat contract implemented by every backend.
//
// Chat and ChatStream validate history and probe availability before any
// request is sent. Neither returns an error: failures come back as a
// failure Response, or as the single final element of the stream.
type Adapter interface {
	Chat(ctx context.Context, history []Message, opts ChatOptions) Response

	// ChatStream yields content fragments in emission order. Stopping the
	// range loop releases the underlying connection.
	ChatStream(ctx context.Context, history []Message, opts ChatOptions) iter.Seq[string]

	// IsAvailable never fails; any network or protocol error reads as false.
	IsAvailable(ctx context.Context) bool

	Info(ctx context.Context) Info
}

// Info describes an adapter for model pickers and the web API.
type Info struct {
	Name      string `json:"name"`
	Type      Kind   `json:"type"`
	Provider  string `json:"provider,omitempty"`
	BaseURL   string `json:"base_url"`
	Available bool   `json:"available"`
}

// ChatOptions carries per-call generation parameters.
type ChatOptions struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// DefaultChatOptions returns the defaults used when a caller passes none.
func DefaultChatOptions() ChatOptions {
	return ChatOptions{
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// WithDefaults fills fields outside their valid range. Zero is a valid
// temperature and is sent as given.
func (o ChatOptions) WithDefaults() ChatOptions {
	if o.Temperature < 0 {
		o.Temperature = DefaultTemperature
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	return o
}
