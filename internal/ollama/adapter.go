// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// ADAPTER
// =============================================================================

// Adapter binds a Client to one installed model and implements
// model.Adapter.
type Adapter struct {
	client *Client
	model  string
	logger *slog.Logger
}

var _ model.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter for modelName. A nil config uses
// DefaultConfig.
func NewAdapter(modelName string, config *ClientConfig) *Adapter {
	return &Adapter{
		client: NewClientWithConfig(config),
		model:  modelName,
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger used for probe failures and skipped lines.
func (a *Adapter) WithLogger(l *slog.Logger) *Adapter {
	if l != nil {
		a.logger = l.With("adapter", "ollama", "model", a.model)
	}
	return a
}

// Client exposes the underlying HTTP client.
func (a *Adapter) Client() *Client {
	return a.client
}

// Model returns the bound model name.
func (a *Adapter) Model() string {
	return a.model
}

// IsAvailable reports whether the server is up and has the model installed.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	ok, err := a.client.HasModel(ctx, a.model)
	if err != nil {
		a.logger.Error("ollama service check failed", "err", err)
		return false
	}
	return ok
}

// Info describes the adapter. It performs a live availability probe.
func (a *Adapter) Info(ctx context.Context) model.Info {
	return model.Info{
		Name:      a.model,
		Type:      model.KindOllama,
		BaseURL:   a.client.BaseURL(),
		Available: a.IsAvailable(ctx),
	}
}

// ListModels returns the names of all installed models, or nil when the
// server cannot be reached.
func (a *Adapter) ListModels(ctx context.Context) []string {
	models, err := a.client.ListModels(ctx)
	if err != nil {
		a.logger.Error("failed to get available models", "err", err)
		return nil
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names
}

// Chat sends history and returns the whole reply in one envelope.
func (a *Adapter) Chat(ctx context.Context, history []model.Message, opts model.ChatOptions) model.Response {
	if failure, ok := a.preflight(ctx, history); !ok {
		return failure
	}

	resp, err := a.client.Chat(ctx, a.buildRequest(history, opts))
	if err != nil {
		return a.requestFailure(err, "Request failed")
	}

	return model.Succeed(ChatData{
		Content:       resp.Message.Content,
		TotalDuration: resp.TotalDuration,
		LoadDuration:  resp.LoadDuration,
		EvalCount:     resp.EvalCount,
	})
}

// ChatStream yields non-empty content fragments as Ollama produces them.
// Malformed lines are logged and skipped.
func (a *Adapter) ChatStream(ctx context.Context, history []model.Message, opts model.ChatOptions) iter.Seq[string] {
	return func(yield func(string) bool) {
		if failure, ok := a.preflight(ctx, history); !ok {
			yield(failure.JSON())
			return
		}

		reader, err := a.client.OpenChatStream(ctx, a.buildRequest(history, opts))
		if err != nil {
			yield(a.requestFailure(err, "Stream request failed").JSON())
			return
		}
		defer reader.Close()

		for {
			chunk, err := reader.Next()
			switch {
			case errors.Is(err, io.EOF):
				return
			case errors.Is(err, ErrMalformedLine):
				a.logger.Warn("failed to parse stream data", "err", err)
				continue
			case err != nil:
				yield(a.requestFailure(err, "Stream request failed").JSON())
				return
			}

			if chunk.Message.Content == "" {
				continue
			}
			if !yield(chunk.Message.Content) {
				return
			}
		}
	}
}

// preflight enforces the checks every call makes before touching the
// network.
func (a *Adapter) preflight(ctx context.Context, history []model.Message) (model.Response, bool) {
	if err := model.ValidateHistory(history); err != nil {
		return model.FailWithType(model.ErrorValidation, "Invalid message format"), false
	}
	if !a.IsAvailable(ctx) {
		return model.FailWithType(model.ErrorUnavailable,
			fmt.Sprintf("Ollama service or model '%s' is not available", a.model)), false
	}
	return model.Response{}, true
}

func (a *Adapter) buildRequest(history []model.Message, opts model.ChatOptions) ChatRequest {
	opts = opts.WithDefaults()
	formatted := model.FormatMessages(history, opts.SystemPrompt)

	msgs := make([]Message, len(formatted))
	for i, m := range formatted {
		msgs[i] = Message{Role: m.Role.String(), Content: m.Content}
	}
	return ChatRequest{
		Model:    a.model,
		Messages: msgs,
		Options: &Options{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}
}

func (a *Adapter) requestFailure(err error, prefix string) model.Response {
	var se *StatusError
	if errors.As(err, &se) {
		return model.FailWithType(model.ErrorAPI, se.Error())
	}
	if IsTimeout(err) {
		a.logger.Warn("ollama chat request timed out", "err", err)
		return model.FailWithType(model.ErrorGeneral, prefix+": request timed out")
	}
	a.logger.Error("ollama chat request failed", "err", err)
	return model.FailWithType(model.ErrorGeneral, prefix+": "+err.Error())
}
