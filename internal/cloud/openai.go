// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// OPENAI-COMPATIBLE WIRE TYPES
// =============================================================================

// ChatMessage is a role/content pair in OpenAI format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat/completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// ChatResponse is a non-streaming completion.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GetContent returns the first choice's message content.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

// StreamChunk is one SSE data payload of a streamed completion.
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GetContent returns the first choice's delta content.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// OpenAIData is the success payload of an OpenAI-compatible Chat.
type OpenAIData struct {
	Content     string `json:"content"`
	TotalTokens int    `json:"total_tokens"`
	Model       string `json:"model"`
}

// GetContent returns the reply text.
func (d OpenAIData) GetContent() string {
	return d.Content
}

// =============================================================================
// OPENAI-COMPATIBLE CALLS
// =============================================================================

func toChatMessages(formatted []model.Message) []ChatMessage {
	out := make([]ChatMessage, len(formatted))
	for i, m := range formatted {
		out[i] = ChatMessage{Role: m.Role.String(), Content: m.Content}
	}
	return out
}

func (a *Adapter) openAIHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.apiKey}
}

func (a *Adapter) openAIProbe(ctx context.Context) (int, error) {
	body := ChatRequest{
		Model:     a.model,
		Messages:  []ChatMessage{{Role: "user", Content: "Hello"}},
		MaxTokens: 1,
	}
	resp, err := postJSON(ctx, a.httpClient, a.baseURL+"/chat/completions", body, a.openAIHeaders())
	if err != nil {
		return 0, err
	}
	drainAndClose(resp.Body)
	return resp.StatusCode, nil
}

func (a *Adapter) openAIChat(ctx context.Context, history []model.Message, opts model.ChatOptions) model.Response {
	ctx, cancel := context.WithTimeout(ctx, a.chatTimeout)
	defer cancel()

	temp := opts.Temperature
	body := ChatRequest{
		Model:       a.model,
		Messages:    toChatMessages(model.FormatMessages(history, opts.SystemPrompt)),
		Temperature: &temp,
		MaxTokens:   opts.MaxTokens,
	}

	resp, err := postJSON(ctx, a.httpClient, a.baseURL+"/chat/completions", body, a.openAIHeaders())
	if err != nil {
		return a.transportFailure(err, "Request failed")
	}
	defer drainAndClose(resp.Body)

	raw, err := readResponse(resp)
	if err != nil {
		return a.transportFailure(err, "Request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return model.FailWithType(model.ErrorAPI, parseAPIError(resp.StatusCode, raw).Error())
	}

	var parsed ChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return a.transportFailure(fmt.Errorf("failed to decode response: %w", err), "Request failed")
	}

	return model.Succeed(OpenAIData{
		Content:     parsed.GetContent(),
		TotalTokens: parsed.Usage.TotalTokens,
		Model:       parsed.Model,
	})
}

func (a *Adapter) openAIStream(ctx context.Context, history []model.Message, opts model.ChatOptions, yield func(string) bool) {
	temp := opts.Temperature
	body := ChatRequest{
		Model:       a.model,
		Messages:    toChatMessages(model.FormatMessages(history, opts.SystemPrompt)),
		Temperature: &temp,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}

	headers := a.openAIHeaders()
	headers["Accept"] = "text/event-stream"
	headers["Cache-Control"] = "no-cache"

	resp, err := postJSON(ctx, a.httpClient, a.baseURL+"/chat/completions", body, headers)
	if err != nil {
		yield(a.transportFailure(err, "Stream request failed").JSON())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		yield(model.FailWithType(model.ErrorAPI, fmt.Sprintf("Stream API error: %d", resp.StatusCode)).JSON())
		return
	}

	reader := NewSSEReader(resp.Body)
	for {
		data, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			yield(a.transportFailure(err, "Stream request failed").JSON())
			return
		}
		if IsDone(data) {
			return
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			a.logger.Debug("skipping malformed stream chunk", "err", err)
			continue
		}
		content := chunk.GetContent()
		if content == "" {
			continue
		}
		if !yield(content) {
			return
		}
	}
}
