// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jeranaias/rigchat/internal/model"
)

// geminiModelRole is Gemini's name for the assistant role.
const geminiModelRole = "model"

// =============================================================================
// GEMINI WIRE TYPES
// =============================================================================

// GeminiPart is one text part of a Gemini turn.
type GeminiPart struct {
	Text string `json:"text"`
}

// GeminiContent is one turn. Role is "user" or "model"; the probe leaves
// it empty.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GenerationConfig holds Gemini's decoding parameters.
type GenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// GenerateRequest is the body of POST models/{model}:generateContent.
type GenerateRequest struct {
	Contents         []GeminiContent  `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

// GenerateResponse is Gemini's reply.
type GenerateResponse struct {
	Candidates []struct {
		Content GeminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiData is the success payload of a Gemini Chat.
type GeminiData struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// GetContent returns the reply text.
func (d GeminiData) GetContent() string {
	return d.Content
}

// =============================================================================
// GEMINI FORMATTING
// =============================================================================

// FormatGeminiContents reshapes formatted turns for Gemini. System text is
// folded into the first user turn as "<system>\n\n<text>"; with no user
// turn it becomes a leading user turn of its own. Assistant turns are
// relabelled "model".
func FormatGeminiContents(formatted []model.Message) []GeminiContent {
	var pending string
	out := make([]GeminiContent, 0, len(formatted))

	for _, m := range formatted {
		switch m.Role {
		case model.RoleSystem:
			if pending != "" {
				pending += "\n\n"
			}
			pending += m.Content
		case model.RoleUser:
			text := m.Content
			if pending != "" {
				text = pending + "\n\n" + text
				pending = ""
			}
			out = append(out, GeminiContent{Role: "user", Parts: []GeminiPart{{Text: text}}})
		case model.RoleAssistant:
			out = append(out, GeminiContent{Role: geminiModelRole, Parts: []GeminiPart{{Text: m.Content}}})
		}
	}

	if pending != "" {
		lead := GeminiContent{Role: "user", Parts: []GeminiPart{{Text: pending}}}
		out = append([]GeminiContent{lead}, out...)
	}
	return out
}

// =============================================================================
// GEMINI CALLS
// =============================================================================

// SECURITY: Gemini takes the key in the query string, so this URL must
// never be logged.
func (a *Adapter) geminiURL() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		a.baseURL, url.PathEscape(a.model), url.QueryEscape(a.apiKey))
}

func (a *Adapter) geminiProbe(ctx context.Context) (int, error) {
	body := GenerateRequest{
		Contents:         []GeminiContent{{Parts: []GeminiPart{{Text: "Hello"}}}},
		GenerationConfig: GenerationConfig{MaxOutputTokens: 1},
	}
	resp, err := postJSON(ctx, a.httpClient, a.geminiURL(), body, nil)
	if err != nil {
		return 0, redactURLError(err)
	}
	drainAndClose(resp.Body)
	return resp.StatusCode, nil
}

func (a *Adapter) geminiChat(ctx context.Context, history []model.Message, opts model.ChatOptions) model.Response {
	ctx, cancel := context.WithTimeout(ctx, a.chatTimeout)
	defer cancel()

	temp := opts.Temperature
	body := GenerateRequest{
		Contents: FormatGeminiContents(model.FormatMessages(history, opts.SystemPrompt)),
		GenerationConfig: GenerationConfig{
			Temperature:     &temp,
			MaxOutputTokens: opts.MaxTokens,
		},
	}

	resp, err := postJSON(ctx, a.httpClient, a.geminiURL(), body, nil)
	if err != nil {
		return a.transportFailure(redactURLError(err), "Request failed")
	}
	defer drainAndClose(resp.Body)

	raw, err := readResponse(resp)
	if err != nil {
		return a.transportFailure(err, "Request failed")
	}
	if resp.StatusCode != http.StatusOK {
		return model.FailWithType(model.ErrorAPI, parseAPIError(resp.StatusCode, raw).Error())
	}

	var parsed GenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return a.transportFailure(fmt.Errorf("failed to decode response: %w", err), "Request failed")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return model.FailWithType(model.ErrorAPI, ErrNoCandidates.Error())
	}

	return model.Succeed(GeminiData{
		Content: parsed.Candidates[0].Content.Parts[0].Text,
		Model:   a.model,
	})
}

// geminiStream makes one full call and replays the answer rune by rune.
func (a *Adapter) geminiStream(ctx context.Context, history []model.Message, opts model.ChatOptions, yield func(string) bool) {
	resp := a.geminiChat(ctx, history, opts)
	if !resp.Success {
		yield(resp.JSON())
		return
	}
	for _, r := range resp.Content() {
		if !yield(string(r)) {
			return
		}
	}
}

// redactURLError strips the request URL (and with it the key) from
// transport errors.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s request: %w", ue.Op, ue.Err)
	}
	return err
}
