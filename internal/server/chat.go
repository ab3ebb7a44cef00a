// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

// ChatRequest is the body of POST /api/conversations/{id}/chat.
type ChatRequest struct {
	Message     string   `json:"message"`
	Stream      bool     `json:"stream"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// chatTurn is a validated request bound to a conversation.
type chatTurn struct {
	convID  string
	history []model.Message
	opts    model.ChatOptions
	adapter model.Adapter
	model   string
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	message := sanitizeMessage(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	modelName, adapter := s.current()
	if adapter == nil {
		writeError(w, http.StatusBadRequest, "No model selected")
		return
	}

	turn, err := s.prepareTurn(r.PathValue("id"), message, req)
	if err != nil {
		s.logger.Error("prepare chat failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	turn.adapter = adapter
	turn.model = modelName

	s.stats.chats.Add(1)
	if req.Stream {
		s.stats.streams.Add(1)
		s.streamChat(w, r, turn)
		return
	}
	s.completeChat(w, r, turn)
}

// prepareTurn records the user message. An unknown id gets a new
// conversation with the default prompt, and the new id is returned.
func (s *Server) prepareTurn(id, message string, req ChatRequest) (chatTurn, error) {
	cfg := s.Config()

	if _, ok := s.store.Get(id); !ok {
		id = s.store.Create(cfg.Chat.SystemPrompt)
		s.logger.Info("conversation auto-created", "conversation_id", id)
	}
	if !s.store.AddMessage(id, model.RoleUser, message) {
		return chatTurn{}, fmt.Errorf("conversation %s vanished", id)
	}
	conv, ok := s.store.Get(id)
	if !ok {
		return chatTurn{}, fmt.Errorf("conversation %s vanished", id)
	}

	opts := cfg.ChatOptions(conv.SystemPrompt)
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		opts.MaxTokens = *req.MaxTokens
	}

	return chatTurn{convID: id, history: conv.Messages, opts: opts}, nil
}

func (s *Server) completeChat(w http.ResponseWriter, r *http.Request, turn chatTurn) {
	resp := turn.adapter.Chat(r.Context(), turn.history, turn.opts)
	if !resp.Success {
		s.stats.failed.Add(1)
		s.logger.Warn("chat failed", "model", turn.model, "error", resp.ErrorMessage())
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	reply := resp.Content()
	if strings.TrimSpace(reply) != "" {
		s.store.AddMessage(turn.convID, model.RoleAssistant, reply)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"response":        reply,
		"conversation_id": turn.convID,
	})
}

// streamChat relays the adapter stream as SSE. Frames are
// data: {"content":...}, a failure envelope verbatim, and a final
// data: {"done":true}.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, turn chatTurn) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Conversation-ID", turn.convID)
	w.WriteHeader(http.StatusOK)

	var reply strings.Builder
	failed := false
	for chunk := range turn.adapter.ChatStream(r.Context(), turn.history, turn.opts) {
		if _, isFailure := model.ParseStreamFailure(chunk); isFailure {
			failed = true
			writeSSERaw(w, flusher, chunk)
			break
		}
		reply.WriteString(chunk)
		writeSSE(w, flusher, map[string]string{"content": chunk})
	}

	switch {
	case failed:
		s.stats.failed.Add(1)
	case r.Context().Err() != nil:
		s.logger.Info("stream cancelled by client", "conversation_id", turn.convID)
		return
	case strings.TrimSpace(reply.String()) != "":
		s.store.AddMessage(turn.convID, model.RoleAssistant, reply.String())
	}
	writeSSE(w, flusher, map[string]bool{"done": true})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	writeSSERaw(w, flusher, string(data))
}

func writeSSERaw(w http.ResponseWriter, flusher http.Flusher, data string) {
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
