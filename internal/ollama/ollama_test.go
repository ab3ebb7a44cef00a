// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// FAKE SERVER
// =============================================================================

type fakeOllama struct {
	installed  []string
	streamBody string
	chatStatus int
	chatCalls  atomic.Int32

	mu      sync.Mutex
	lastReq ChatRequest
}

func (f *fakeOllama) last() ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

func (f *fakeOllama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		var resp ListModelsResponse
		for _, n := range f.installed {
			resp.Models = append(resp.Models, ModelInfo{Name: n})
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.lastReq = req
		f.mu.Unlock()

		if f.chatStatus != 0 && f.chatStatus != http.StatusOK {
			w.WriteHeader(f.chatStatus)
			fmt.Fprint(w, `{"error":"model exploded"}`)
			return
		}
		if req.Stream {
			w.Header().Set("Content-Type", "application/x-ndjson")
			fmt.Fprint(w, f.streamBody)
			return
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model:         req.Model,
			Message:       Message{Role: "assistant", Content: "Hi there"},
			Done:          true,
			TotalDuration: 1500,
			LoadDuration:  200,
			EvalCount:     7,
		})
	})
	return mux
}

func newTestAdapter(t *testing.T, f *fakeOllama, modelName string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewAdapter(modelName, &ClientConfig{BaseURL: srv.URL + "/"})
}

func collect(seq func(func(string) bool)) []string {
	var out []string
	for s := range seq {
		out = append(out, s)
	}
	return out
}

// =============================================================================
// AVAILABILITY TESTS
// =============================================================================

func TestAdapter_IsAvailable(t *testing.T) {
	f := &fakeOllama{installed: []string{"llama3.1:8b", "gemma3:12b"}}

	assert.True(t, newTestAdapter(t, f, "llama3.1:8b").IsAvailable(t.Context()))
	assert.False(t, newTestAdapter(t, f, "mistral:7b").IsAvailable(t.Context()))
}

func TestAdapter_IsAvailable_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	a := NewAdapter("llama3.1:8b", &ClientConfig{BaseURL: url})
	assert.False(t, a.IsAvailable(t.Context()))
}

func TestAdapter_Info(t *testing.T) {
	f := &fakeOllama{installed: []string{"llama3.1:8b"}}
	a := newTestAdapter(t, f, "llama3.1:8b")

	info := a.Info(t.Context())
	assert.Equal(t, "llama3.1:8b", info.Name)
	assert.Equal(t, model.KindOllama, info.Type)
	assert.True(t, info.Available)
	assert.False(t, strings.HasSuffix(info.BaseURL, "/"), "base url keeps trailing slash: %s", info.BaseURL)
}

func TestAdapter_ListModels(t *testing.T) {
	f := &fakeOllama{installed: []string{"a", "b"}}
	a := newTestAdapter(t, f, "a")
	assert.Equal(t, []string{"a", "b"}, a.ListModels(t.Context()))
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestAdapter_Chat(t *testing.T) {
	f := &fakeOllama{installed: []string{"llama3.1:8b"}}
	a := newTestAdapter(t, f, "llama3.1:8b")

	history := []model.Message{model.NewMessage(model.RoleUser, "Hello")}
	resp := a.Chat(t.Context(), history, model.ChatOptions{SystemPrompt: "be kind", Temperature: 0.7, MaxTokens: 64})

	require.True(t, resp.Success, resp.ErrorMessage())
	assert.Equal(t, "Hi there", resp.Content())
	data := resp.Data.(ChatData)
	assert.EqualValues(t, 1500, data.TotalDuration)
	assert.EqualValues(t, 7, data.EvalCount)

	req := f.last()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "be kind"}, req.Messages[0])
	assert.False(t, req.Stream)
	require.NotNil(t, req.Options)
	assert.Equal(t, 0.7, req.Options.Temperature)
	assert.Equal(t, 64, req.Options.NumPredict)
}

func TestAdapter_Chat_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"m"}]}`)
	})
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := NewAdapter("m", &ClientConfig{BaseURL: srv.URL, ChatTimeout: 50 * time.Millisecond})
	resp := a.Chat(t.Context(), nil, model.DefaultChatOptions())
	require.False(t, resp.Success)
	assert.Equal(t, "Request failed: request timed out", resp.ErrorMessage())
}

func TestAdapter_Chat_ZeroTemperature(t *testing.T) {
	f := &fakeOllama{installed: []string{"m"}}
	a := newTestAdapter(t, f, "m")

	resp := a.Chat(t.Context(), nil, model.ChatOptions{Temperature: 0, MaxTokens: 50})
	require.True(t, resp.Success, resp.ErrorMessage())

	req := f.last()
	require.NotNil(t, req.Options)
	assert.Zero(t, req.Options.Temperature)
	assert.Equal(t, 50, req.Options.NumPredict)
}

func TestAdapter_Chat_Unavailable(t *testing.T) {
	f := &fakeOllama{installed: []string{"other"}}
	a := newTestAdapter(t, f, "llama3.1:8b")

	resp := a.Chat(t.Context(), nil, model.DefaultChatOptions())
	require.False(t, resp.Success)
	assert.Equal(t, "Ollama service or model 'llama3.1:8b' is not available", resp.ErrorMessage())
	assert.Zero(t, f.chatCalls.Load())
}

func TestAdapter_Chat_InvalidHistory(t *testing.T) {
	f := &fakeOllama{installed: []string{"m"}}
	a := newTestAdapter(t, f, "m")

	resp := a.Chat(t.Context(), []model.Message{{Role: "tool", Content: "x"}}, model.DefaultChatOptions())
	assert.Equal(t, "Invalid message format", resp.ErrorMessage())
	assert.Zero(t, f.chatCalls.Load())
}

func TestAdapter_Chat_StatusError(t *testing.T) {
	f := &fakeOllama{installed: []string{"m"}, chatStatus: http.StatusInternalServerError}
	a := newTestAdapter(t, f, "m")

	resp := a.Chat(t.Context(), nil, model.DefaultChatOptions())
	require.False(t, resp.Success)
	assert.Contains(t, resp.ErrorMessage(), "Ollama API error: 500")
	assert.Contains(t, resp.ErrorMessage(), "model exploded")
}

// =============================================================================
// STREAM TESTS
// =============================================================================

func TestAdapter_ChatStream(t *testing.T) {
	f := &fakeOllama{
		installed: []string{"m"},
		streamBody: `{"message":{"role":"assistant","content":"Hel"},"done":false}` + "\n" +
			`{"message":{"role":"assistant","content":""},"done":false}` + "\n" +
			`not json at all` + "\n" +
			"\n" +
			`{"message":{"role":"assistant","content":"lo "},"done":false}` + "\n" +
			`{"message":{"role":"assistant","content":"world"},"done":false}` + "\n" +
			`{"message":{"role":"assistant","content":""},"done":true,"eval_count":3}` + "\n" +
			`{"message":{"role":"assistant","content":"after done"},"done":false}` + "\n",
	}
	a := newTestAdapter(t, f, "m")

	got := collect(a.ChatStream(t.Context(), nil, model.DefaultChatOptions()))
	assert.Equal(t, []string{"Hel", "lo ", "world"}, got)
	assert.True(t, f.last().Stream)
}

func TestAdapter_ChatStream_EarlyStop(t *testing.T) {
	f := &fakeOllama{
		installed:  []string{"m"},
		streamBody: strings.Repeat(`{"message":{"content":"x"},"done":false}`+"\n", 100),
	}
	a := newTestAdapter(t, f, "m")

	n := 0
	for range a.ChatStream(t.Context(), nil, model.DefaultChatOptions()) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestAdapter_ChatStream_Failures(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		f := &fakeOllama{}
		got := collect(newTestAdapter(t, f, "m").ChatStream(t.Context(), nil, model.DefaultChatOptions()))
		require.Len(t, got, 1)
		r, ok := model.ParseStreamFailure(got[0])
		require.True(t, ok)
		assert.Equal(t, "Ollama service or model 'm' is not available", r.ErrorMessage())
	})

	t.Run("status", func(t *testing.T) {
		f := &fakeOllama{installed: []string{"m"}, chatStatus: http.StatusBadGateway}
		got := collect(newTestAdapter(t, f, "m").ChatStream(t.Context(), nil, model.DefaultChatOptions()))
		require.Len(t, got, 1)
		r, ok := model.ParseStreamFailure(got[0])
		require.True(t, ok)
		assert.Contains(t, r.ErrorMessage(), "Ollama API error: 502")
	})
}
