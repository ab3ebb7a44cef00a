// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/router"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds every JSON request body.
	MaxRequestBodySize = 1 << 20

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts chat traffic since start.
type Stats struct {
	ChatRequests   int64     `json:"chat_requests"`
	StreamRequests int64     `json:"stream_requests"`
	FailedChats    int64     `json:"failed_chats"`
	StartTime      time.Time `json:"start_time"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
}

type serverStats struct {
	chats   atomic.Int64
	streams atomic.Int64
	failed  atomic.Int64
	start   time.Time
}

func (s *serverStats) snapshot() Stats {
	return Stats{
		ChatRequests:   s.chats.Load(),
		StreamRequests: s.streams.Load(),
		FailedChats:    s.failed.Load(),
		StartTime:      s.start,
		UptimeSeconds:  int64(time.Since(s.start).Seconds()),
	}
}

// ============================================================================
// SERVER
// ============================================================================

// Server exposes the session store and the selected model over HTTP.
type Server struct {
	store   session.Store
	reg     *router.Registry
	logger  *slog.Logger
	limiter *RateLimiter
	mux     *http.ServeMux
	stats   *serverStats

	mu           sync.RWMutex
	cfg          *config.Config
	currentModel string
	adapter      model.Adapter
	saved        *storage.Dir
	httpServer   *http.Server
}

// New creates a server. No model is selected until SelectModel or
// POST /api/models/{name} succeeds.
func New(cfg *config.Config, store session.Store, reg *router.Registry) *Server {
	s := &Server{
		store:   store,
		reg:     reg,
		logger:  slog.New(slog.DiscardHandler),
		limiter: DefaultRateLimiter(),
		mux:     http.NewServeMux(),
		stats:   &serverStats{start: time.Now()},
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

// WithLogger sets the logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	if l != nil {
		s.logger = l.With("component", "server")
	}
	return s
}

// WithRateLimiter replaces the per-client limiter.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	if rl != nil {
		s.limiter = rl
	}
	return s
}

// Config returns the active configuration.
func (s *Server) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyConfig swaps in a reloaded configuration. Chat defaults apply to
// the next request; the selected model is kept.
func (s *Server) ApplyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.logger.Info("configuration applied",
		"temperature", cfg.Chat.Temperature,
		"max_tokens", cfg.Chat.MaxTokens)
}

// CurrentModel returns the selected model name, or "".
func (s *Server) CurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModel
}

func (s *Server) current() (string, model.Adapter) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModel, s.adapter
}

// Sentinel errors from SelectModel.
var (
	ErrInvalidModel  = errors.New("invalid model name")
	ErrCreateAdapter = errors.New("failed to create model")
)

// SelectModel validates name, builds its adapter and makes it current.
// It reports whether the model is reachable right now.
func (s *Server) SelectModel(ctx context.Context, name string) (available bool, err error) {
	cfg := s.Config()
	if !cfg.IsValidModel(name) {
		return false, fmt.Errorf("%w: %s", ErrInvalidModel, name)
	}
	a, ok := s.reg.ForModel(ctx, cfg, name)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrCreateAdapter, name)
	}

	s.mu.Lock()
	s.currentModel = name
	s.adapter = a
	s.mu.Unlock()

	s.logger.Info("model selected", "model", name)
	return a.IsAvailable(ctx), nil
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/models", s.handleListModels)
	s.mux.HandleFunc("POST /api/models/{name}", s.handleSelectModel)

	s.mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	s.mux.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	s.mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	s.mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	s.mux.HandleFunc("POST /api/conversations/{id}/clear", s.handleClearConversation)
	s.mux.HandleFunc("PUT /api/conversations/{id}/system-prompt", s.handleUpdateSystemPrompt)
	s.mux.HandleFunc("GET /api/conversations/{id}/export", s.handleExport)
	s.mux.HandleFunc("POST /api/conversations/{id}/import", s.handleImport)
	s.mux.HandleFunc("POST /api/conversations/{id}/chat", s.handleChat)

	s.mux.HandleFunc("POST /api/conversations/{id}/save", s.handleSave)
	s.mux.HandleFunc("GET /api/saved", s.handleListSaved)
	s.mux.HandleFunc("POST /api/saved/{id}/load", s.handleLoadSaved)
	s.mux.HandleFunc("DELETE /api/saved/{id}", s.handleDeleteSaved)

	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware(),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
	)(s.mux)
}

// ============================================================================
// MODEL HANDLERS
// ============================================================================

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config()
	statuses := s.reg.ProbeAll(r.Context(), cfg)

	names := make([]string, 0, len(statuses))
	configs := make(map[string]router.ModelStatus, len(statuses))
	for _, st := range statuses {
		names = append(names, st.Name)
		configs[st.Name] = st
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"models":        names,
		"configs":       configs,
		"current_model": s.CurrentModel(),
	})
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	available, err := s.SelectModel(r.Context(), name)
	switch {
	case errors.Is(err, ErrInvalidModel):
		writeError(w, http.StatusBadRequest, "Invalid model name: "+name)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to create model: "+name)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"model":     name,
		"available": available,
	})
}

// ============================================================================
// CONVERSATION HANDLERS
// ============================================================================

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"conversations": s.store.List(),
	})
}

type createConversationRequest struct {
	SystemPrompt *string `json:"system_prompt"`
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	prompt := s.Config().Chat.SystemPrompt
	if req.SystemPrompt != nil {
		prompt = *req.SystemPrompt
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"conversation_id": s.store.Create(prompt),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"conversation": conv,
	})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.store.Delete(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	if !s.store.Clear(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type systemPromptRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

func (s *Server) handleUpdateSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req systemPromptRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	if !s.store.UpdateSystemPrompt(r.PathValue("id"), req.SystemPrompt) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if _, ok := export.ForFormat(format); !ok {
		writeError(w, http.StatusBadRequest, "Unsupported export format: "+format)
		return
	}

	content, ok := s.store.Export(r.PathValue("id"), format)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"content": content,
		"format":  format,
	})
}

// handleImport stores the posted export document as a new conversation.
// The {id} segment is ignored; a fresh id is always assigned.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	if err != nil {
		writeBodyError(w, err)
		return
	}
	id, ok := s.store.Import(data)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid conversation data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"conversation_id": id,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   s.store.Stats(),
		"server":  s.stats.snapshot(),
	})
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully. When configPath is non-empty, edits to that file are
// applied live.
func (s *Server) Run(ctx context.Context, configPath string) error {
	if configPath != "" {
		if _, err := config.Watch(ctx, configPath, s.logger, s.ApplyConfig); err != nil {
			s.logger.Warn("config watch disabled", "path", configPath, "error", err)
		}
	}

	addr := s.Config().Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server started", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}

// decodeOptionalJSON decodes a bounded body into v. An empty body leaves v
// untouched. It writes the error response and returns false on failure.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodySize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeBodyError(w, err)
	return false
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Request body exceeds maximum size of %d bytes", MaxRequestBodySize))
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request format")
}

// sanitizeMessage normalizes an incoming chat message.
func sanitizeMessage(s string) string {
	return util.SanitizeInput(s)
}
