// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"net/http"

	"github.com/jeranaias/rigchat/internal/storage"
)

// WithSavedDir enables the /api/saved routes backed by dir.
func (s *Server) WithSavedDir(dir *storage.Dir) *Server {
	s.mu.Lock()
	s.saved = dir
	s.mu.Unlock()
	return s
}

func (s *Server) savedDir(w http.ResponseWriter) (*storage.Dir, bool) {
	s.mu.RLock()
	dir := s.saved
	s.mu.RUnlock()
	if dir == nil {
		writeError(w, http.StatusServiceUnavailable, "Saved conversations are not available")
		return nil, false
	}
	return dir, true
}

// handleSave writes a live conversation to disk under its id.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.savedDir(w)
	if !ok {
		return
	}
	conv, found := s.store.Get(r.PathValue("id"))
	if !found {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if _, err := dir.Save(conv); err != nil {
		s.logger.Error("save conversation failed", "conversation_id", conv.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversation_id": conv.ID})
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.savedDir(w)
	if !ok {
		return
	}
	summaries, err := dir.List()
	if err != nil {
		s.logger.Error("list saved conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list saved conversations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversations": summaries})
}

// handleLoadSaved imports a saved file as a new live conversation.
func (s *Server) handleLoadSaved(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.savedDir(w)
	if !ok {
		return
	}
	id, err := dir.Load(s.store, r.PathValue("id"))
	if err != nil {
		writeSavedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversation_id": id})
}

func (s *Server) handleDeleteSaved(w http.ResponseWriter, r *http.Request) {
	dir, ok := s.savedDir(w)
	if !ok {
		return
	}
	if err := dir.Delete(r.PathValue("id")); err != nil {
		writeSavedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeSavedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "Invalid conversation id")
	case errors.Is(err, storage.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, storage.ErrInvalidConversation), errors.Is(err, storage.ErrFileTooLarge):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Failed to load conversation")
	}
}
