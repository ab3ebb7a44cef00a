// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/util"
)

// MaxFileSize bounds a conversation file read from disk.
const MaxFileSize = 10 * 1024 * 1024

// =============================================================================
// FILE OPERATIONS
// =============================================================================

// SaveConversation writes conv to path as indented JSON.
func SaveConversation(conv *model.Conversation, path string) error {
	if conv == nil {
		return errors.New("conversation is nil")
	}
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	// SECURITY: conversations may contain sensitive prompts.
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// ReadFile reads a conversation file, refusing anything over MaxFileSize.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// LoadConversation reads path and imports it into store, returning the
// new id.
func LoadConversation(store session.Store, path string) (string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return "", err
	}
	id, ok := store.Import(data)
	if !ok {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrInvalidConversation)
	}
	return id, nil
}

// =============================================================================
// CONVERSATION DIRECTORY
// =============================================================================

// Dir stores conversations as <id>.json files in one directory.
type Dir struct {
	// BaseDir is the directory for storing conversations.
	// Default: ~/.rigchat/conversations/
	BaseDir string
}

// DefaultDir returns the store under ~/.rigchat/conversations.
func DefaultDir() (*Dir, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewDir(filepath.Join(home, ".rigchat", "conversations"))
}

// NewDir creates baseDir if needed.
func NewDir(baseDir string) (*Dir, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, err
	}
	return &Dir{BaseDir: baseDir}, nil
}

// Save writes conv under its id and returns the file path.
func (d *Dir) Save(conv *model.Conversation) (string, error) {
	if conv == nil {
		return "", errors.New("conversation is nil")
	}
	path, err := d.filePath(conv.ID)
	if err != nil {
		return "", err
	}
	if err := SaveConversation(conv, path); err != nil {
		return "", err
	}
	return path, nil
}

// Load imports the saved conversation id into store.
func (d *Dir) Load(store session.Store, id string) (string, error) {
	path, err := d.filePath(id)
	if err != nil {
		return "", err
	}
	return LoadConversation(store, path)
}

// List returns summaries of every readable file, newest first. Corrupt
// files are skipped.
func (d *Dir) List() ([]model.Summary, error) {
	entries, err := os.ReadDir(d.BaseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Summary{}, nil
		}
		return nil, err
	}

	summaries := []model.Summary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := ReadFile(filepath.Join(d.BaseDir, entry.Name()))
		if err != nil {
			continue
		}
		var conv model.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue
		}
		conv.ID = strings.TrimSuffix(entry.Name(), ".json")
		summaries = append(summaries, conv.Summary())
	}

	slices.SortStableFunc(summaries, func(a, b model.Summary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return summaries, nil
}

// Delete removes a saved conversation.
func (d *Dir) Delete(id string) error {
	path, err := d.filePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// filePath maps an id to its file. SECURITY: ids must be UUIDs, which
// rules out path traversal.
func (d *Dir) filePath(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidID
	}
	return filepath.Join(d.BaseDir, id+".json"), nil
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrConversationNotFound is returned when a conversation file doesn't exist.
	ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

	// ErrInvalidConversation is returned when a file fails import validation.
	ErrInvalidConversation = &ConversationError{Message: "invalid conversation data"}

	// ErrInvalidID is returned for ids that are not UUIDs.
	ErrInvalidID = &ConversationError{Message: "invalid conversation id"}

	// ErrFileTooLarge is returned for files over MaxFileSize.
	ErrFileTooLarge = &ConversationError{Message: "conversation file too large"}
)

// ConversationError is a comparable storage error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders summaries as a fixed-width table.
func FormatList(summaries []model.Summary) string {
	if len(summaries) == 0 {
		return "No saved conversations."
	}

	rule := strings.Repeat("-", 64) + "\n"
	var sb strings.Builder
	sb.WriteString(rule)
	sb.WriteString(util.PadRight("ID", 10) + " " + util.PadRight("Updated", 17) + " " + util.PadRight("Msgs", 5) + " Title\n")
	sb.WriteString(rule)

	for _, s := range summaries {
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		sb.WriteString(util.PadRight(id, 10) + " " +
			util.PadRight(s.UpdatedAt.Format("2006-01-02 15:04"), 17) + " " +
			util.PadRight(strconv.Itoa(s.MessageCount), 5) + " " +
			util.TruncateRunes(s.Title, 30) + "\n")
	}
	return sb.String()
}
