// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
)

// DefaultMaxHistory is the number of user/assistant pairs kept per
// conversation.
const DefaultMaxHistory = 50

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is a mutex-guarded, in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*model.Conversation
	// order is insertion order, used to break List ties.
	order []string
	// started holds ids that have ever received a message. Clear does not
	// reset it, so the title decision is made once.
	started map[string]struct{}

	maxHistory int
	logger     *slog.Logger
	now        func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store keeping at most 2 x maxHistory
// messages per conversation. Values below 1 use DefaultMaxHistory.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory < 1 {
		maxHistory = DefaultMaxHistory
	}
	return &MemoryStore{
		convs:      make(map[string]*model.Conversation),
		started:    make(map[string]struct{}),
		maxHistory: maxHistory,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
	}
}

// WithLogger sets the logger for lifecycle events.
func (s *MemoryStore) WithLogger(l *slog.Logger) *MemoryStore {
	if l != nil {
		s.logger = l.With("component", "session")
	}
	return s
}

// MaxHistory returns the configured pair limit.
func (s *MemoryStore) MaxHistory() int {
	return s.maxHistory
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create allocates a conversation with an empty history.
func (s *MemoryStore) Create(systemPrompt string) string {
	now := s.now()
	conv := &model.Conversation{
		ID:           uuid.NewString(),
		Title:        model.DefaultTitle,
		CreatedAt:    now,
		UpdatedAt:    now,
		SystemPrompt: systemPrompt,
		Messages:     []model.Message{},
	}

	s.mu.Lock()
	s.insertLocked(conv)
	s.mu.Unlock()

	s.logger.Info("created conversation", "id", conv.ID)
	return conv.ID
}

// Get returns a deep copy of the conversation.
func (s *MemoryStore) Get(id string) (*model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Messages returns a copy of the history. Unknown ids yield an empty
// slice.
func (s *MemoryStore) Messages(id string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	if !ok {
		return []model.Message{}
	}
	return slices.Clone(conv.Messages)
}

// Delete removes a conversation.
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return false
	}
	delete(s.convs, id)
	delete(s.started, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	s.logger.Info("deleted conversation", "id", id)
	return true
}

// =============================================================================
// MUTATION
// =============================================================================

// AddMessage appends a message and derives the title when this is the
// first message and it came from the user.
func (s *MemoryStore) AddMessage(id string, role model.Role, content string) bool {
	return s.addMessage(id, role, content, true)
}

// AddMessageNoTitle appends a message without touching the title.
func (s *MemoryStore) AddMessageNoTitle(id string, role model.Role, content string) bool {
	return s.addMessage(id, role, content, false)
}

func (s *MemoryStore) addMessage(id string, role model.Role, content string, updateTitle bool) bool {
	if !role.IsStored() {
		s.logger.Warn("rejected message with invalid role", "id", id, "role", role)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[id]
	if !ok {
		s.logger.Warn("message for unknown conversation", "id", id)
		return false
	}

	now := s.now()
	conv.Messages = append(conv.Messages, model.Message{Role: role, Content: content, Timestamp: now})
	conv.UpdatedAt = now

	_, seen := s.started[id]
	s.started[id] = struct{}{}

	// Only the first-ever message can name the conversation.
	if updateTitle && !seen && role == model.RoleUser && conv.Title == model.DefaultTitle {
		conv.Title = model.DeriveTitle(content)
		s.logger.Debug("derived conversation title", "id", id, "title", conv.Title)
	}

	if s.trimLocked(conv) {
		s.logger.Debug("trimmed conversation history", "id", id, "kept", len(conv.Messages))
	}
	return true
}

// UpdateSystemPrompt replaces the system prompt.
func (s *MemoryStore) UpdateSystemPrompt(id, prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return false
	}
	conv.SystemPrompt = prompt
	conv.UpdatedAt = s.now()
	return true
}

// Clear removes all messages but keeps identity, title and prompt.
func (s *MemoryStore) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return false
	}
	conv.Messages = []model.Message{}
	conv.UpdatedAt = s.now()
	return true
}

// =============================================================================
// VIEWS
// =============================================================================

// List returns summaries ordered by last update, newest first. Equal
// timestamps keep insertion order.
func (s *MemoryStore) List() []model.Summary {
	s.mu.RLock()
	out := make([]model.Summary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.convs[id].Summary())
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b model.Summary) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return out
}

// Export renders a conversation. Unknown ids and formats report false.
func (s *MemoryStore) Export(id, format string) (string, bool) {
	exporter, ok := export.ForFormat(format)
	if !ok {
		s.logger.Warn("unsupported export format", "format", format)
		return "", false
	}
	conv, ok := s.Get(id)
	if !ok {
		return "", false
	}
	data, err := exporter.Export(conv)
	if err != nil {
		s.logger.Error("export failed", "id", id, "error", err)
		return "", false
	}
	return string(data), true
}

// Import validates a serialized conversation and stores it under a new
// id. Any embedded id is ignored.
func (s *MemoryStore) Import(data []byte) (string, bool) {
	conv, err := DecodeConversation(data, s.now())
	if err != nil {
		s.logger.Warn("rejected conversation import", "error", err)
		return "", false
	}
	conv.ID = uuid.NewString()

	s.mu.Lock()
	s.trimLocked(conv)
	s.insertLocked(conv)
	s.mu.Unlock()

	s.logger.Info("imported conversation", "id", conv.ID, "messages", len(conv.Messages))
	return conv.ID, true
}

// Stats returns aggregate counts. The average is 0 for an empty store.
func (s *MemoryStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{TotalConversations: len(s.convs)}
	for _, conv := range s.convs {
		st.TotalMessages += len(conv.Messages)
	}
	if st.TotalConversations > 0 {
		st.AverageMessages = float64(st.TotalMessages) / float64(st.TotalConversations)
	}
	return st
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *MemoryStore) insertLocked(conv *model.Conversation) {
	s.convs[conv.ID] = conv
	s.order = append(s.order, conv.ID)
	if len(conv.Messages) > 0 {
		s.started[conv.ID] = struct{}{}
	}
}

// trimLocked keeps the newest 2 x maxHistory messages.
func (s *MemoryStore) trimLocked(conv *model.Conversation) bool {
	limit := 2 * s.maxHistory
	if len(conv.Messages) <= limit {
		return false
	}
	drop := len(conv.Messages) - limit
	conv.Messages = slices.Clone(conv.Messages[drop:])
	return true
}

// newest returns the later of two times.
func newest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
