// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

// tickingClock advances one second per call so every mutation gets a
// distinct timestamp.
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(maxHistory int) *MemoryStore {
	s := NewMemoryStore(maxHistory)
	clock := &tickingClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = clock.Now
	return s
}

func TestMemoryStore_Create(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("Be brief.")
	other := s.Create("")
	assert.NotEqual(t, id, other)

	conv, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, model.DefaultTitle, conv.Title)
	assert.Equal(t, "Be brief.", conv.SystemPrompt)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, conv.CreatedAt, conv.UpdatedAt)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestMemoryStore_NewMemoryStoreDefaults(t *testing.T) {
	assert.Equal(t, DefaultMaxHistory, NewMemoryStore(0).MaxHistory())
	assert.Equal(t, 3, NewMemoryStore(3).MaxHistory())
}

func TestMemoryStore_TitleDerivation(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("")

	require.True(t, s.AddMessage(id, model.RoleUser, "Hello there, how are you today please"))
	conv, _ := s.Get(id)
	assert.Equal(t, "Hello there, how are...", conv.Title)

	require.True(t, s.AddMessage(id, model.RoleAssistant, "Fine"))
	require.True(t, s.AddMessage(id, model.RoleUser, "Something else entirely"))
	conv, _ = s.Get(id)
	assert.Equal(t, "Hello there, how are...", conv.Title)

	// Clearing does not re-derive.
	require.True(t, s.Clear(id))
	require.True(t, s.AddMessage(id, model.RoleUser, "Brand new start"))
	conv, _ = s.Get(id)
	assert.Equal(t, "Hello there, how are...", conv.Title)
}

func TestMemoryStore_TitleNotDerivedAfterClear(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("")

	require.True(t, s.AddMessage(id, model.RoleAssistant, "Welcome back"))
	require.True(t, s.Clear(id))
	require.True(t, s.AddMessage(id, model.RoleUser, "second turn user text here"))

	conv, _ := s.Get(id)
	assert.Equal(t, model.DefaultTitle, conv.Title)
}

func TestMemoryStore_TitleShortAndSuppressed(t *testing.T) {
	s := newTestStore(5)

	short := s.Create("")
	s.AddMessage(short, model.RoleUser, "  hi  ")
	conv, _ := s.Get(short)
	assert.Equal(t, "hi", conv.Title)

	quiet := s.Create("")
	s.AddMessageNoTitle(quiet, model.RoleUser, "should not become the title")
	conv, _ = s.Get(quiet)
	assert.Equal(t, model.DefaultTitle, conv.Title)

	assistantFirst := s.Create("")
	s.AddMessage(assistantFirst, model.RoleAssistant, "Welcome!")
	s.AddMessage(assistantFirst, model.RoleUser, "thanks")
	conv, _ = s.Get(assistantFirst)
	assert.Equal(t, model.DefaultTitle, conv.Title)
}

func TestMemoryStore_AddMessageRejects(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("")
	before, _ := s.Get(id)

	assert.False(t, s.AddMessage("missing", model.RoleUser, "x"))
	assert.False(t, s.AddMessage(id, model.RoleSystem, "x"))
	assert.False(t, s.AddMessage(id, "tool", "x"))

	after, _ := s.Get(id)
	assert.Equal(t, before, after)
}

func TestMemoryStore_TrimKeepsNewest(t *testing.T) {
	const maxHistory = 3
	s := newTestStore(maxHistory)
	id := s.Create("")

	for i := range 20 {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		require.True(t, s.AddMessage(id, role, fmt.Sprintf("m%d", i)))
		assert.LessOrEqual(t, len(s.Messages(id)), 2*maxHistory)
	}

	msgs := s.Messages(id)
	require.Len(t, msgs, 2*maxHistory)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%d", 14+i), m.Content)
	}
	conv, _ := s.Get(id)
	assert.Equal(t, "m0", conv.Title)
}

func TestMemoryStore_MessagesIsCopy(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("")
	s.AddMessage(id, model.RoleUser, "original")

	msgs := s.Messages(id)
	msgs[0].Content = "mutated"
	assert.Equal(t, "original", s.Messages(id)[0].Content)

	assert.NotNil(t, s.Messages("missing"))
	assert.Empty(t, s.Messages("missing"))
}

func TestMemoryStore_PromptClearDelete(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("old")
	s.AddMessage(id, model.RoleUser, "hello")

	require.True(t, s.UpdateSystemPrompt(id, "new"))
	require.True(t, s.Clear(id))
	conv, _ := s.Get(id)
	assert.Equal(t, "new", conv.SystemPrompt)
	assert.Empty(t, conv.Messages)
	assert.Equal(t, "hello", conv.Title)
	assert.True(t, conv.UpdatedAt.After(conv.CreatedAt))

	require.True(t, s.Delete(id))
	assert.False(t, s.Delete(id))
	assert.False(t, s.UpdateSystemPrompt(id, "x"))
	assert.False(t, s.Clear(id))
	assert.Empty(t, s.List())
}

func TestMemoryStore_ListOrder(t *testing.T) {
	s := newTestStore(5)
	a := s.Create("")
	b := s.Create("")
	c := s.Create("")

	s.AddMessage(b, model.RoleUser, "touch b")
	s.AddMessage(a, model.RoleUser, "touch a")

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{a, b, c}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, 1, list[0].MessageCount)
}

func TestMemoryStore_ListTiesKeepInsertionOrder(t *testing.T) {
	s := NewMemoryStore(5)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ids := []string{s.Create(""), s.Create(""), s.Create("")}
	list := s.List()
	for i, sum := range list {
		assert.Equal(t, ids[i], sum.ID)
	}
}

func TestMemoryStore_ExportFormats(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("Be brief.")
	s.AddMessage(id, model.RoleUser, "Hi")
	s.AddMessage(id, model.RoleAssistant, "Hello!")

	text, ok := s.Export(id, "text")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(text, "Title: Hi\n"))
	assert.Contains(t, text, "System prompt: Be brief.")
	assert.Contains(t, text, "] Assistant:\nHello!")

	txt, ok := s.Export(id, "txt")
	require.True(t, ok)
	assert.Equal(t, text, txt)

	js, ok := s.Export(id, "json")
	require.True(t, ok)
	assert.True(t, json.Valid([]byte(js)))
	assert.Contains(t, js, `"id": "`+id+`"`)

	_, ok = s.Export(id, "pdf")
	assert.False(t, ok)
	_, ok = s.Export("missing", "json")
	assert.False(t, ok)
}

func TestMemoryStore_ExportImportRoundTrip(t *testing.T) {
	s := newTestStore(5)
	id := s.Create("Be brief.")
	s.AddMessage(id, model.RoleUser, "Hi")
	s.AddMessage(id, model.RoleAssistant, "Hello!")
	s.AddMessage(id, model.RoleUser, "Bye")

	js, ok := s.Export(id, "json")
	require.True(t, ok)

	newID, ok := s.Import([]byte(js))
	require.True(t, ok)
	assert.NotEqual(t, id, newID)

	orig, _ := s.Get(id)
	copied, _ := s.Get(newID)
	require.Len(t, copied.Messages, len(orig.Messages))
	for i := range orig.Messages {
		assert.Equal(t, orig.Messages[i].Role, copied.Messages[i].Role)
		assert.Equal(t, orig.Messages[i].Content, copied.Messages[i].Content)
	}
	assert.Equal(t, orig.SystemPrompt, copied.SystemPrompt)
	assert.Len(t, s.List(), 2)
}

func TestMemoryStore_ImportValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"minimal", `{"messages":[]}`, true},
		{"legacy timestamps", `{"id":"keep-out","created_at":"2024-05-01T10:00:00.123456","messages":[{"role":"user","content":"hi","timestamp":"2024-05-01T10:00:01.5"}]}`, true},
		{"null content", `{"messages":[{"role":"assistant","content":null}]}`, true},
		{"not json", `nope`, false},
		{"array", `[]`, false},
		{"no messages", `{"title":"x"}`, false},
		{"messages null", `{"messages":null}`, false},
		{"messages object", `{"messages":{}}`, false},
		{"entry not object", `{"messages":["hi"]}`, false},
		{"system role", `{"messages":[{"role":"system","content":"x"}]}`, false},
		{"missing role", `{"messages":[{"content":"x"}]}`, false},
		{"missing content", `{"messages":[{"role":"user"}]}`, false},
		{"numeric content", `{"messages":[{"role":"user","content":7}]}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(5)
			id, ok := s.Import([]byte(tt.data))
			assert.Equal(t, tt.ok, ok)
			if !ok {
				assert.Empty(t, s.List())
				return
			}
			assert.NotEqual(t, "keep-out", id)
			conv, found := s.Get(id)
			require.True(t, found)
			assert.Equal(t, model.DefaultTitle, conv.Title)
		})
	}
}

func TestMemoryStore_ImportCoercesContent(t *testing.T) {
	s := newTestStore(5)
	id, ok := s.Import([]byte(`{"messages":[{"role":"user","content":42},{"role":"assistant","content":{"a":1}}]}`))
	require.True(t, ok)

	got := s.Messages(id)
	require.Len(t, got, 2)
	assert.Equal(t, "42", got[0].Content)
	assert.Equal(t, `{"a":1}`, got[1].Content)
}

func TestMemoryStore_ImportTrims(t *testing.T) {
	var msgs []string
	for i := range 10 {
		msgs = append(msgs, fmt.Sprintf(`{"role":"user","content":"m%d"}`, i))
	}
	s := newTestStore(2)
	id, ok := s.Import([]byte(`{"messages":[` + strings.Join(msgs, ",") + `]}`))
	require.True(t, ok)

	got := s.Messages(id)
	require.Len(t, got, 4)
	assert.Equal(t, "m6", got[0].Content)
}

func TestMemoryStore_Stats(t *testing.T) {
	s := newTestStore(5)
	assert.Equal(t, Stats{}, s.Stats())

	a := s.Create("")
	b := s.Create("")
	s.Create("")
	s.AddMessage(a, model.RoleUser, "1")
	s.AddMessage(a, model.RoleAssistant, "2")
	s.AddMessage(b, model.RoleUser, "3")

	st := s.Stats()
	assert.Equal(t, 3, st.TotalConversations)
	assert.Equal(t, 3, st.TotalMessages)
	assert.InDelta(t, 1.0, st.AverageMessages, 1e-9)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_conversations":3,"total_messages":3,"average_messages_per_conversation":1}`, string(data))
}

// Run with: go test -race ./internal/session/
func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	s := NewMemoryStore(4)
	id := s.Create("")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			s.AddMessage(id, model.RoleUser, fmt.Sprintf("msg %d", i))
		}()
		go func() {
			defer wg.Done()
			_ = s.List()
			_ = s.Stats()
		}()
		go func() {
			defer wg.Done()
			other := s.Create("")
			s.Delete(other)
		}()
	}
	wg.Wait()

	assert.Len(t, s.Messages(id), 8)
	assert.Len(t, s.List(), 1)
}
