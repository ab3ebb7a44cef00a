// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

var (
	t0 = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

func sampleConversation() *model.Conversation {
	return &model.Conversation{
		ID:           "c0ffee",
		Title:        "Hello there, how are...",
		CreatedAt:    t0,
		UpdatedAt:    t1,
		SystemPrompt: "Be brief.",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "Hello there, how are you today please", Timestamp: t0},
			{Role: model.RoleAssistant, Content: "Fine, thanks.", Timestamp: t1},
		},
	}
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"json", "JSON", "text", "txt", "markdown", "md"} {
		_, ok := ForFormat(name)
		assert.True(t, ok, name)
	}
	_, ok := ForFormat("pdf")
	assert.False(t, ok)

	assert.IsType(t, &JSONExporter{}, ForPath("a.JSON"))
	assert.IsType(t, &MarkdownExporter{}, ForPath("notes.md"))
	assert.IsType(t, &TextExporter{}, ForPath("chat"))
}

func TestTextExporter_Transcript(t *testing.T) {
	out, err := NewTextExporter().Export(sampleConversation())
	require.NoError(t, err)

	want := strings.Join([]string{
		"Title: Hello there, how are...",
		"Created: 2025-03-01T09:30:00Z",
		"Updated: 2025-03-01T09:31:00Z",
		"System prompt: Be brief.",
		strings.Repeat("=", 50),
		"[2025-03-01T09:30:00Z] User:",
		"Hello there, how are you today please",
		strings.Repeat("-", 30),
		"[2025-03-01T09:31:00Z] Assistant:",
		"Fine, thanks.",
		strings.Repeat("-", 30),
	}, "\n")
	assert.Equal(t, want, string(out))
}

func TestTextExporter_NoSystemPrompt(t *testing.T) {
	conv := sampleConversation()
	conv.SystemPrompt = ""
	conv.Messages = nil

	out, err := NewTextExporter().Export(conv)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "System prompt:")
	assert.True(t, strings.HasSuffix(string(out), strings.Repeat("=", 50)))
}

func TestJSONExporter_Verbatim(t *testing.T) {
	conv := sampleConversation()
	out, err := NewJSONExporter().Export(conv)
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n  \"id\": \"c0ffee\"")

	var back model.Conversation
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, *conv, back)
}

func TestMarkdownExporter(t *testing.T) {
	e := NewMarkdownExporter()
	e.now = func() time.Time { return t1 }

	conv := sampleConversation()
	conv.Title = "Question: #1"
	out, err := e.Export(conv)
	require.NoError(t, err)

	md := string(out)
	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, `title: "Question: #1"`)
	assert.Contains(t, md, "# Question: \\#1")
	assert.Contains(t, md, "> **System prompt:** Be brief.")
	assert.Contains(t, md, "### User <sub>2025-03-01 09:30:00</sub>")
	assert.Contains(t, md, "### Assistant")
	assert.Contains(t, md, "exported: 2025-03-01T09:31:00Z")
}

func TestExporters_NilConversation(t *testing.T) {
	for _, name := range Formats {
		e, ok := ForFormat(name)
		require.True(t, ok)
		_, err := e.Export(nil)
		assert.ErrorIs(t, err, ErrNilConversation, name)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "chat.json")

	require.NoError(t, WriteFile(sampleConversation(), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	assert.Error(t, WriteFile(nil, filepath.Join(dir, "nil.txt")))
}

func TestFilename(t *testing.T) {
	name := Filename(sampleConversation(), NewMarkdownExporter(), t0)
	assert.Equal(t, "conversation_Hello_there,_how_are..._20250301_093000.md", name)
	assert.Equal(t, "conversation", sanitizeFilename(""))
	assert.Equal(t, "a-b-c", sanitizeFilename("a/b:c"))
}
