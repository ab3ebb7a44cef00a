// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestNew_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, config.LoggingConfig{Level: "warn", Format: "text"}, false)

	l.Info("hidden")
	l.Warn("shown", "model", "llama3.1:8b")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "model=llama3.1:8b")
}

func TestNew_DebugFlagOverrides(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, config.LoggingConfig{Level: "error", Format: "text"}, true)
	l.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, config.LoggingConfig{Level: "info", Format: "json"}, false)
	l.Info("hello", "n", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, float64(3), rec["n"])
}
