// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cli"
	"github.com/jeranaias/rigchat/internal/config"
)

func fakeOllama(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newInstaller(t *testing.T, script, ollamaURL string) (*Installer, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &Installer{
		In:         cli.NewScannerInput(strings.NewReader(script), out),
		Out:        out,
		ConfigPath: filepath.Join(t.TempDir(), "config.toml"),
		OllamaURL:  ollamaURL,
		getenv: func(k string) string {
			if k == "GEMINI_API_KEY" {
				return "set"
			}
			return ""
		},
	}, out
}

func TestInstaller_ChoosesModels(t *testing.T) {
	srv := fakeOllama(t, `{"models":[{"name":"qwen2.5:7b"},{"name":"llama3.1:8b"},{"name":"gemma3:4b"}]}`)
	inst, out := newInstaller(t, "x\n3,1,3\n", srv.URL)

	res, err := inst.Run(t.Context())
	require.NoError(t, err)
	assert.True(t, res.OllamaRunning)
	assert.Equal(t, []string{"gemini"}, res.KeysPresent)
	assert.Contains(t, out.String(), `invalid choice "x"`)

	cfg, err := config.LoadFromPath(inst.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2.5:7b", "gemma3:4b"}, cfg.Ollama.Models, "sorted list, picks 3 then 1, duplicates dropped")
	assert.Equal(t, "qwen2.5:7b", cfg.Ollama.DefaultModel)
	assert.Equal(t, srv.URL, cfg.Ollama.BaseURL)

	info, err := os.Stat(inst.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestInstaller_AssumeYesTakesAll(t *testing.T) {
	srv := fakeOllama(t, `{"models":[{"name":"b:1"},{"name":"a:1"}]}`)
	inst, _ := newInstaller(t, "", srv.URL)
	inst.AssumeYes = true

	res, err := inst.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:1"}, res.Config.Ollama.Models)
	assert.Equal(t, "a:1", res.Config.Ollama.DefaultModel)
}

func TestInstaller_OllamaDownKeepsDefaults(t *testing.T) {
	srv := fakeOllama(t, "")
	url := srv.URL
	srv.Close()

	inst, out := newInstaller(t, "", url)
	res, err := inst.Run(t.Context())
	require.NoError(t, err)
	assert.False(t, res.OllamaRunning)
	assert.Equal(t, config.Default().Ollama.Models, res.Config.Ollama.Models)
	assert.Contains(t, out.String(), "ollama pull")
}

func TestInstaller_RefusesToOverwrite(t *testing.T) {
	inst, _ := newInstaller(t, "", "http://127.0.0.1:1")
	require.NoError(t, os.WriteFile(inst.ConfigPath, []byte("# mine\n"), 0o600))

	_, err := inst.Run(t.Context())
	assert.ErrorIs(t, err, ErrConfigExists)

	data, err := os.ReadFile(inst.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}

func TestParseSelection(t *testing.T) {
	opts := []string{"a", "b", "c"}

	got, err := parseSelection("", opts)
	require.NoError(t, err)
	assert.Equal(t, opts, got)

	got, err = parseSelection(" 2 , 2,1", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)

	_, err = parseSelection("4", opts)
	assert.Error(t, err)
}
