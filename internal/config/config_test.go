// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

// isolateEnv points HOME at a temp dir and blanks every RIGCHAT_* override.
func isolateEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{
		"RIGCHAT_OLLAMA_URL", "RIGCHAT_MODEL", "RIGCHAT_HOST",
		"RIGCHAT_PORT", "RIGCHAT_MAX_HISTORY", "RIGCHAT_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return home
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, []string{"llama3.1:8b", "deepseek-r1:8b", "gemma3:12b"}, cfg.Ollama.Models)
	assert.Equal(t, "llama3.1:8b", cfg.Ollama.DefaultModel)
	assert.Equal(t, "deepseek", cfg.Online.DefaultProvider)
	assert.Len(t, cfg.Online.Providers, 3)
	assert.Equal(t, 50, cfg.Chat.MaxHistoryLength)
	assert.Equal(t, 0.7, cfg.Chat.Temperature)
	assert.Equal(t, 2000, cfg.Chat.MaxTokens)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad ollama url", func(c *Config) { c.Ollama.BaseURL = "localhost:11434" }, "ollama.base_url"},
		{"zero history", func(c *Config) { c.Chat.MaxHistoryLength = 0 }, "chat.max_history_length"},
		{"temperature too high", func(c *Config) { c.Chat.Temperature = 2.5 }, "chat.temperature"},
		{"negative tokens", func(c *Config) { c.Chat.MaxTokens = -1 }, "chat.max_tokens"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"provider without model", func(c *Config) {
			c.Online.Providers["openai"] = ProviderConfig{BaseURL: "https://api.openai.com/v1"}
		}, "online.providers.openai.model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			var verrs ValidateErrors
			assert.ErrorAs(t, err, &verrs)
		})
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	isolateEnv(t)
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromPath_PartialFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[ollama]
models = ["qwen2:7b"]

[online.providers.openai]
base_url = "https://api.openai.com/v1"
model = "gpt-4o-mini"
api_key_env = "OPENAI_API_KEY"

[chat]
max_history_length = 10
`), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"qwen2:7b"}, cfg.Ollama.Models)
	assert.Equal(t, "qwen2:7b", cfg.Ollama.DefaultModel)
	assert.Equal(t, 10, cfg.Chat.MaxHistoryLength)
	assert.Equal(t, 0.7, cfg.Chat.Temperature)
	assert.Equal(t, []string{"qwen2:7b", "openai"}, cfg.AllModels())
}

func TestLoadFromPath_ZeroTemperatureKept(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\ntemperature = 0.0\n"), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Chat.Temperature)
	assert.Zero(t, cfg.ChatOptions("").Temperature)
}

func TestLoadFromPath_InvalidTOML(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat\nmax_tokens = "), 0o600))

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "failed to decode TOML")
}

func TestApplyEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("RIGCHAT_OLLAMA_URL", "http://gpu-box:11434")
	t.Setenv("RIGCHAT_PORT", "8080")
	t.Setenv("RIGCHAT_MAX_HISTORY", "not-a-number")
	t.Setenv("RIGCHAT_LOG_LEVEL", "DEBUG")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "http://gpu-box:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Chat.MaxHistoryLength)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Server.Port = 5050
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# rigchat configuration file")
}

func TestLookupModel(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	cfg := Default()

	ref, ok := cfg.LookupModel("gemma3:12b")
	require.True(t, ok)
	assert.Equal(t, model.KindOllama, ref.Kind)
	assert.Equal(t, "gemma3:12b", ref.Model)
	assert.Equal(t, "http://localhost:11434", ref.BaseURL)
	assert.Empty(t, ref.APIKey())

	ref, ok = cfg.LookupModel("deepseek")
	require.True(t, ok)
	assert.Equal(t, model.KindOnline, ref.Kind)
	assert.Equal(t, "deepseek", ref.Provider)
	assert.Equal(t, "deepseek-chat", ref.Model)
	assert.Equal(t, "sk-test", ref.APIKey())

	_, ok = cfg.LookupModel("claude")
	assert.False(t, ok)
	assert.False(t, cfg.IsValidModel(""))
}

func TestAllModels_Order(t *testing.T) {
	assert.Equal(t, []string{
		"llama3.1:8b", "deepseek-r1:8b", "gemma3:12b",
		"deepseek", "gemini", "openai",
	}, Default().AllModels())
}

func TestClone_Independent(t *testing.T) {
	orig := Default()
	cp := orig.Clone()
	cp.Ollama.Models[0] = "changed"
	cp.Online.Providers["extra"] = ProviderConfig{}

	assert.Equal(t, "llama3.1:8b", orig.Ollama.Models[0])
	assert.NotContains(t, orig.Online.Providers, "extra")
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changed := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(path, func(c *Config) { changed <- c })
	require.NoError(t, err)
	w.WithDebounce(20 * time.Millisecond)
	go w.Run(ctx)

	updated := Default()
	updated.Server.Port = 6001
	require.NoError(t, SaveTOML(updated, path))

	select {
	case cfg := <-changed:
		assert.Equal(t, 6001, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_SkipsInvalidEdit(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	changed := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewWatcher(path, func(c *Config) { changed <- c })
	require.NoError(t, err)
	w.WithDebounce(20 * time.Millisecond)
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 0\nhost = 1\n"), 0o600))

	select {
	case <-changed:
		t.Fatal("invalid config should not be delivered")
	case <-time.After(300 * time.Millisecond):
	}
}
