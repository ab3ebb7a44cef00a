// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cli"
)

func TestRun_HelpAndVersion(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, run([]string{"--help"}, &out, &errOut))
	assert.Contains(t, out.String(), "Usage:")

	out.Reset()
	assert.Equal(t, 0, run([]string{"version"}, &out, &errOut))
	assert.Contains(t, out.String(), Version)
}

func TestRun_BadArguments(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run([]string{"launch-rockets"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestRun_Export(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "chat.json")
	out := filepath.Join(dir, "chat.md")
	require.NoError(t, os.WriteFile(in, []byte(`{"title":"t","messages":[{"role":"user","content":"yo"}]}`), 0o600))

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run([]string{"export", in, out}, &stdout, &stderr), stderr.String())

	md, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(md), "yo")

	assert.Equal(t, 1, run([]string{"export", filepath.Join(dir, "nope.json"), out}, &stdout, &stderr))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	for _, k := range []string{"RIGCHAT_HOST", "RIGCHAT_PORT", "RIGCHAT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 6000\n"), 0o600))

	cfg, got, err := loadConfig(cli.Args{ConfigPath: path, Host: "0.0.0.0", Port: 7000, Debug: true})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, "0.0.0.0:7000", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Logging.Level)

	cfg, _, err = loadConfig(cli.Args{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[chat]\ntemperature = 9.0\n"), 0o600))

	_, _, err := loadConfig(cli.Args{ConfigPath: path})
	assert.Error(t, err)
}
