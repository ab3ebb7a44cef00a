// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
The rigchat installer writes a first configuration file.

It checks that Ollama answers on /api/tags, lets the user pick which
installed models to register (the first becomes the default), reports
which hosted providers have API keys in the environment, and saves
~/.rigchat/config.toml with owner-only permissions.

# Building

	go build -o rigchat-installer ./cmd/installer

# Usage

	rigchat-installer              Interactive setup
	rigchat-installer --yes        Accept every default
	rigchat-installer --force      Overwrite an existing config
*/
package main
