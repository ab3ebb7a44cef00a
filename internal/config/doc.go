// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads rigchat's TOML configuration.
//
// Configuration file location:
//   - ~/.rigchat/config.toml (optional; built-in defaults otherwise)
//
// Values are layered as defaults, then the file, then RIGCHAT_* environment
// variables, and the result is validated.
//
// # Key Types
//
//   - Config: the whole configuration tree
//   - ModelRef: a resolved, selectable model name
//   - Watcher: fsnotify-based reload of the config file
//
// # Usage
//
//	cfg, err := config.Load()
//	ref, ok := cfg.LookupModel("deepseek")
//	if ok {
//	    fmt.Println(ref.Kind, ref.Model, ref.APIKey())
//	}
//
// API keys are never stored in the file. Each hosted provider names the
// environment variable that holds its key.
package config
