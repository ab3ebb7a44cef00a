// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/jeranaias/rigchat/internal/cli"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/ollama"
)

// ErrConfigExists is returned when the target file exists and Force is off.
var ErrConfigExists = errors.New("config already exists (use --force to overwrite)")

// Installer walks through Ollama detection, model selection and provider
// key checks, then writes config.toml.
type Installer struct {
	In  cli.LineReader
	Out io.Writer

	// ConfigPath is the file to write.
	ConfigPath string
	// OllamaURL overrides the default Ollama address.
	OllamaURL string
	// Force overwrites an existing file.
	Force bool
	// AssumeYes accepts every default without prompting.
	AssumeYes bool

	// getenv is os.Getenv outside tests.
	getenv func(string) string
}

// Result summarizes what was written.
type Result struct {
	Config        *config.Config
	OllamaRunning bool
	KeysPresent   []string
}

// Run executes every step. It returns ErrConfigExists before any probing
// when the file would be clobbered.
func (i *Installer) Run(ctx context.Context) (*Result, error) {
	if i.getenv == nil {
		i.getenv = os.Getenv
	}
	if !i.Force {
		if _, err := os.Stat(i.ConfigPath); err == nil {
			return nil, fmt.Errorf("%s: %w", i.ConfigPath, ErrConfigExists)
		}
	}

	cfg := config.Default()
	if i.OllamaURL != "" {
		cfg.Ollama.BaseURL = i.OllamaURL
	}

	i.section("SYSTEM CHECK")
	installed, running := i.checkOllama(ctx, cfg.Ollama.BaseURL)

	i.section("LOCAL MODELS")
	if len(installed) > 0 {
		chosen, err := i.chooseModels(installed)
		if err != nil {
			return nil, err
		}
		cfg.Ollama.Models = chosen
		cfg.Ollama.DefaultModel = chosen[0]
	} else {
		i.printf("  [!!] No installed models found; keeping defaults: %s\n", strings.Join(cfg.Ollama.Models, ", "))
		i.printf("       -> Run: ollama pull %s\n", cfg.Ollama.DefaultModel)
	}

	i.section("HOSTED PROVIDERS")
	keys := i.checkProviderKeys(cfg)

	i.section("CREATING CONFIGURATION")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := config.SaveTOML(cfg, i.ConfigPath); err != nil {
		return nil, err
	}
	i.printf("  [OK] Created config: %s\n", i.ConfigPath)

	return &Result{Config: cfg, OllamaRunning: running, KeysPresent: keys}, nil
}

func (i *Installer) checkOllama(ctx context.Context, baseURL string) ([]string, bool) {
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: baseURL})
	models, err := client.ListModels(ctx)
	switch {
	case ollama.IsNotRunning(err):
		i.printf("  [!!] Ollama: not reachable at %s\n", client.BaseURL())
		i.printf("       -> Install from https://ollama.com and run: ollama serve\n")
		return nil, false
	case err != nil:
		i.printf("  [!!] Ollama: %v\n", err)
		return nil, false
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	slices.Sort(names)
	i.printf("  [OK] Ollama: running at %s (%d models)\n", client.BaseURL(), len(names))
	return names, true
}

// chooseModels asks which installed models to register. The first choice
// becomes the default model.
func (i *Installer) chooseModels(installed []string) ([]string, error) {
	for n, name := range installed {
		i.printf("  [%d] %s\n", n+1, name)
	}
	if i.AssumeYes {
		return installed, nil
	}

	for {
		line, err := i.In.ReadLine("\nModels to use, first is default (e.g. 2,1) [all]: ")
		if err != nil {
			return nil, fmt.Errorf("read choice: %w", err)
		}
		chosen, err := parseSelection(line, installed)
		if err == nil {
			return chosen, nil
		}
		i.printf("  %v\n", err)
	}
}

// parseSelection maps "2, 1" to the matching names. An empty line picks
// everything.
func parseSelection(line string, options []string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return options, nil
	}

	var out []string
	for field := range strings.SplitSeq(line, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 1 || n > len(options) {
			return nil, fmt.Errorf("invalid choice %q: enter numbers between 1 and %d", strings.TrimSpace(field), len(options))
		}
		if name := options[n-1]; !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// checkProviderKeys reports which hosted providers have keys set and
// returns their names.
func (i *Installer) checkProviderKeys(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Online.Providers))
	for name := range cfg.Online.Providers {
		names = append(names, name)
	}
	slices.Sort(names)

	var present []string
	for _, name := range names {
		env := cfg.Online.Providers[name].APIKeyEnv
		if i.getenv(env) != "" {
			i.printf("  [OK] %s: %s is set\n", name, env)
			present = append(present, name)
		} else {
			i.printf("  [--] %s: set %s to enable\n", name, env)
		}
	}
	return present
}

func (i *Installer) section(title string) {
	rule := strings.Repeat("-", 60)
	i.printf("\n%s\n  %s\n%s\n", rule, title, rule)
}

func (i *Installer) printf(format string, a ...any) {
	fmt.Fprintf(i.Out, format, a...)
}
