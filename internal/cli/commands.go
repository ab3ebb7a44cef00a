// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/router"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

const usageText = `rigchat - chat with local Ollama and hosted LLMs

Usage:
  rigchat [chat] [flags]           Start an interactive chat (default)
  rigchat serve [flags]            Start the web server
  rigchat models                   List models and availability
  rigchat export <in.json> <out>   Convert a saved conversation
  rigchat version                  Show version
  rigchat help                     Show this help

Flags:
  -m, --model <name>     Model to start with
  -p, --prompt <text>    System prompt for the first conversation
  -w, --web              Same as 'serve'
      --host <host>      Server host (default from config)
      --port <port>      Server port (default from config)
  -c, --config <path>    Config file (default ~/.rigchat/config.toml)
  -d, --debug            Debug logging
  -h, --help             Show this help
      --version          Show version`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, usageText)
}

// PrintVersion writes the version line.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "rigchat %s\n", Version)
}

// =============================================================================
// CHAT
// =============================================================================

// RunChat starts the interactive REPL on the process terminal.
// saved may be nil.
func RunChat(ctx context.Context, args Args, cfg *config.Config, store session.Store, reg *router.Registry, saved *storage.Dir, logger *slog.Logger) error {
	var in LineReader
	if IsTTY() {
		in = NewLinerInput()
	} else {
		in = NewScannerInput(os.Stdin, os.Stdout)
	}

	r := NewREPL(cfg, store, reg, in, os.Stdout).
		WithLogger(logger).
		WithSavedDir(saved).
		WithMarkdown(IsStdoutTTY() && ColorsEnabled())
	return r.Run(ctx, args.Model, args.Prompt)
}

// =============================================================================
// MODELS
// =============================================================================

// RunModels probes and lists every configured model.
func RunModels(ctx context.Context, w io.Writer, cfg *config.Config, reg *router.Registry) error {
	writeModelTable(w, reg.ProbeAll(ctx, cfg), cfg.Ollama.DefaultModel)
	return nil
}

// writeModelTable prints statuses with current marked.
func writeModelTable(w io.Writer, statuses []router.ModelStatus, current string) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, WarningStyle.Render("No models configured"))
		return
	}

	nameWidth := len("Model")
	for _, s := range statuses {
		nameWidth = max(nameWidth, runewidth.StringWidth(s.Name))
	}

	fmt.Fprintln(w, HighlightStyle.Render(fmt.Sprintf("   %s  %-7s  %s",
		runewidth.FillRight("Model", nameWidth), "Type", "Status")))
	fmt.Fprintln(w, RenderSeparator(nameWidth+30))

	for i, s := range statuses {
		marker := fmt.Sprintf("%2d", i+1)
		if s.Name == current {
			marker = " *"
		}
		fmt.Fprintf(w, "%s %s  %-7s  %s\n",
			marker,
			runewidth.FillRight(s.Name, nameWidth),
			string(s.Kind),
			RenderStatus(s.Available))
	}
}

// =============================================================================
// EXPORT
// =============================================================================

// RunExport converts a saved JSON conversation into the format implied
// by outPath.
func RunExport(w io.Writer, inPath, outPath string) error {
	data, err := storage.ReadFile(inPath)
	if err != nil {
		return err
	}
	conv, err := session.DecodeConversation(data, time.Now())
	if err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}
	if err := export.WriteFile(conv, outPath); err != nil {
		return err
	}
	fmt.Fprintln(w, SuccessStyle.Render(fmt.Sprintf("[OK] Exported %d messages to %s", len(conv.Messages), outPath)))
	return nil
}

// FormatError renders a top-level error for stderr.
func FormatError(err error) string {
	msg := strings.TrimSpace(err.Error())
	return ErrorStyle.Render("Error: " + msg)
}
