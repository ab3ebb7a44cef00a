// rigchat - chat with local Ollama and hosted LLMs from the terminal or browser.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/rigchat/internal/cli"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/router"
	"github.com/jeranaias/rigchat/internal/server"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// Version information (set at build time)
var (
	Version = "0.1.0"
)

func init() {
	cli.Version = Version
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one invocation and returns the process exit code.
func run(raw []string, stdout, stderr io.Writer) int {
	args, err := cli.ParseArgs(raw)
	if err != nil {
		fmt.Fprintln(stderr, cli.FormatError(err))
		return 2
	}

	switch args.Cmd {
	case cli.CmdHelp:
		cli.PrintUsage(stdout)
		return 0
	case cli.CmdVersion:
		cli.PrintVersion(stdout)
		return 0
	case cli.CmdExport:
		if err := cli.RunExport(stdout, args.ExportIn, args.ExportOut); err != nil {
			fmt.Fprintln(stderr, cli.FormatError(err))
			return 1
		}
		return 0
	}

	cfg, configPath, err := loadConfig(args)
	if err != nil {
		fmt.Fprintln(stderr, cli.FormatError(err))
		return 1
	}

	logger := logging.New(stderr, cfg.Logging, args.Debug)
	store := session.NewMemoryStore(cfg.Chat.MaxHistoryLength).WithLogger(logger)
	registry := router.NewRegistry().WithLogger(logger)

	saved, err := storage.DefaultDir()
	if err != nil {
		logger.Warn("saved conversations disabled", "error", err)
	}

	switch args.Cmd {
	case cli.CmdModels:
		err = cli.RunModels(context.Background(), stdout, cfg, registry)

	case cli.CmdServe:
		// Ctrl+C stops the server. The REPL handles Ctrl+C itself.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = serve(ctx, args, cfg, configPath, store, registry, saved, logger, stdout)

	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
		defer stop()
		err = cli.RunChat(ctx, args, cfg, store, registry, saved, logger)
	}

	if err != nil {
		fmt.Fprintln(stderr, cli.FormatError(err))
		return 1
	}
	return 0
}

// loadConfig reads --config or the default file, then applies flag
// overrides. It returns the path that was read for the watcher.
func loadConfig(args cli.Args) (*config.Config, string, error) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			cfg, err := config.Load()
			if err != nil {
				return nil, "", err
			}
			applyFlags(cfg, args)
			return cfg, "", cfg.Validate()
		}
		path = p
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config %s: %w", path, err)
	}
	applyFlags(cfg, args)
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func applyFlags(cfg *config.Config, args cli.Args) {
	if args.Host != "" {
		cfg.Server.Host = args.Host
	}
	if args.Port != 0 {
		cfg.Server.Port = args.Port
	}
	if args.Debug {
		cfg.Logging.Level = "debug"
	}
}

func serve(ctx context.Context, args cli.Args, cfg *config.Config, configPath string,
	store session.Store, registry *router.Registry, saved *storage.Dir, logger *slog.Logger, stdout io.Writer) error {

	srv := server.New(cfg, store, registry).WithLogger(logger)
	if saved != nil {
		srv.WithSavedDir(saved)
	}

	initial := args.Model
	if initial == "" {
		initial = cfg.Ollama.DefaultModel
	}
	available, err := srv.SelectModel(ctx, initial)
	switch {
	case err != nil:
		logger.Warn("no model selected at startup", "model", initial, "error", err)
	case !available:
		logger.Warn("selected model is not reachable yet", "model", initial)
	}

	fmt.Fprintln(stdout, cli.SuccessStyle.Render("Serving rigchat on http://"+cfg.Server.Addr()))
	return srv.Run(ctx, configPath)
}
