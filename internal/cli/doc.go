// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigchat command line: argument parsing, the
// interactive chat REPL, and the non-interactive models and export
// commands.
//
// # Usage
//
//	args, err := cli.ParseArgs(os.Args[1:])
//	switch args.Cmd {
//	case cli.CmdChat:
//	    return cli.RunChat(ctx, args, cfg, store, registry, saved, logger)
//	case cli.CmdModels:
//	    return cli.RunModels(ctx, os.Stdout, cfg, registry)
//	}
//
// The REPL reads through a LineReader. LinerInput gives line editing and
// history on a terminal; ScannerInput serves pipes and tests.
package cli
