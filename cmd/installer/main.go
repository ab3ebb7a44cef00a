// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main provides the rigchat installer, a guided first-run setup.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/jeranaias/rigchat/internal/cli"
	"github.com/jeranaias/rigchat/internal/config"
)

const version = "0.1.0"

func main() {
	p := cli.NewArgParser(os.Args[1:], "force", "f", "yes", "y", "help", "h", "version", "v")

	switch {
	case p.BoolFlag("help", "h"):
		printHelp()
		return
	case p.BoolFlag("version", "v"):
		fmt.Printf("rigchat installer v%s\n", version)
		return
	}

	path := p.Flag("config", "c")
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			fmt.Fprintln(os.Stderr, cli.FormatError(err))
			os.Exit(1)
		}
	}

	var in cli.LineReader
	if cli.IsTTY() {
		in = cli.NewLinerInput()
	} else {
		in = cli.NewScannerInput(os.Stdin, os.Stdout)
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println(cli.BannerStyle.Render("rigchat installer\nSets up ~/.rigchat/config.toml"))

	inst := &Installer{
		In:         in,
		Out:        os.Stdout,
		ConfigPath: path,
		OllamaURL:  p.Flag("ollama-url"),
		Force:      p.BoolFlag("force", "f"),
		AssumeYes:  p.BoolFlag("yes", "y") || !cli.IsTTY(),
	}
	res, err := inst.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		if errors.Is(err, ErrConfigExists) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(cli.SuccessStyle.Render("Setup complete."))
	fmt.Printf("Default model: %s\n", res.Config.Ollama.DefaultModel)
	fmt.Println("Start chatting with:  rigchat")
	fmt.Println("Or open the web API:  rigchat serve")
}

func printHelp() {
	fmt.Println(`rigchat installer v` + version + `

Usage: rigchat-installer [OPTIONS]

Options:
  -c, --config <path>     Config file to write (default ~/.rigchat/config.toml)
      --ollama-url <url>  Ollama address (default http://localhost:11434)
  -f, --force             Overwrite an existing config
  -y, --yes               Accept defaults without prompting
  -h, --help              Show this help
  -v, --version           Show version`)
}
