// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Command-line parsing for rigchat.

package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits raw arguments into flags and positionals. It accepts
// --flag value, --flag=value, -f value and bare boolean flags.
type ArgParser struct {
	subcommand string
	flags      map[string]string
	boolFlags  map[string]bool
	positional []string
}

// NewArgParser parses raw. Names listed in boolNames never consume the
// following argument, so "-w chat" keeps "chat" positional.
//
// Example:
//
//	args := NewArgParser([]string{"serve", "--port", "8080", "--debug"}, "debug")
//	args.Subcommand()       // "serve"
//	args.Flag("port")       // "8080"
//	args.BoolFlag("debug")  // true
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	p := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0, len(raw)),
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		// "--" ends flag parsing.
		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		isBool := slices.Contains(boolNames, name)

		switch {
		case hasValue && isBool:
			b, err := ParseBoolString(value)
			p.boolFlags[name] = err == nil && b
		case hasValue:
			p.flags[name] = value
		case isBool:
			p.boolFlags[name] = true
		case i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-"):
			p.flags[name] = raw[i+1]
			i++
		default:
			p.boolFlags[name] = true
		}
	}

	if len(p.positional) > 0 {
		p.subcommand = p.positional[0]
	}
	return p
}

// Subcommand returns the first positional argument.
func (p *ArgParser) Subcommand() string {
	return p.subcommand
}

// Flag returns the first non-empty value among names, so a long and a
// short spelling can be checked together.
func (p *ArgParser) Flag(names ...string) string {
	for _, name := range names {
		if val, ok := p.flags[strings.TrimLeft(name, "-")]; ok && val != "" {
			return val
		}
	}
	return ""
}

// BoolFlag reports whether any of names was given as a boolean flag.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, name := range names {
		if p.boolFlags[strings.TrimLeft(name, "-")] {
			return true
		}
	}
	return false
}

// HasFlag reports whether name was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, s := p.flags[name]
	_, b := p.boolFlags[name]
	return s || b
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// ParseIntWithValidation parses a positive integer.
func ParseIntWithValidation(s string, fieldName string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is required", fieldName)
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", fieldName, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", fieldName, val)
	}
	return val, nil
}

// ParseBoolString accepts true/false, yes/no, y/n, 1/0 and on/off.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// Command is the top-level action selected on the command line.
type Command int

const (
	CmdChat Command = iota
	CmdServe
	CmdModels
	CmdExport
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdChat:
		return "chat"
	case CmdServe:
		return "serve"
	case CmdModels:
		return "models"
	case CmdExport:
		return "export"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed command-line arguments.
type Args struct {
	Cmd Command

	Model      string
	Prompt     string
	Host       string
	Port       int
	ConfigPath string
	Debug      bool

	// ExportIn and ExportOut are set for CmdExport.
	ExportIn  string
	ExportOut string
}

var boolFlagNames = []string{"web", "w", "debug", "d", "help", "h", "version"}

// ParseArgs parses os.Args[1:].
func ParseArgs(raw []string) (Args, error) {
	p := NewArgParser(raw, boolFlagNames...)

	args := Args{
		Model:      p.Flag("model", "m"),
		Prompt:     p.Flag("prompt", "p"),
		Host:       p.Flag("host"),
		ConfigPath: p.Flag("config", "c"),
		Debug:      p.BoolFlag("debug", "d"),
	}

	if port := p.Flag("port"); port != "" {
		n, err := ParseIntWithValidation(port, "port")
		if err != nil {
			return args, err
		}
		if n > 65535 {
			return args, fmt.Errorf("port must be at most 65535, got %d", n)
		}
		args.Port = n
	}

	switch sub := p.Subcommand(); sub {
	case "", "chat":
		args.Cmd = CmdChat
	case "serve", "web":
		args.Cmd = CmdServe
	case "models":
		args.Cmd = CmdModels
	case "export":
		args.Cmd = CmdExport
		args.ExportIn = p.Positional(1)
		args.ExportOut = p.Positional(2)
		if args.ExportIn == "" || args.ExportOut == "" {
			return args, fmt.Errorf("usage: rigchat export <conversation.json> <output>")
		}
	case "version":
		args.Cmd = CmdVersion
	case "help":
		args.Cmd = CmdHelp
	default:
		return args, fmt.Errorf("unknown command: %s (see 'rigchat help')", sub)
	}

	// Flags override the subcommand.
	switch {
	case p.BoolFlag("help", "h"):
		args.Cmd = CmdHelp
	case p.BoolFlag("version"):
		args.Cmd = CmdVersion
	case p.BoolFlag("web", "w"):
		args.Cmd = CmdServe
	}
	return args, nil
}
