// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/rigchat/internal/config"
)

// ErrInterrupted is returned by a LineReader when the user presses Ctrl+C
// at an empty prompt.
var ErrInterrupted = errors.New("interrupted")

// LineReader supplies REPL input lines. io.EOF ends the session.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// =============================================================================
// LINER INPUT (interactive)
// =============================================================================

// LinerInput reads lines with editing and persistent history.
type LinerInput struct {
	line        *liner.State
	historyFile string
}

// NewLinerInput loads history from ~/.rigchat/chat_history.
func NewLinerInput() *LinerInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	in := &LinerInput{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	if f, err := os.Open(in.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return in
}

// ReadLine prompts and records non-empty input in history.
func (in *LinerInput) ReadLine(prompt string) (string, error) {
	text, err := in.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", ErrInterrupted
		}
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		in.line.AppendHistory(text)
	}
	return text, nil
}

// Close saves history with owner-only permissions and restores the
// terminal.
func (in *LinerInput) Close() error {
	defer in.line.Close()

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = in.line.WriteHistory(f)
	return err
}

// =============================================================================
// SCANNER INPUT (piped)
// =============================================================================

// ScannerInput reads lines from any reader. It is used when stdin is not
// a terminal, and by tests.
type ScannerInput struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewScannerInput reads from r. Prompts are written to out when non-nil.
func NewScannerInput(r io.Reader, out io.Writer) *ScannerInput {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScannerInput{scanner: s, out: out}
}

// ReadLine returns the next line or io.EOF.
func (in *ScannerInput) ReadLine(prompt string) (string, error) {
	if in.out != nil {
		_, _ = io.WriteString(in.out, prompt)
	}
	if !in.scanner.Scan() {
		if err := in.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return in.scanner.Text(), nil
}

// Close is a no-op.
func (in *ScannerInput) Close() error { return nil }
