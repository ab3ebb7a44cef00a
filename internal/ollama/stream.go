// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedLine marks a stream line that was not valid JSON. The reader
// stays usable; callers log it and keep reading.
var ErrMalformedLine = errors.New("malformed stream line")

// maxLineSize caps a single NDJSON line.
const maxLineSize = 1 << 20

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader reads a newline-delimited JSON chat stream, one
// ChatResponse per line.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// NewStreamReader wraps a streamed /api/chat body.
func NewStreamReader(body io.ReadCloser) *StreamReader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamReader{body: body, scanner: sc}
}

// Next returns the next parsed line. It returns io.EOF after the chunk
// with done=true or when the body ends. A line that fails to parse
// yields an error wrapping ErrMalformedLine; reading may continue.
func (s *StreamReader) Next() (*ChatResponse, error) {
	if s.done {
		return nil, io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
		}
		if chunk.Done {
			s.done = true
		}
		return &chunk, nil
	}
	s.done = true
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying connection.
func (s *StreamReader) Close() error {
	s.done = true
	return s.body.Close()
}
