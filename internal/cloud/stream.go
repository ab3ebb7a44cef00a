// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"io"
)

// MaxEventSize is the largest single SSE line accepted (1MB).
const MaxEventSize = 1 << 20

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader yields the payload of each "data:" line in a server-sent event
// stream. Event names, ids, retry hints and comments are ignored.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxEventSize)
	return &SSEReader{scanner: sc}
}

// Next returns the next data payload with the prefix and one optional
// leading space removed. It returns io.EOF when the body ends.
func (s *SSEReader) Next() ([]byte, error) {
	for s.scanner.Scan() {
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		data := line[len(dataPrefix):]
		if len(data) > 0 && data[0] == ' ' {
			data = data[1:]
		}
		return data, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// IsDone reports whether a payload is the OpenAI end-of-stream sentinel.
func IsDone(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), doneMarker)
}
