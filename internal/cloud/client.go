// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultChatTimeout bounds non-streaming completion calls.
	DefaultChatTimeout = 60 * time.Second

	// DefaultProbeTimeout bounds the 1-token availability probe.
	DefaultProbeTimeout = 10 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024

	userAgent = "rigchat/1.0"
)

// PERFORMANCE: one pooled transport for every hosted adapter. Deadlines
// come from the request context so streams are never cut short.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
	},
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured indicates the provider's API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrUnsupportedProvider is returned by NewAdapter for unknown providers.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrNoCandidates means Gemini answered 200 without any candidate. Its
	// text is the envelope message.
	ErrNoCandidates = errors.New("No response content from Gemini")
)

// APIError is a non-2xx answer from a hosted API.
type APIError struct {
	Status  int
	Message string // provider's error.message, if any
}

// Error returns the provider's message, or a generic status line.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "API error: " + strconv.Itoa(e.Status)
}

// apiErrorResponse is the error body shared by both dialects.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		apiErr.Message = parsed.Error.Message
	}
	return apiErr
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// postJSON marshals body and POSTs it. The caller owns resp.Body.
func postJSON(ctx context.Context, hc *http.Client, url string, body any, headers map[string]string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return hc.Do(req)
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	r.Close()
}

// keyFingerprint returns a short, non-reversible identifier for an API key.
// SECURITY: used in logs instead of the key itself.
func keyFingerprint(apiKey string) string {
	if apiKey == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:4])
}
