// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"iter"
	"time"
)

// ErrorType tags the failure variant of a Response.
type ErrorType string

const (
	ErrorGeneral     ErrorType = "general"
	ErrorValidation  ErrorType = "validation"
	ErrorUnavailable ErrorType = "unavailable"
	ErrorAPI         ErrorType = "api"
)

// SuccessMessage is the message carried by every success envelope.
const SuccessMessage = "Success"

// =============================================================================
// RESPONSE ENVELOPE
// =============================================================================

// Response is the uniform result of a non-streaming adapter call. Exactly
// one of Data or Error is meaningful, selected by Success.
type Response struct {
	Success   bool         `json:"success"`
	Data      any          `json:"data,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// ErrorDetail describes why a call failed.
type ErrorDetail struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// ContentCarrier is implemented by adapter payloads that hold reply text.
type ContentCarrier interface {
	GetContent() string
}

// Succeed wraps data in a success envelope.
func Succeed(data any) Response {
	return Response{
		Success:   true,
		Data:      data,
		Message:   SuccessMessage,
		Timestamp: now(),
	}
}

// Fail builds a general failure envelope.
func Fail(message string) Response {
	return FailWithType(ErrorGeneral, message)
}

// FailWithType builds a failure envelope with an explicit kind.
func FailWithType(kind ErrorType, message string) Response {
	return Response{
		Success:   false,
		Error:     &ErrorDetail{Type: kind, Message: message},
		Timestamp: now(),
	}
}

// Content returns the reply text of a success envelope, or "".
func (r Response) Content() string {
	if !r.Success {
		return ""
	}
	switch d := r.Data.(type) {
	case ContentCarrier:
		return d.GetContent()
	case map[string]any:
		s, _ := d["content"].(string)
		return s
	}
	return ""
}

// ErrorMessage returns the failure text, or "" for a success envelope.
func (r Response) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return r.Error.Message
}

// JSON serializes the envelope. Marshal failures degrade to a fixed
// failure document so a stream can always terminate with valid JSON.
func (r Response) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":{"type":"general","message":"unserializable response"},"timestamp":"` + now() + `"}`
	}
	return string(data)
}

// =============================================================================
// STREAM HELPERS
// =============================================================================

var failurePrefix = []byte(`{"success":false`)

// FailStream returns a sequence whose only element is the serialized envelope.
func FailStream(r Response) iter.Seq[string] {
	return func(yield func(string) bool) {
		yield(r.JSON())
	}
}

// ParseStreamFailure reports whether a streamed element is a serialized
// failure envelope rather than content, and decodes it if so.
func ParseStreamFailure(chunk string) (Response, bool) {
	b := []byte(chunk)
	if !bytes.HasPrefix(b, failurePrefix) {
		return Response{}, false
	}
	var r Response
	if err := json.Unmarshal(b, &r); err != nil || r.Error == nil {
		return Response{}, false
	}
	return r, true
}

func now() string {
	return time.Now().Format(time.RFC3339)
}
