// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// DIALECTS
// =============================================================================

// Dialect selects the wire format of a hosted provider.
type Dialect int

const (
	DialectOpenAI Dialect = iota
	DialectGemini
)

func (d Dialect) String() string {
	switch d {
	case DialectOpenAI:
		return "openai"
	case DialectGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// providerDialects lists every hosted provider this package can talk to.
var providerDialects = map[string]Dialect{
	"deepseek": DialectOpenAI,
	"openai":   DialectOpenAI,
	"gemini":   DialectGemini,
}

// DialectFor resolves a provider name.
func DialectFor(provider string) (Dialect, error) {
	d, ok := providerDialects[strings.ToLower(provider)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return d, nil
}

// =============================================================================
// ADAPTER
// =============================================================================

// Config holds per-provider connection settings.
type Config struct {
	BaseURL string
	// APIKey is read once by the caller; empty means unavailable.
	APIKey       string
	ChatTimeout  time.Duration
	ProbeTimeout time.Duration
}

// Adapter implements model.Adapter for one hosted provider and model.
type Adapter struct {
	provider     string
	dialect      Dialect
	model        string
	baseURL      string
	apiKey       string
	chatTimeout  time.Duration
	probeTimeout time.Duration
	httpClient   *http.Client
	logger       *slog.Logger
}

var _ model.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter. It fails only for an unknown provider; a
// missing key yields an adapter that reports itself unavailable.
func NewAdapter(provider, modelName string, cfg Config) (*Adapter, error) {
	dialect, err := DialectFor(provider)
	if err != nil {
		return nil, err
	}

	a := &Adapter{
		provider:     strings.ToLower(provider),
		dialect:      dialect,
		model:        modelName,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		chatTimeout:  cfg.ChatTimeout,
		probeTimeout: cfg.ProbeTimeout,
		httpClient:   sharedHTTPClient,
		logger:       slog.New(slog.DiscardHandler),
	}
	if a.chatTimeout <= 0 {
		a.chatTimeout = DefaultChatTimeout
	}
	if a.probeTimeout <= 0 {
		a.probeTimeout = DefaultProbeTimeout
	}
	return a, nil
}

// WithLogger sets the logger. The API key appears only as a fingerprint.
func (a *Adapter) WithLogger(l *slog.Logger) *Adapter {
	if l != nil {
		a.logger = l.With("adapter", "online", "provider", a.provider,
			"model", a.model, "key", keyFingerprint(a.apiKey))
	}
	return a
}

// WithHTTPClient swaps the transport, mainly for tests.
func (a *Adapter) WithHTTPClient(hc *http.Client) *Adapter {
	a.httpClient = hc
	return a
}

// Provider returns the provider name.
func (a *Adapter) Provider() string {
	return a.provider
}

// Dialect returns the wire format in use.
func (a *Adapter) Dialect() Dialect {
	return a.dialect
}

// IsConfigured reports whether an API key was supplied.
func (a *Adapter) IsConfigured() bool {
	return a.apiKey != ""
}

// IsAvailable sends a 1-token request. Without a key it returns false
// without touching the network.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	if !a.IsConfigured() {
		a.logger.Warn("model unavailable", "err", ErrNotConfigured)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	var status int
	var err error
	switch a.dialect {
	case DialectGemini:
		status, err = a.geminiProbe(ctx)
	default:
		status, err = a.openAIProbe(ctx)
	}
	if err != nil {
		a.logger.Error("model availability check failed", "err", err)
		return false
	}
	return status >= 200 && status < 300
}

// Info describes the adapter. It performs a live availability probe.
func (a *Adapter) Info(ctx context.Context) model.Info {
	return model.Info{
		Name:      a.model,
		Type:      model.KindOnline,
		Provider:  a.provider,
		BaseURL:   a.baseURL,
		Available: a.IsAvailable(ctx),
	}
}

// Chat sends history and returns the whole reply in one envelope.
func (a *Adapter) Chat(ctx context.Context, history []model.Message, opts model.ChatOptions) model.Response {
	if failure, ok := a.preflight(ctx, history); !ok {
		return failure
	}
	opts = opts.WithDefaults()

	switch a.dialect {
	case DialectGemini:
		return a.geminiChat(ctx, history, opts)
	default:
		return a.openAIChat(ctx, history, opts)
	}
}

// ChatStream yields content fragments. OpenAI-compatible providers stream
// natively; Gemini is replayed one character at a time after a full call.
func (a *Adapter) ChatStream(ctx context.Context, history []model.Message, opts model.ChatOptions) iter.Seq[string] {
	return func(yield func(string) bool) {
		if failure, ok := a.preflight(ctx, history); !ok {
			yield(failure.JSON())
			return
		}
		o := opts.WithDefaults()

		switch a.dialect {
		case DialectGemini:
			a.geminiStream(ctx, history, o, yield)
		default:
			a.openAIStream(ctx, history, o, yield)
		}
	}
}

func (a *Adapter) preflight(ctx context.Context, history []model.Message) (model.Response, bool) {
	if err := model.ValidateHistory(history); err != nil {
		return model.FailWithType(model.ErrorValidation, "Invalid message format"), false
	}
	if !a.IsAvailable(ctx) {
		return model.FailWithType(model.ErrorUnavailable,
			fmt.Sprintf("%s model '%s' is not available", a.provider, a.model)), false
	}
	return model.Response{}, true
}

func (a *Adapter) transportFailure(err error, prefix string) model.Response {
	a.logger.Error("chat request failed", "err", err)
	return model.FailWithType(model.ErrorGeneral, prefix+": "+err.Error())
}
