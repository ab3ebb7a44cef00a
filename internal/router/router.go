// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ollama"
)

// ErrUnknownKind is logged when Create is asked for an unregistered kind.
var ErrUnknownKind = errors.New("unknown adapter kind")

// Options carries what a constructor needs beyond the model name.
type Options struct {
	// Provider names the hosted provider. Ignored for Ollama.
	Provider string
	BaseURL  string
	APIKey   string

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Constructor builds an adapter for modelName.
type Constructor func(modelName string, opts Options) (model.Adapter, error)

// =============================================================================
// BUILT-IN CONSTRUCTORS
// =============================================================================

// NewOllama builds a local adapter.
func NewOllama(modelName string, opts Options) (model.Adapter, error) {
	if modelName == "" {
		return nil, errors.New("ollama: model name is required")
	}
	cfg := ollama.DefaultConfig()
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	a := ollama.NewAdapter(modelName, cfg).WithLogger(opts.Logger)
	if opts.HTTPClient != nil {
		a.Client().WithHTTPClient(opts.HTTPClient)
	}
	return a, nil
}

// NewOnline builds a hosted-provider adapter.
func NewOnline(modelName string, opts Options) (model.Adapter, error) {
	a, err := cloud.NewAdapter(opts.Provider, modelName, cloud.Config{
		BaseURL: opts.BaseURL,
		APIKey:  opts.APIKey,
	})
	if err != nil {
		return nil, err
	}
	a.WithLogger(opts.Logger)
	if opts.HTTPClient != nil {
		a.WithHTTPClient(opts.HTTPClient)
	}
	return a, nil
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps adapter kinds to constructors and caches adapters built
// through ForModel.
type Registry struct {
	mu     sync.RWMutex
	ctors  map[model.Kind]Constructor
	cache  map[string]model.Adapter
	logger *slog.Logger
	client *http.Client
}

// NewRegistry returns a registry with the Ollama and online kinds.
func NewRegistry() *Registry {
	return &Registry{
		ctors: map[model.Kind]Constructor{
			model.KindOllama: NewOllama,
			model.KindOnline: NewOnline,
		},
		cache:  make(map[string]model.Adapter),
		logger: slog.New(slog.DiscardHandler),
	}
}

// WithLogger sets the logger for construction failures. Adapters inherit
// it unless Options names another.
func (r *Registry) WithLogger(l *slog.Logger) *Registry {
	if l != nil {
		r.logger = l
	}
	return r
}

// WithHTTPClient makes every adapter built by ForModel use hc.
func (r *Registry) WithHTTPClient(hc *http.Client) *Registry {
	r.client = hc
	return r
}

// Register adds or replaces the constructor for kind.
func (r *Registry) Register(kind model.Kind, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[kind] = ctor
	clear(r.cache)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []model.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]model.Kind, 0, len(r.ctors))
	for k := range r.ctors {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Create builds an adapter of kind. It reports false, after logging the
// cause, when kind is unregistered or the constructor fails or panics.
func (r *Registry) Create(ctx context.Context, kind model.Kind, modelName string, opts Options) (adapter model.Adapter, ok bool) {
	r.mu.RLock()
	ctor, found := r.ctors[kind]
	r.mu.RUnlock()

	if !found {
		r.logger.WarnContext(ctx, "adapter creation failed",
			"kind", kind, "model", modelName, "error", ErrUnknownKind)
		return nil, false
	}
	if opts.Logger == nil {
		opts.Logger = r.logger
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "adapter constructor panicked",
				"kind", kind, "model", modelName, "panic", fmt.Sprint(rec))
			adapter, ok = nil, false
		}
	}()

	a, err := ctor(modelName, opts)
	if err != nil || a == nil {
		if err == nil {
			err = errors.New("constructor returned no adapter")
		}
		r.logger.WarnContext(ctx, "adapter creation failed",
			"kind", kind, "model", modelName, "provider", opts.Provider, "error", err)
		return nil, false
	}
	r.logger.DebugContext(ctx, "adapter created", "kind", kind, "model", modelName)
	return a, true
}

// ForModel resolves a selectable model name against cfg and builds its
// adapter. Results are cached per endpoint and key.
func (r *Registry) ForModel(ctx context.Context, cfg *config.Config, name string) (model.Adapter, bool) {
	ref, ok := cfg.LookupModel(name)
	if !ok {
		r.logger.WarnContext(ctx, "unknown model", "model", name)
		return nil, false
	}

	opts := Options{
		Provider:   ref.Provider,
		BaseURL:    ref.BaseURL,
		APIKey:     ref.APIKey(),
		HTTPClient: r.client,
	}
	key := fmt.Sprintf("%s|%s|%s|%s", ref.Kind, ref.Model, ref.BaseURL, opts.APIKey)

	r.mu.RLock()
	cached, found := r.cache[key]
	r.mu.RUnlock()
	if found {
		return cached, true
	}

	a, ok := r.Create(ctx, ref.Kind, ref.Model, opts)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, found := r.cache[key]; found {
		return existing, true
	}
	r.cache[key] = a
	return a, true
}
