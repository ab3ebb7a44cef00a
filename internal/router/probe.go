// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
)

const (
	// ProbeConcurrency bounds simultaneous availability checks.
	ProbeConcurrency = 4

	// ProbeTimeout bounds each availability check.
	ProbeTimeout = 10 * time.Second
)

// ModelStatus is one row of a model listing.
type ModelStatus struct {
	Name      string     `json:"name"`
	Kind      model.Kind `json:"type"`
	Provider  string     `json:"provider,omitempty"`
	Model     string     `json:"model_name"`
	BaseURL   string     `json:"base_url"`
	Available bool       `json:"available"`
}

// ProbeAll checks every selectable model concurrently and returns the
// results in AllModels order. Names that fail to build report
// unavailable.
func (r *Registry) ProbeAll(ctx context.Context, cfg *config.Config) []ModelStatus {
	names := cfg.AllModels()
	out := make([]ModelStatus, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ProbeConcurrency)

	for i, name := range names {
		ref, _ := cfg.LookupModel(name)
		out[i] = ModelStatus{
			Name:     name,
			Kind:     ref.Kind,
			Provider: ref.Provider,
			Model:    ref.Model,
			BaseURL:  ref.BaseURL,
		}
		g.Go(func() error {
			a, ok := r.ForModel(gctx, cfg, name)
			if !ok {
				return nil
			}
			pctx, cancel := context.WithTimeout(gctx, ProbeTimeout)
			defer cancel()
			out[i].Available = a.IsAvailable(pctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
