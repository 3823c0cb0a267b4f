// Copyright 2026 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	errs "github.com/kraklabs/cortex/internal/errors"
)

// preferredLocalModels is the probe order for a healthy local provider: the
// first model present on the server wins and becomes the session model.
var preferredLocalModels = []string{
	"nomic-embed-text",
	"mxbai-embed-large",
	"all-minilm",
}

// ModelLister is implemented by local providers that can enumerate the
// models their backing server has available.
type ModelLister interface {
	AvailableModels(ctx context.Context) ([]string, error)
}

// ModelSetter is implemented by providers whose embedding model can be
// pinned after health probing.
type ModelSetter interface {
	SetModel(model string)
}

// readier is implemented by providers that may lack credentials.
type readier interface {
	Ready() bool
}

// FallbackConfig configures the local-first fallback chain.
type FallbackConfig struct {
	// Local is the preferred provider, typically Ollama. Optional.
	Local Provider

	// Remote is the fallback provider, typically OpenAI. Optional.
	Remote Provider

	// PreferLocal controls whether Local is tried first. When false the
	// chain goes straight to Remote.
	PreferLocal bool

	// CacheSize caps the embedding cache entries. <= 0 disables caching.
	CacheSize int

	Logger *slog.Logger
}

// FallbackProvider routes embedding calls to a local provider when it is
// healthy and falls back to a remote one otherwise. Results are cached by
// (model, text) so repeated content never hits a backend twice.
type FallbackProvider struct {
	local       Provider
	remote      Provider
	preferLocal bool
	logger      *slog.Logger

	cache *lru.Cache[uint64, []float32]

	mu           sync.Mutex
	localChecked bool
	localHealthy bool
	localModel   string
}

// NewFallback builds the provider chain. At least one of Local and Remote
// must be set.
func NewFallback(cfg FallbackConfig) (*FallbackProvider, error) {
	if cfg.Local == nil && cfg.Remote == nil {
		return nil, errs.E(errs.NoProviderAvailable, "fallback chain needs a local or remote provider")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	f := &FallbackProvider{
		local:       cfg.Local,
		remote:      cfg.Remote,
		preferLocal: cfg.PreferLocal,
		logger:      cfg.Logger,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[uint64, []float32](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		f.cache = cache
	}
	return f, nil
}

func (f *FallbackProvider) Name() string { return "fallback" }

// localUsable probes the local provider once per session: it is healthy when
// it lists at least one model from the preferred order, or failing that any
// model whose name contains "embed". The winning model is pinned.
func (f *FallbackProvider) localUsable(ctx context.Context) bool {
	if f.local == nil || !f.preferLocal {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.localChecked {
		return f.localHealthy
	}
	f.localChecked = true

	lister, ok := f.local.(ModelLister)
	if !ok {
		// No way to probe; trust the provider.
		f.localHealthy = true
		return true
	}

	models, err := lister.AvailableModels(ctx)
	if err != nil {
		f.logger.Warn("embedding.local.unavailable", "err", err)
		f.localHealthy = false
		return false
	}

	model := pickEmbeddingModel(models)
	if model == "" {
		f.logger.Warn("embedding.local.no_embed_model", "models", len(models))
		f.localHealthy = false
		return false
	}

	if setter, ok := f.local.(ModelSetter); ok {
		setter.SetModel(model)
	}
	f.localModel = model
	f.localHealthy = true
	f.logger.Info("embedding.local.selected", "model", model)
	return true
}

// pickEmbeddingModel selects the session model from the server's list:
// preferred models in order, then anything containing "embed". Ollama tags
// carry a ":latest" suffix, so matching is by prefix.
func pickEmbeddingModel(available []string) string {
	for _, want := range preferredLocalModels {
		for _, have := range available {
			if have == want || strings.HasPrefix(have, want+":") {
				return have
			}
		}
	}
	for _, have := range available {
		if strings.Contains(strings.ToLower(have), "embed") {
			return have
		}
	}
	return ""
}

// remoteUsable reports whether the remote provider exists and has credentials.
func (f *FallbackProvider) remoteUsable() bool {
	if f.remote == nil {
		return false
	}
	if r, ok := f.remote.(readier); ok {
		return r.Ready()
	}
	return true
}

// Embed routes the batch to the first usable provider, consulting the cache
// per text. A local mid-call failure falls back to the remote provider for
// the whole batch.
func (f *FallbackProvider) Embed(ctx context.Context, texts []string) (*Result, error) {
	if f.localUsable(ctx) {
		res, err := f.embedWithCache(ctx, f.local, texts)
		if err == nil {
			return res, nil
		}
		if !f.remoteUsable() {
			return nil, err
		}
		recordEmbedFallback()
		f.logger.Warn("embedding.fallback.remote", "err", err)
		f.markLocalUnhealthy()
		return f.embedWithCache(ctx, f.remote, texts)
	}

	if f.remoteUsable() {
		return f.embedWithCache(ctx, f.remote, texts)
	}

	return nil, errs.E(errs.NoProviderAvailable,
		"no embedding provider available (local unreachable, remote not configured)")
}

func (f *FallbackProvider) EmbedOne(ctx context.Context, text string) ([]float32, string, error) {
	return embedOne(ctx, f, text)
}

func (f *FallbackProvider) markLocalUnhealthy() {
	f.mu.Lock()
	f.localHealthy = false
	f.mu.Unlock()
}

// embedWithCache serves cached vectors and forwards only the misses.
func (f *FallbackProvider) embedWithCache(ctx context.Context, p Provider, texts []string) (*Result, error) {
	model := f.providerModel(p)

	if f.cache == nil || model == "" {
		return p.Embed(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if vec, ok := f.cache.Get(cacheKey(model, text)); ok {
			recordEmbedCacheHit()
			vectors[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return &Result{Vectors: vectors, ModelName: model}, nil
	}

	res, err := p.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		vectors[i] = res.Vectors[j]
		f.cache.Add(cacheKey(res.ModelName, missTexts[j]), res.Vectors[j])
	}
	return &Result{Vectors: vectors, ModelName: res.ModelName}, nil
}

// providerModel returns the model a provider would use, for cache keying.
// Unknown providers return "" which bypasses the cache.
func (f *FallbackProvider) providerModel(p Provider) string {
	type modeler interface{ Model() string }
	if m, ok := p.(modeler); ok {
		return m.Model()
	}
	switch v := p.(type) {
	case *OpenAIProvider:
		return v.model
	case *MockProvider:
		return "mock-embed"
	}
	return ""
}

// cacheKey hashes (model, text) with FNV-64a.
func cacheKey(model, text string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(model))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return h.Sum64()
}
