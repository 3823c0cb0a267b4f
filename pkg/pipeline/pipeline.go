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

// Package pipeline assembles the full processing chain: workspace, embedding
// providers, vector store, template registry, queue, worker pool and file
// watcher. It is the single composition point; everything below it stays
// independently testable.
package pipeline

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/kraklabs/cortex/internal/bootstrap"
	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/config"
	"github.com/kraklabs/cortex/pkg/embedding"
	"github.com/kraklabs/cortex/pkg/llm"
	"github.com/kraklabs/cortex/pkg/processor"
	"github.com/kraklabs/cortex/pkg/prompt"
	"github.com/kraklabs/cortex/pkg/queue"
	"github.com/kraklabs/cortex/pkg/vectorstore"
	"github.com/kraklabs/cortex/pkg/watch"
	"github.com/kraklabs/cortex/pkg/worker"
)

// Options overrides pieces of the pipeline wiring. Zero values fall back to
// environment-driven defaults; tests inject mocks here.
type Options struct {
	// WorkspaceID selects the workspace under ~/.cortex. Defaults to
	// "default".
	WorkspaceID string

	// DataDir overrides the workspace data directory.
	DataDir string

	// Collection is the vector store collection. Defaults to "documents".
	Collection string

	// Embedder overrides the local-then-remote fallback chain.
	Embedder embedding.Provider

	// LocalLLM / RemoteLLM override the generation providers.
	LocalLLM  llm.Provider
	RemoteLLM llm.Provider

	// ProcessTimeout bounds one processor call. Zero uses the pool default.
	ProcessTimeout time.Duration

	Logger *slog.Logger
}

// Status aggregates pipeline state for CLI and API consumers.
type Status struct {
	Workspace string            `json:"workspace"`
	Queue     queue.Status      `json:"queue"`
	Store     vectorstore.Stats `json:"store"`
	Watched   int               `json:"watched_directories"`
	Running   bool              `json:"running"`
}

// Pipeline owns the wired components and their lifecycle.
type Pipeline struct {
	cfg    *config.MonitorConfig
	logger *slog.Logger

	workspace *bootstrap.WorkspaceInfo
	store     *vectorstore.Store
	registry  *prompt.Registry
	queue     *queue.Queue
	pool      *worker.Pool
	watcher   *watch.Watcher

	mu      sync.Mutex
	running bool
}

// New validates the config and wires every component. Nothing starts yet;
// call Run.
func New(cfg *config.MonitorConfig, opts Options) (*Pipeline, error) {
	if issues := cfg.Validate(); len(issues) > 0 {
		return nil, errs.E(errs.ConfigInvalid, "invalid configuration: %s", strings.Join(issues, "; "))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WorkspaceID == "" {
		opts.WorkspaceID = "default"
	}

	started := time.Now()
	workspace, err := bootstrap.Init(bootstrap.WorkspaceConfig{
		WorkspaceID: opts.WorkspaceID,
		DataDir:     opts.DataDir,
		Collection:  opts.Collection,
	}, logger)
	if err != nil {
		return nil, errs.Wrap(errs.StorageIO, "initialize workspace", err)
	}
	logger.Debug("pipeline.step.workspace", "elapsed", time.Since(started))

	embedder := opts.Embedder
	if embedder == nil {
		embedder, err = DefaultEmbedder(logger)
		if err != nil {
			return nil, err
		}
	}

	store, err := vectorstore.New(vectorstore.Options{
		Path:       workspace.VectorDBPath,
		Collection: workspace.Collection,
		Embedder:   embedder,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("pipeline.step.store", "path", workspace.VectorDBPath)

	registry, err := prompt.NewRegistry(workspace.TemplateDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if _, err := registry.EnsureDefaults(); err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Debug("pipeline.step.templates", "dir", workspace.TemplateDir)

	q := queue.New(cfg.QueueMaxSize, logger)
	vectorProc := processor.NewVectorProcessor(store, logger)

	factory, err := processorFactory(opts, registry, vectorProc, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	pool := worker.New(worker.Config{
		Workers:        cfg.MaxConcurrent,
		ProcessTimeout: opts.ProcessTimeout,
	}, q, factory, vectorProc, logger)

	watcher := watch.New(cfg, q, logger)

	logger.Info("pipeline.ready",
		"workspace", workspace.WorkspaceID,
		"watched", len(cfg.Watched),
		"workers", cfg.MaxConcurrent,
		"elapsed", time.Since(started),
	)

	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		workspace: workspace,
		store:     store,
		registry:  registry,
		queue:     q,
		pool:      pool,
		watcher:   watcher,
	}, nil
}

// DefaultEmbedder builds the local-first fallback chain from the
// environment: Ollama when reachable, OpenAI when a key is present. The CLI
// uses it for one-shot queries that bypass the full pipeline.
func DefaultEmbedder(logger *slog.Logger) (embedding.Provider, error) {
	local := embedding.NewOllamaProvider("", "", logger)
	var remote embedding.Provider
	if os.Getenv("OPENAI_API_KEY") != "" {
		remote = embedding.NewOpenAIProvider("", "", "", logger)
	}
	return embedding.NewFallback(embedding.FallbackConfig{
		Local:       local,
		Remote:      remote,
		PreferLocal: true,
		Logger:      logger,
	})
}

// processorFactory builds the per-kind processor resolver the pool caches
// behind.
func processorFactory(opts Options, registry *prompt.Registry, vectorProc *processor.VectorProcessor, logger *slog.Logger) (worker.Factory, error) {
	local := opts.LocalLLM
	if local == nil {
		p, err := llm.NewProvider(llm.Config{Type: "ollama"})
		if err != nil {
			return nil, err
		}
		local = p
	}
	remote := opts.RemoteLLM
	if remote == nil {
		p, err := llm.NewProvider(llm.Config{Type: "openai"})
		if err != nil {
			return nil, err
		}
		remote = p
	}

	return func(kind processor.Kind) (processor.Processor, error) {
		switch kind {
		case processor.KindLocalLLM:
			return processor.NewLLMProcessor(local, registry, kind, "", logger), nil
		case processor.KindRemoteLLM:
			return processor.NewLLMProcessor(remote, registry, kind, "", logger), nil
		case processor.KindVector:
			return vectorProc, nil
		default:
			return nil, errs.E(errs.ConfigInvalid, "no processor for kind %q", string(kind))
		}
	}, nil
}

// Run starts the pool and the watcher, then blocks until ctx is cancelled.
// Shutdown is graceful: the watcher stops producing first, then the pool
// drains in-flight items, then the store closes.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return errs.E(errs.InvalidInput, "pipeline already running")
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info("pipeline.step.pool.start", "workers", p.cfg.MaxConcurrent)
	p.pool.Start(ctx)

	p.logger.Info("pipeline.step.watch.start", "directories", len(p.cfg.Watched))
	if err := p.watcher.Start(ctx); err != nil {
		p.pool.Stop()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		return err
	}

	<-ctx.Done()
	return p.Stop()
}

// Stop tears the pipeline down in producer-to-consumer order. Safe to call
// more than once.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	started := time.Now()
	if err := p.watcher.Stop(); err != nil {
		p.logger.Warn("pipeline.step.watch.stop", "err", err)
	}
	p.pool.Stop()
	err := p.store.Close()
	p.logger.Info("pipeline.stopped", "elapsed", time.Since(started))
	return err
}

// Status reports aggregate queue and store state.
func (p *Pipeline) Status(ctx context.Context) (Status, error) {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()

	stats, err := p.store.Stats(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Workspace: p.workspace.WorkspaceID,
		Queue:     p.queue.Status(),
		Store:     *stats,
		Watched:   len(p.cfg.Watched),
		Running:   running,
	}, nil
}

// Queue exposes the queue for CLI inspection and one-shot submissions.
func (p *Pipeline) Queue() *queue.Queue { return p.queue }

// Store exposes the vector store for one-shot queries.
func (p *Pipeline) Store() *vectorstore.Store { return p.store }

// Registry exposes the prompt template registry.
func (p *Pipeline) Registry() *prompt.Registry { return p.registry }

// Watcher exposes the file watcher, mainly for backlog sweeps.
func (p *Pipeline) Watcher() *watch.Watcher { return p.watcher }

// Workspace returns the resolved workspace record.
func (p *Pipeline) Workspace() *bootstrap.WorkspaceInfo { return p.workspace }
