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

// Package worker runs the pool of goroutines that drain the processing
// queue. Each worker polls for the next item, resolves the right processor,
// loads file content when needed, enforces a per-item timeout and hands the
// outcome back to the queue. On success an item flagged with
// store_in_vector_db gets its result stored as a document; that sidecar's
// outcome is recorded on the item but never fails it.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/processor"
	"github.com/kraklabs/cortex/pkg/queue"
)

// binarySniffBytes is how much of a file's head is scanned for NUL bytes.
const binarySniffBytes = 8 * 1024

// Config tunes the pool.
type Config struct {
	// Workers is the number of concurrent worker goroutines.
	Workers int

	// PollInterval is the sleep between polls of an empty queue.
	PollInterval time.Duration

	// ProcessTimeout bounds one processor call. Breaches fail the item
	// with Timeout, which is retryable.
	ProcessTimeout time.Duration
}

// Factory resolves a processor for a kind. The pool caches the result, so a
// factory is called at most once per kind per pool.
type Factory func(kind processor.Kind) (processor.Processor, error)

// Pool drains the queue with N independent workers.
type Pool struct {
	cfg     Config
	queue   *queue.Queue
	factory Factory
	vector  *processor.VectorProcessor
	logger  *slog.Logger

	cacheMu sync.Mutex
	cache   map[processor.Kind]processor.Processor

	startMu sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New builds a pool. vector may be nil when no store is attached; the
// sidecar is then skipped and vector items fail with NoProviderAvailable.
func New(cfg Config, q *queue.Queue, factory Factory, vector *processor.VectorProcessor, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:     cfg,
		queue:   q,
		factory: factory,
		vector:  vector,
		logger:  logger,
		cache:   make(map[processor.Kind]processor.Processor),
	}
}

// Start launches the worker goroutines. Idempotent while running.
func (p *Pool) Start(ctx context.Context) {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.logger.Info("pool.start", "workers", p.cfg.Workers)
}

// Stop signals the workers and waits for in-flight items to finish.
func (p *Pool) Stop() {
	p.startMu.Lock()
	if !p.running {
		p.startMu.Unlock()
		return
	}
	p.running = false
	close(p.stop)
	p.startMu.Unlock()

	p.wg.Wait()
	p.logger.Info("pool.stop")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With("worker", id)

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		item := p.queue.Next()
		recordQueueDepth(p.queue.Len())
		if item == nil {
			select {
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.handle(ctx, logger, item)
	}
}

// handle runs one item end to end and reports the outcome to the queue.
func (p *Pool) handle(ctx context.Context, logger *slog.Logger, item *queue.QueueItem) {
	logger.Debug("pipeline.step.dispatch",
		"id", item.ID,
		"kind", string(item.Kind),
		"task", item.Task,
		"processor", string(item.Processor),
	)

	proc, err := p.processorFor(item)
	if err != nil {
		p.fail(item, err)
		return
	}

	content, err := p.loadContent(item)
	if err != nil {
		p.fail(item, err)
		return
	}

	// Checkpoint: a cancel that arrived while the item sat in processing
	// is honoured before any provider I/O happens.
	if p.queue.IsCancelled(item.ID) {
		p.cancel(item)
		return
	}

	opts := optionsFor(item)
	procCtx, cancel := context.WithTimeout(ctx, p.cfg.ProcessTimeout)
	res := proc.Process(procCtx, content, item.Task, opts)
	cancel()

	if !res.OK {
		err := res.Err
		if errors.Is(err, context.DeadlineExceeded) || procCtx.Err() == context.DeadlineExceeded {
			err = errs.Wrap(errs.Timeout,
				fmt.Sprintf("processing exceeded %s", p.cfg.ProcessTimeout), res.Err)
		}
		p.fail(item, err)
		return
	}

	// Checkpoint after processing. A successful vector side-effect is not
	// rolled back; the item is just marked cancelled.
	if p.queue.IsCancelled(item.ID) {
		p.cancel(item)
		return
	}

	resultMeta := make(map[string]any, len(res.Metadata)+1)
	for k, v := range res.Metadata {
		resultMeta[k] = v
	}

	if truthy(item.Metadata["store_in_vector_db"]) && proc.Kind() != processor.KindVector {
		resultMeta["vector_storage"] = p.storeSidecar(ctx, item, res.Content)
	}

	if err := p.queue.Complete(item.ID, res.Content, resultMeta); err != nil {
		logger.Warn("pipeline.step.complete", "id", item.ID, "err", err)
		return
	}
	recordProcessed(res.Elapsed.Seconds())
	logger.Info("pipeline.step.done",
		"id", item.ID,
		"task", item.Task,
		"elapsed_seconds", res.Elapsed.Seconds(),
	)
}

// processorFor resolves and caches the processor an item dispatches to.
// VectorStore items always go to the vector processor regardless of their
// processor_kind field.
func (p *Pool) processorFor(item *queue.QueueItem) (processor.Processor, error) {
	kind := processor.Kind(item.Processor)
	if item.Kind == queue.KindVectorStore {
		kind = processor.KindVector
	}

	if kind == processor.KindVector {
		if p.vector == nil {
			return nil, errs.E(errs.NoProviderAvailable, "no vector store attached")
		}
		return p.vector, nil
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if proc, ok := p.cache[kind]; ok {
		return proc, nil
	}
	proc, err := p.factory(kind)
	if err != nil {
		return nil, err
	}
	p.cache[kind] = proc
	return proc, nil
}

// loadContent returns the item's payload text, reading the file for
// FileProcess items carrying a path. Binary files are rejected.
func (p *Pool) loadContent(item *queue.QueueItem) (string, error) {
	if item.Kind != queue.KindFileProcess || item.FilePath == "" {
		return item.Content, nil
	}

	data, err := os.ReadFile(item.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.E(errs.FileNotFound, "file not found: %s", item.FilePath)
		}
		return "", errs.Wrap(errs.StorageIO, "read "+item.FilePath, err)
	}

	head := data
	if len(head) > binarySniffBytes {
		head = head[:binarySniffBytes]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return "", errs.E(errs.InvalidInput, "file appears to be binary: %s", item.FilePath)
	}
	return string(data), nil
}

// storeSidecar stores a processing result as a vector document. Its outcome
// is reported in result metadata; it never fails the parent item.
func (p *Pool) storeSidecar(ctx context.Context, item *queue.QueueItem, content string) map[string]any {
	if p.vector == nil {
		return map[string]any{"stored": false, "error": "no vector store attached"}
	}

	epoch := time.Now().Unix()
	var docID string
	if item.FilePath != "" {
		stem := strings.TrimSuffix(filepath.Base(item.FilePath), filepath.Ext(item.FilePath))
		docID = fmt.Sprintf("%s_%s_%d", stem, item.Task, epoch)
	} else {
		docID = fmt.Sprintf("content_%s_%d", item.Task, epoch)
	}

	meta := map[string]any{
		"document_id":    docID,
		"original_task":  item.Task,
		"processor_kind": string(item.Processor),
		"processed_at":   time.Now().UTC().Format(time.RFC3339),
	}
	if item.FilePath != "" {
		meta["source_file"] = item.FilePath
	}
	if v, ok := item.Metadata["auto_generated"]; ok {
		meta["auto_generated"] = v
	}
	if dirMeta, ok := item.Metadata["directory_metadata"].(map[string]any); ok {
		for k, v := range dirMeta {
			if _, taken := meta[k]; !taken {
				meta[k] = v
			}
		}
	}

	res := p.vector.Process(ctx, content, "store", processor.Options{
		FilePath: item.FilePath,
		Metadata: meta,
	})
	if !res.OK {
		p.logger.Warn("pipeline.sidecar.store", "id", item.ID, "err", res.Err)
		return map[string]any{"stored": false, "error": res.Err.Error()}
	}
	return map[string]any{"stored": true, "id": res.Content}
}

func (p *Pool) fail(item *queue.QueueItem, err error) {
	willRetry := errs.Retryable(err) && item.RetryCount < item.MaxRetries
	if qErr := p.queue.Fail(item.ID, err); qErr != nil {
		p.logger.Warn("pipeline.step.fail", "id", item.ID, "err", qErr)
		return
	}
	if willRetry {
		recordRetry()
	} else {
		recordFailed()
	}
}

func (p *Pool) cancel(item *queue.QueueItem) {
	if err := p.queue.Fail(item.ID, errs.E(errs.Cancelled, "cancelled at worker checkpoint")); err != nil {
		p.logger.Warn("pipeline.step.cancel", "id", item.ID, "err", err)
		return
	}
	recordCancelled()
}

// optionsFor maps an item's loose options onto processor call options.
func optionsFor(item *queue.QueueItem) processor.Options {
	opts := processor.Options{
		FilePath: item.FilePath,
		Metadata: item.Metadata,
	}
	if m, ok := item.Options["model"].(string); ok {
		opts.Model = m
	}
	if t, ok := toFloat(item.Options["temperature"]); ok {
		opts.Temperature = &t
	}
	if n, ok := toFloat(item.Options["max_tokens"]); ok {
		v := int(n)
		opts.MaxTokens = &v
	}
	return opts
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// truthy interprets the loosely-typed flags carried in item metadata.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x == "true" || x == "1" || x == "yes"
	case float64:
		return x != 0
	case int:
		return x != 0
	}
	return false
}
