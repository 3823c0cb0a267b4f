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

package processor

import (
	"context"
	"strings"
	"time"

	"log/slog"

	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/vectorstore"
)

var vectorTasks = []string{"store", "search", "retrieve", "delete", "list", "stats"}

// Option keys the vector processor consumes from Options.Metadata. Anything
// else in the map is persisted as document metadata on store.
const (
	optDocumentID = "document_id"
	optK          = "k"
	optFilter     = "filter"
	optLimit      = "limit"
)

// defaultSearchK bounds search results when the caller does not pass k.
const defaultSearchK = 5

// VectorProcessor maps tasks onto vector store operations.
type VectorProcessor struct {
	store  *vectorstore.Store
	logger *slog.Logger
}

func NewVectorProcessor(store *vectorstore.Store, logger *slog.Logger) *VectorProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorProcessor{store: store, logger: logger}
}

func (p *VectorProcessor) Kind() Kind { return KindVector }

func (p *VectorProcessor) Tasks() []string {
	tasks := make([]string, len(vectorTasks))
	copy(tasks, vectorTasks)
	return tasks
}

func (p *VectorProcessor) Process(ctx context.Context, content, task string, opts Options) Result {
	started := time.Now()

	switch task {
	case "store":
		return p.storeTask(ctx, content, opts, started)
	case "search":
		return p.searchTask(ctx, content, opts, started)
	case "retrieve":
		return p.retrieveTask(ctx, content, opts, started)
	case "delete":
		return p.deleteTask(ctx, content, opts, started)
	case "list":
		return p.listTask(ctx, opts, started)
	case "stats":
		return p.statsTask(ctx, started)
	default:
		return failure(errs.E(errs.UnknownTask, "unknown task %q", task), started)
	}
}

func (p *VectorProcessor) storeTask(ctx context.Context, content string, opts Options, started time.Time) Result {
	if content == "" {
		return failure(errs.E(errs.InvalidInput, "cannot store empty content"), started)
	}

	id, _ := opts.Metadata[optDocumentID].(string)

	metadata := make(map[string]any)
	for k, v := range opts.Metadata {
		switch k {
		case optDocumentID, optK, optFilter, optLimit:
			continue
		}
		metadata[k] = v
	}
	if opts.FilePath != "" {
		metadata["file_path"] = opts.FilePath
	}

	res, err := p.store.Add(ctx, content, metadata, id)
	if err != nil {
		return failure(err, started)
	}
	return Result{
		OK:      true,
		Content: res.ID,
		Metadata: map[string]any{
			"id":              res.ID,
			"embedding_model": res.EmbeddingModel,
			"content_length":  res.ContentLength,
		},
		Elapsed: time.Since(started),
	}
}

func (p *VectorProcessor) searchTask(ctx context.Context, content string, opts Options, started time.Time) Result {
	query := strings.TrimSpace(content)
	if query == "" {
		return failure(errs.E(errs.InvalidInput, "search needs non-empty query text"), started)
	}

	k := defaultSearchK
	if v, ok := toInt(opts.Metadata[optK]); ok {
		k = v
	}
	filter, _ := opts.Metadata[optFilter].(map[string]any)

	matches, err := p.store.Query(ctx, query, k, filter)
	if err != nil {
		return failure(err, started)
	}

	results := make([]map[string]any, len(matches))
	for i, m := range matches {
		results[i] = map[string]any{
			"id":         m.Document.ID,
			"content":    m.Document.Content,
			"metadata":   m.Document.Metadata,
			"similarity": m.Similarity,
			"rank":       m.Rank,
		}
	}
	return Result{
		OK: true,
		Metadata: map[string]any{
			"query":   query,
			"k":       k,
			"count":   len(matches),
			"results": results,
		},
		Elapsed: time.Since(started),
	}
}

func (p *VectorProcessor) retrieveTask(ctx context.Context, content string, opts Options, started time.Time) Result {
	id := documentID(content, opts)
	if id == "" {
		return failure(errs.E(errs.InvalidInput, "retrieve needs a document id"), started)
	}

	doc, err := p.store.Get(ctx, id)
	if err != nil {
		return failure(err, started)
	}
	return Result{
		OK:      true,
		Content: doc.Content,
		Metadata: map[string]any{
			"id":              doc.ID,
			"metadata":        doc.Metadata,
			"embedding_model": doc.EmbeddingModel,
			"created_at":      doc.CreatedAt,
		},
		Elapsed: time.Since(started),
	}
}

func (p *VectorProcessor) deleteTask(ctx context.Context, content string, opts Options, started time.Time) Result {
	id := documentID(content, opts)
	if id == "" {
		return failure(errs.E(errs.InvalidInput, "delete needs a document id"), started)
	}

	if err := p.store.Delete(ctx, id); err != nil {
		return failure(err, started)
	}
	return Result{
		OK:       true,
		Content:  id,
		Metadata: map[string]any{"id": id},
		Elapsed:  time.Since(started),
	}
}

func (p *VectorProcessor) listTask(ctx context.Context, opts Options, started time.Time) Result {
	limit := 0
	if v, ok := toInt(opts.Metadata[optLimit]); ok {
		limit = v
	}

	docs, err := p.store.List(ctx, limit)
	if err != nil {
		return failure(err, started)
	}

	items := make([]map[string]any, len(docs))
	for i, d := range docs {
		items[i] = map[string]any{
			"id":              d.ID,
			"content":         d.Content,
			"metadata":        d.Metadata,
			"embedding_model": d.EmbeddingModel,
			"created_at":      d.CreatedAt,
		}
	}
	return Result{
		OK: true,
		Metadata: map[string]any{
			"count":     len(docs),
			"documents": items,
		},
		Elapsed: time.Since(started),
	}
}

func (p *VectorProcessor) statsTask(ctx context.Context, started time.Time) Result {
	stats, err := p.store.Stats(ctx)
	if err != nil {
		return failure(err, started)
	}
	return Result{
		OK: true,
		Metadata: map[string]any{
			"collection": stats.Collection,
			"count":      stats.Count,
			"path":       stats.Path,
			"embedding_info": map[string]any{
				"provider":  stats.EmbeddingInfo.Provider,
				"model":     stats.EmbeddingInfo.Model,
				"dimension": stats.EmbeddingInfo.Dimension,
			},
		},
		Elapsed: time.Since(started),
	}
}

// documentID resolves the target id for retrieve/delete: an explicit
// document_id option wins, otherwise the content itself is the id.
func documentID(content string, opts Options) string {
	if id, ok := opts.Metadata[optDocumentID].(string); ok && id != "" {
		return id
	}
	return strings.TrimSpace(content)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
