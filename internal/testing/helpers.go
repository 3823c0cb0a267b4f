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

package testing

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"log/slog"

	"github.com/kraklabs/cortex/pkg/embedding"
	"github.com/kraklabs/cortex/pkg/prompt"
	"github.com/kraklabs/cortex/pkg/queue"
	"github.com/kraklabs/cortex/pkg/vectorstore"
)

// MockDimension is the embedding width the mock provider produces in tests.
const MockDimension = 16

// Logger returns a slog logger that discards everything. Tests that want to
// inspect log output should build their own handler instead.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetupStore creates a vector store backed by a temp-dir sqlite file and a
// deterministic mock embedder. The store is closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store, mock := testing.SetupStore(t)
//	    testing.SeedDocuments(t, store, "first note", "second note")
//	    // ...
//	}
func SetupStore(t *testing.T) (*vectorstore.Store, *embedding.MockProvider) {
	t.Helper()

	mock := embedding.NewMockProvider(MockDimension)
	store, err := vectorstore.New(vectorstore.Options{
		Path:       filepath.Join(t.TempDir(), "vector.db"),
		Collection: "test",
		Embedder:   mock,
		Logger:     Logger(),
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store, mock
}

// SeedDocuments adds one document per content string and returns the
// generated ids in order.
func SeedDocuments(t *testing.T, store *vectorstore.Store, contents ...string) []string {
	t.Helper()

	ctx := context.Background()
	ids := make([]string, 0, len(contents))
	for _, content := range contents {
		res, err := store.Add(ctx, content, nil, "")
		if err != nil {
			t.Fatalf("failed to seed document %q: %v", content, err)
		}
		ids = append(ids, res.ID)
	}
	return ids
}

// SetupRegistry creates a prompt template registry in a temp dir with the
// default task templates already seeded.
func SetupRegistry(t *testing.T) *prompt.Registry {
	t.Helper()

	registry, err := prompt.NewRegistry(t.TempDir(), Logger())
	if err != nil {
		t.Fatalf("failed to create test registry: %v", err)
	}
	if _, err := registry.EnsureDefaults(); err != nil {
		t.Fatalf("failed to seed default templates: %v", err)
	}
	return registry
}

// SetupQueue creates a processing queue with a quiet logger.
func SetupQueue(t *testing.T, maxSize int) *queue.Queue {
	t.Helper()
	return queue.New(maxSize, Logger())
}

// EnqueueContent adds a pending inline-content item and returns it. The
// item uses the given task with sensible defaults for everything else.
func EnqueueContent(t *testing.T, q *queue.Queue, task, content string) *queue.QueueItem {
	t.Helper()

	item := &queue.QueueItem{
		Kind:       queue.KindFileProcess,
		Content:    content,
		Task:       task,
		Processor:  queue.ProcessorLocalLLM,
		MaxRetries: queue.DefaultRetries,
	}
	if err := q.Add(item); err != nil {
		t.Fatalf("failed to enqueue %q item: %v", task, err)
	}
	return item
}
