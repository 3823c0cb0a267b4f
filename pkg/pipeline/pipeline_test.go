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
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/config"
	"github.com/kraklabs/cortex/pkg/embedding"
	"github.com/kraklabs/cortex/pkg/llm"
	"github.com/kraklabs/cortex/pkg/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, storeInVectorDB bool) (*config.MonitorConfig, string) {
	t.Helper()
	watched := t.TempDir()
	cfg := config.Default()
	cfg.DebounceSeconds = 0
	cfg.MaxConcurrent = 1
	cfg.Watched = []config.WatchedDirectory{{
		Path:            watched,
		Patterns:        []string{"*.md"},
		Recursive:       true,
		AutoProcess:     true,
		ProcessingTasks: []string{"summarize"},
		StoreInVectorDB: storeInVectorDB,
	}}
	return cfg, watched
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		WorkspaceID: "test",
		DataDir:     t.TempDir(),
		Embedder:    embedding.NewMockProvider(16),
		LocalLLM: &llm.MockProvider{
			GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
				return &llm.GenerateResponse{Text: "a tidy summary", Model: "mock-model", Done: true}, nil
			},
		},
		RemoteLLM: &llm.MockProvider{},
		Logger:    testLogger(),
	}
}

func completedItems(p *Pipeline) []queue.QueueItem {
	return p.Queue().ByStatus(queue.StatusCompleted)
}

func TestPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConcurrent = 0

	_, err := New(cfg, testOptions(t))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.ConfigInvalid), "got %v", err)
	assert.Contains(t, err.Error(), "max_concurrent")
}

func TestPipelineStatusBeforeRun(t *testing.T) {
	cfg, _ := testConfig(t, false)
	p, err := New(cfg, testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Store().Close() })

	status, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", status.Workspace)
	assert.False(t, status.Running)
	assert.Equal(t, 1, status.Watched)
	assert.Equal(t, int64(0), status.Store.Count)
	assert.Equal(t, 0, status.Queue.Pending)
}

func TestPipelineEndToEnd(t *testing.T) {
	cfg, watched := testConfig(t, false)
	p, err := New(cfg, testOptions(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	// give the watcher a beat to register before the write lands
	time.Sleep(300 * time.Millisecond)
	path := filepath.Join(watched, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# Note\n\nsome thoughts worth keeping"), 0o644))

	require.Eventually(t, func() bool {
		return len(completedItems(p)) >= 1
	}, 5*time.Second, 25*time.Millisecond, "file write must flow through to a completed item")

	item := completedItems(p)[0]
	assert.Equal(t, "summarize", item.Task)
	assert.Equal(t, path, item.FilePath)
	assert.Equal(t, "a tidy summary", item.ResultContent)
	assert.Equal(t, 0, item.RetryCount)
	assert.NotContains(t, item.ResultMetadata, "vector_storage",
		"no sidecar when store_in_vector_db is off")

	cancel()
	require.NoError(t, <-errCh)
}

func TestPipelineEndToEndWithVectorSidecar(t *testing.T) {
	cfg, watched := testConfig(t, true)
	p, err := New(cfg, testOptions(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	time.Sleep(300 * time.Millisecond)
	path := filepath.Join(watched, "journal.md")
	require.NoError(t, os.WriteFile(path, []byte("today was productive"), 0o644))

	require.Eventually(t, func() bool {
		return len(completedItems(p)) >= 1
	}, 5*time.Second, 25*time.Millisecond)

	item := completedItems(p)[0]
	vs, ok := item.ResultMetadata["vector_storage"].(map[string]any)
	require.True(t, ok, "sidecar outcome must be recorded")
	assert.Equal(t, true, vs["stored"])

	docID, _ := vs["id"].(string)
	doc, err := p.Store().Get(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "a tidy summary", doc.Content)

	cancel()
	require.NoError(t, <-errCh)
}

func TestPipelineBacklogSweep(t *testing.T) {
	cfg, watched := testConfig(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(watched, "old.md"), []byte("pre-existing"), 0o644))

	p, err := New(cfg, testOptions(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Store().Close() })

	count, err := p.Watcher().ProcessExistingFiles(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, p.Queue().Len())
}
