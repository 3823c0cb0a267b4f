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

// Package watch turns filesystem events into queue items. A Watcher
// subscribes each configured directory via fsnotify (walking subtrees for
// recursive subscriptions), filters events through the directory patterns,
// the global ignore list and the extension allow-list, coalesces bursts
// with a per-path debounce, and enqueues one work item per configured task.
// The watcher never blocks on a full queue; rejected items are counted and
// logged.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	errs "github.com/kraklabs/cortex/internal/errors"
	"github.com/kraklabs/cortex/pkg/config"
	"github.com/kraklabs/cortex/pkg/queue"
)

// Watcher bridges fsnotify and the processing queue.
type Watcher struct {
	cfg    *config.MonitorConfig
	queue  *queue.Queue
	logger *slog.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time
	fs       *fsnotify.Watcher
	running  bool
	done     chan struct{}
}

// New builds a watcher. Start must be called before events flow.
func New(cfg *config.MonitorConfig, q *queue.Queue, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:      cfg,
		queue:    q,
		logger:   logger,
		lastSeen: make(map[string]time.Time),
	}
}

// Start registers the watched directories and launches the event loop.
// Registration failures on individual subdirectories are logged, not fatal;
// a directory root that cannot be watched at all is.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(errs.StorageIO, "create filesystem watcher", err)
	}

	registered := 0
	for _, dir := range w.cfg.Watched {
		n, err := registerTree(fs, dir.Path, dir.Recursive, w.logger)
		if err != nil {
			_ = fs.Close()
			return errs.Wrap(errs.ConfigInvalid, "watch "+dir.Path, err)
		}
		registered += n
	}

	w.fs = fs
	w.running = true
	w.done = make(chan struct{})
	go w.loop(ctx)

	w.logger.Info("watch.start",
		"directories", len(w.cfg.Watched),
		"registered", registered,
		"debounce_seconds", w.cfg.DebounceSeconds,
	)
	return nil
}

// Stop closes the fsnotify subscription and waits for the loop to drain.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	fs, done := w.fs, w.done
	w.fs = nil
	w.mu.Unlock()

	err := fs.Close()
	<-done
	w.logger.Info("watch.stop")
	return err
}

// registerTree adds root (and, when recursive, every subdirectory) to the
// fsnotify watcher. Hidden and permission-denied subtrees are skipped.
func registerTree(fs *fsnotify.Watcher, root string, recursive bool, logger *slog.Logger) (int, error) {
	if !recursive {
		if err := fs.Add(root); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count := 0
	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if path != root && len(base) > 0 && base[0] == '.' {
			return filepath.SkipDir
		}
		if err := fs.Add(path); err != nil {
			logger.Warn("watch.register", "path", path, "err", err)
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		count++
		return nil
	})
	return count, walkErr
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	for {
		w.mu.Lock()
		fs := w.fs
		w.mu.Unlock()
		if fs == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case event, ok := <-fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch.error", "err", err)
		}
	}
}

// handleEvent runs one fsnotify event through the filter chain and, when it
// survives, enqueues the file's configured tasks.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	recordWatchEvent()

	if event.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Chmod) != 0 {
		recordWatchDropped()
		return
	}

	path := event.Name
	info, err := os.Stat(path)
	if err != nil {
		// gone again before we looked
		recordWatchDropped()
		return
	}

	if info.IsDir() {
		// New subdirectories join recursive subscriptions on the fly.
		if event.Op&fsnotify.Create != 0 {
			if dir := w.cfg.DirectoryFor(path); dir != nil && dir.Recursive {
				w.mu.Lock()
				fs := w.fs
				w.mu.Unlock()
				if fs != nil {
					if _, err := registerTree(fs, path, true, w.logger); err != nil {
						w.logger.Warn("watch.register", "path", path, "err", err)
					}
				}
			}
		}
		recordWatchDropped()
		return
	}

	dir := w.cfg.DirectoryFor(path)
	if dir == nil || !dir.Matches(path) {
		recordWatchDropped()
		return
	}
	if w.cfg.ShouldIgnoreFile(path) || !w.cfg.IsFileSupported(path) {
		recordWatchDropped()
		return
	}

	if !w.cfg.ProcessingEnabled || !dir.AutoProcess {
		w.logger.Debug("watch.observe", "path", path, "op", event.Op.String())
		return
	}

	if w.debounced(path) {
		recordWatchDebounced()
		w.logger.Debug("watch.debounce", "path", path)
		return
	}

	eventType := "modified"
	if event.Op&fsnotify.Create != 0 {
		eventType = "created"
	}
	w.enqueue(path, dir, eventType)
}

// debounced reports whether path saw an event within the debounce window.
// Leading edge: the first event in a burst passes, the rest refresh the
// timestamp so a sustained stream of writes stays coalesced.
func (w *Watcher) debounced(path string) bool {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()

	last, seen := w.lastSeen[path]
	w.lastSeen[path] = now
	return seen && now.Sub(last) < w.cfg.Debounce()
}

// enqueue adds one queue item per configured task for the file.
func (w *Watcher) enqueue(path string, dir *config.WatchedDirectory, eventType string) {
	tasks := dir.ProcessingTasks
	if len(tasks) == 0 {
		tasks = []string{"summarize"}
	}

	for _, task := range tasks {
		meta := map[string]any{
			"event_type":         eventType,
			"watched_directory":  dir.Path,
			"store_in_vector_db": dir.StoreInVectorDB,
			"auto_generated":     true,
			"timestamp":          time.Now().UTC().Format(time.RFC3339),
		}
		if len(dir.Metadata) > 0 {
			dirMeta := make(map[string]any, len(dir.Metadata))
			for k, v := range dir.Metadata {
				dirMeta[k] = v
			}
			meta["directory_metadata"] = dirMeta
		}

		item := &queue.QueueItem{
			Kind:       queue.KindFileProcess,
			FilePath:   path,
			Task:       task,
			Processor:  queue.ProcessorKind(w.cfg.DefaultProcessor),
			Priority:   queue.WatchPriority,
			MaxRetries: queue.DefaultRetries,
			Metadata:   meta,
		}
		if err := w.queue.Add(item); err != nil {
			recordWatchQueueFull()
			w.logger.Warn("watch.enqueue.rejected", "path", path, "task", task, "err", err)
			continue
		}
		recordWatchEnqueued()
		w.logger.Info("watch.enqueue",
			"path", path,
			"task", task,
			"event_type", eventType,
			"id", item.ID,
		)
	}
}

// ProcessExistingFiles sweeps files already on disk through the same filter
// chain as live events, without debouncing, and enqueues their tasks. When
// root is empty every watched directory is swept; otherwise root must be one
// of the watched paths. Returns the number of files enqueued. progress, when
// non-nil, is called once per enqueued file.
func (w *Watcher) ProcessExistingFiles(ctx context.Context, root string, progress func(path string)) (int, error) {
	var dirs []config.WatchedDirectory
	if root == "" {
		dirs = w.cfg.Watched
	} else {
		clean := filepath.Clean(root)
		for _, d := range w.cfg.Watched {
			if filepath.Clean(d.Path) == clean {
				dirs = append(dirs, d)
				break
			}
		}
		if len(dirs) == 0 {
			return 0, errs.E(errs.NotFound, "directory %s is not watched", root)
		}
	}

	count := 0
	for i := range dirs {
		dir := dirs[i]
		err := filepath.Walk(dir.Path, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if os.IsPermission(err) {
					return filepath.SkipDir
				}
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if info.IsDir() {
				if path == dir.Path {
					return nil
				}
				base := filepath.Base(path)
				if !dir.Recursive || (len(base) > 0 && base[0] == '.') {
					return filepath.SkipDir
				}
				return nil
			}

			if !dir.Matches(path) || w.cfg.ShouldIgnoreFile(path) || !w.cfg.IsFileSupported(path) {
				return nil
			}

			w.enqueue(path, &dir, "existing")
			count++
			if progress != nil {
				progress(path)
			}
			return nil
		})
		if err != nil {
			return count, errs.Wrap(errs.StorageIO, "sweep "+dir.Path, err)
		}
	}

	w.logger.Info("watch.sweep", "files", count)
	return count, nil
}
