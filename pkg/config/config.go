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

// Package config defines the declarative monitor configuration: which
// directories the pipeline watches, how events are filtered and debounced,
// and the resource caps the queue and worker pool honour. The configuration
// persists as a YAML dotfile; a missing file yields in-memory defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the monitor config dotfile looked up in the working
// directory when no explicit path is given.
const DefaultFileName = ".cortex.yaml"

// Processor kinds accepted by DefaultProcessor and QueueItem dispatch.
const (
	ProcessorLocalLLM  = "local_llm"
	ProcessorRemoteLLM = "remote_llm"
	ProcessorVector    = "vector"
)

// WatchedDirectory describes one directory subscription.
type WatchedDirectory struct {
	// Path is the directory to watch. Must exist when the pipeline starts.
	Path string `yaml:"path"`

	// Patterns are glob patterns a file must match to be picked up.
	// Supports full glob syntax: *, **, ?, [abc], [a-z], [!abc].
	// Empty defaults to ["*"].
	Patterns []string `yaml:"patterns"`

	// Recursive controls whether subdirectories are watched too.
	Recursive bool `yaml:"recursive"`

	// AutoProcess enables enqueueing work items for matching events.
	// When false the directory is watched but events are only logged.
	AutoProcess bool `yaml:"auto_process"`

	// ProcessingTasks are the task names enqueued per matching file,
	// one queue item per task. Empty defaults to ["summarize"].
	ProcessingTasks []string `yaml:"processing_tasks"`

	// StoreInVectorDB marks produced results for the vector-storage
	// sidecar: after a task completes, its output is stored as a
	// document in the vector store.
	StoreInVectorDB bool `yaml:"store_in_vector_db"`

	// Metadata is attached to every queue item synthesized for this
	// directory. Values should be JSON scalars.
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// Matches reports whether a path matches any of the directory's patterns.
func (w *WatchedDirectory) Matches(path string) bool {
	for _, pattern := range w.Patterns {
		if MatchGlob(path, pattern) {
			return true
		}
	}
	return false
}

// MonitorConfig is the persistable pipeline configuration.
type MonitorConfig struct {
	// Watched is the set of directory subscriptions.
	Watched []WatchedDirectory `yaml:"watched"`

	// ProcessingEnabled gates the whole pipeline: when false the watcher
	// still runs but no items are enqueued.
	ProcessingEnabled bool `yaml:"processing_enabled"`

	// BatchSize bounds how many existing files are enqueued per sweep
	// iteration when processing a directory backlog.
	BatchSize int `yaml:"batch_size"`

	// MaxConcurrent is the worker pool size.
	MaxConcurrent int `yaml:"max_concurrent"`

	// DebounceSeconds is the per-path coalescing window for filesystem
	// events. Events on the same path closer together than this are
	// dropped (the window keeps sliding).
	DebounceSeconds float64 `yaml:"debounce_seconds"`

	// IgnorePatterns are global glob patterns; a match drops the event
	// regardless of the owning directory's patterns.
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// SupportedExtensions is the allow-list of file extensions (with dot).
	SupportedExtensions []string `yaml:"supported_extensions"`

	// DefaultProcessor is the processor kind assigned to watch-originated
	// items: one of local_llm, remote_llm, vector.
	DefaultProcessor string `yaml:"default_processor"`

	// QueueMaxSize caps the pending queue; adds beyond it are rejected.
	QueueMaxSize int `yaml:"queue_max_size"`
}

// Default returns the in-memory defaults used when no config file exists.
func Default() *MonitorConfig {
	return &MonitorConfig{
		Watched:           nil,
		ProcessingEnabled: true,
		BatchSize:         10,
		MaxConcurrent:     3,
		DebounceSeconds:   2.0,
		IgnorePatterns: []string{
			".*",
			"*~",
			"*.tmp",
			"*.swp",
			"*.bak",
			"**/.git/**",
			"**/node_modules/**",
		},
		SupportedExtensions: []string{
			".txt", ".md", ".markdown", ".org", ".rst", ".csv", ".json", ".html",
		},
		DefaultProcessor: ProcessorLocalLLM,
		QueueMaxSize:     100,
	}
}

// Debounce returns the debounce window as a duration.
func (c *MonitorConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceSeconds * float64(time.Second))
}

// Load reads a monitor config from path. A missing file is not an error:
// it yields Default(), so a fresh checkout runs with sane settings.
func Load(path string) (*MonitorConfig, error) {
	if path == "" {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path atomically (temp file + rename).
func (c *MonitorConfig) Save(path string) error {
	if path == "" {
		path = DefaultFileName
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Validate returns human-readable issues. The pipeline refuses to start
// when the list is non-empty.
func (c *MonitorConfig) Validate() []string {
	var issues []string

	if c.BatchSize <= 0 {
		issues = append(issues, fmt.Sprintf("batch_size must be positive, got %d", c.BatchSize))
	}
	if c.MaxConcurrent <= 0 {
		issues = append(issues, fmt.Sprintf("max_concurrent must be positive, got %d", c.MaxConcurrent))
	}
	if c.DebounceSeconds < 0 {
		issues = append(issues, fmt.Sprintf("debounce_seconds must not be negative, got %g", c.DebounceSeconds))
	}
	if c.QueueMaxSize <= 0 {
		issues = append(issues, fmt.Sprintf("queue_max_size must be positive, got %d", c.QueueMaxSize))
	}

	switch c.DefaultProcessor {
	case ProcessorLocalLLM, ProcessorRemoteLLM, ProcessorVector:
	default:
		issues = append(issues, fmt.Sprintf("default_processor %q is not one of %s, %s, %s",
			c.DefaultProcessor, ProcessorLocalLLM, ProcessorRemoteLLM, ProcessorVector))
	}

	seen := make(map[string]bool, len(c.Watched))
	for i, w := range c.Watched {
		if w.Path == "" {
			issues = append(issues, fmt.Sprintf("watched[%d]: path must not be empty", i))
			continue
		}
		if seen[w.Path] {
			issues = append(issues, fmt.Sprintf("watched[%d]: duplicate path %s", i, w.Path))
		}
		seen[w.Path] = true

		info, err := os.Stat(w.Path)
		switch {
		case err != nil:
			issues = append(issues, fmt.Sprintf("watched[%d]: cannot stat %s: %v", i, w.Path, err))
		case !info.IsDir():
			issues = append(issues, fmt.Sprintf("watched[%d]: %s is not a directory", i, w.Path))
		}
	}

	return issues
}

// IsFileSupported reports whether the file's extension is on the allow-list.
// An empty allow-list accepts everything.
func (c *MonitorConfig) IsFileSupported(path string) bool {
	if len(c.SupportedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range c.SupportedExtensions {
		if ext == strings.ToLower(supported) {
			return true
		}
	}
	return false
}

// ShouldIgnoreFile reports whether the path matches any global ignore pattern.
func (c *MonitorConfig) ShouldIgnoreFile(path string) bool {
	for _, pattern := range c.IgnorePatterns {
		if MatchGlob(path, pattern) {
			return true
		}
	}
	return false
}

// DirectoryFor returns the watched directory owning the path, or nil.
// When watched directories nest, the deepest (longest) match wins.
func (c *MonitorConfig) DirectoryFor(path string) *WatchedDirectory {
	abs := filepath.Clean(path)

	var best *WatchedDirectory
	bestLen := -1
	for i := range c.Watched {
		w := &c.Watched[i]
		root := filepath.Clean(w.Path)
		if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
			continue
		}
		if !w.Recursive {
			// Non-recursive: only direct children belong to the directory.
			if filepath.Dir(abs) != root {
				continue
			}
		}
		if len(root) > bestLen {
			best = w
			bestLen = len(root)
		}
	}
	return best
}

// AddWatchedDirectory appends a subscription, applying defaults for empty
// patterns and tasks. Duplicate paths are rejected.
func (c *MonitorConfig) AddWatchedDirectory(dir WatchedDirectory) error {
	if dir.Path == "" {
		return fmt.Errorf("watched directory path must not be empty")
	}
	for _, w := range c.Watched {
		if filepath.Clean(w.Path) == filepath.Clean(dir.Path) {
			return fmt.Errorf("directory %s is already watched", dir.Path)
		}
	}
	if len(dir.Patterns) == 0 {
		dir.Patterns = []string{"*"}
	}
	if len(dir.ProcessingTasks) == 0 {
		dir.ProcessingTasks = []string{"summarize"}
	}
	c.Watched = append(c.Watched, dir)
	return nil
}

// RemoveWatchedDirectory drops the subscription for path.
func (c *MonitorConfig) RemoveWatchedDirectory(path string) error {
	clean := filepath.Clean(path)
	for i, w := range c.Watched {
		if filepath.Clean(w.Path) == clean {
			c.Watched = append(c.Watched[:i], c.Watched[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("directory %s is not watched", path)
}

// Summary returns a flat description of the configuration for status output.
func (c *MonitorConfig) Summary() map[string]any {
	dirs := make([]string, 0, len(c.Watched))
	tasks := make(map[string]bool)
	for _, w := range c.Watched {
		dirs = append(dirs, w.Path)
		for _, task := range w.ProcessingTasks {
			tasks[task] = true
		}
	}
	taskNames := make([]string, 0, len(tasks))
	for task := range tasks {
		taskNames = append(taskNames, task)
	}
	sort.Strings(taskNames)

	return map[string]any{
		"watched_directories":  dirs,
		"processing_enabled":   c.ProcessingEnabled,
		"processing_tasks":     taskNames,
		"max_concurrent":       c.MaxConcurrent,
		"debounce_seconds":     c.DebounceSeconds,
		"queue_max_size":       c.QueueMaxSize,
		"default_processor":    c.DefaultProcessor,
		"supported_extensions": append([]string(nil), c.SupportedExtensions...),
	}
}
