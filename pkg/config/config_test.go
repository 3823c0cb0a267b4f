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
package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ProcessingEnabled {
		t.Error("expected processing enabled by default")
	}
	if cfg.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.MaxConcurrent)
	}
	if cfg.QueueMaxSize != 100 {
		t.Errorf("QueueMaxSize = %d, want 100", cfg.QueueMaxSize)
	}
	if cfg.DefaultProcessor != ProcessorLocalLLM {
		t.Errorf("DefaultProcessor = %q, want %q", cfg.DefaultProcessor, ProcessorLocalLLM)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".cortex.yaml")

	cfg := Default()
	cfg.DebounceSeconds = 0.5
	cfg.MaxConcurrent = 7
	if err := cfg.AddWatchedDirectory(WatchedDirectory{
		Path:            dir,
		Patterns:        []string{"*.md", "*.txt"},
		Recursive:       true,
		AutoProcess:     true,
		ProcessingTasks: []string{"summarize", "extract_insights"},
		StoreInVectorDB: true,
		Metadata:        map[string]any{"source": "vault"},
	}); err != nil {
		t.Fatalf("AddWatchedDirectory: %v", err)
	}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.DebounceSeconds != 0.5 {
		t.Errorf("DebounceSeconds = %g, want 0.5", loaded.DebounceSeconds)
	}
	if loaded.MaxConcurrent != 7 {
		t.Errorf("MaxConcurrent = %d, want 7", loaded.MaxConcurrent)
	}
	if len(loaded.Watched) != 1 {
		t.Fatalf("Watched len = %d, want 1", len(loaded.Watched))
	}
	w := loaded.Watched[0]
	if w.Path != dir {
		t.Errorf("Path = %q, want %q", w.Path, dir)
	}
	if len(w.Patterns) != 2 || w.Patterns[0] != "*.md" {
		t.Errorf("Patterns = %v", w.Patterns)
	}
	if !w.StoreInVectorDB {
		t.Error("StoreInVectorDB lost in round trip")
	}
	if w.Metadata["source"] != "vault" {
		t.Errorf("Metadata = %v", w.Metadata)
	}
}

func TestDebounce(t *testing.T) {
	cfg := Default()
	cfg.DebounceSeconds = 0.5
	if got := cfg.Debounce(); got != 500*time.Millisecond {
		t.Errorf("Debounce() = %v, want 500ms", got)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	t.Run("clean config", func(t *testing.T) {
		cfg := Default()
		cfg.Watched = []WatchedDirectory{{Path: dir, Patterns: []string{"*"}}}
		if issues := cfg.Validate(); len(issues) != 0 {
			t.Errorf("expected no issues, got %v", issues)
		}
	})

	t.Run("bad numeric fields", func(t *testing.T) {
		cfg := Default()
		cfg.BatchSize = 0
		cfg.MaxConcurrent = -1
		cfg.DebounceSeconds = -2
		cfg.QueueMaxSize = 0
		issues := cfg.Validate()
		if len(issues) != 4 {
			t.Errorf("expected 4 issues, got %d: %v", len(issues), issues)
		}
	})

	t.Run("unknown processor", func(t *testing.T) {
		cfg := Default()
		cfg.DefaultProcessor = "cloudgpt"
		issues := cfg.Validate()
		if len(issues) != 1 || !strings.Contains(issues[0], "cloudgpt") {
			t.Errorf("issues = %v", issues)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		cfg := Default()
		cfg.Watched = []WatchedDirectory{{Path: filepath.Join(dir, "absent")}}
		issues := cfg.Validate()
		if len(issues) != 1 || !strings.Contains(issues[0], "cannot stat") {
			t.Errorf("issues = %v", issues)
		}
	})

	t.Run("duplicate directory", func(t *testing.T) {
		cfg := Default()
		cfg.Watched = []WatchedDirectory{{Path: dir}, {Path: dir}}
		issues := cfg.Validate()
		found := false
		for _, issue := range issues {
			if strings.Contains(issue, "duplicate") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected duplicate issue, got %v", issues)
		}
	})
}

func TestIsFileSupported(t *testing.T) {
	cfg := Default()

	tests := []struct {
		path string
		want bool
	}{
		{"notes.md", true},
		{"NOTES.MD", true},
		{"inbox/reading.txt", true},
		{"retro.org", true},
		{"data.csv", true},
		{"photo.jpg", false},
		{"binary.exe", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := cfg.IsFileSupported(tt.path); got != tt.want {
			t.Errorf("IsFileSupported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	cfg.SupportedExtensions = nil
	if !cfg.IsFileSupported("anything.xyz") {
		t.Error("empty allow-list should accept everything")
	}
}

func TestDirectoryFor(t *testing.T) {
	cfg := Default()
	cfg.Watched = []WatchedDirectory{
		{Path: "/vault", Recursive: true, ProcessingTasks: []string{"summarize"}},
		{Path: "/vault/projects", Recursive: true, ProcessingTasks: []string{"extract_insights"}},
		{Path: "/inbox", Recursive: false, ProcessingTasks: []string{"classify"}},
	}

	t.Run("deepest match wins", func(t *testing.T) {
		w := cfg.DirectoryFor("/vault/projects/q3/notes.md")
		if w == nil || w.Path != "/vault/projects" {
			t.Fatalf("got %+v, want /vault/projects", w)
		}
	})

	t.Run("shallow file maps to parent", func(t *testing.T) {
		w := cfg.DirectoryFor("/vault/inbox.md")
		if w == nil || w.Path != "/vault" {
			t.Fatalf("got %+v, want /vault", w)
		}
	})

	t.Run("non-recursive excludes nested", func(t *testing.T) {
		if w := cfg.DirectoryFor("/inbox/sub/deep.md"); w != nil {
			t.Fatalf("got %+v, want nil", w)
		}
		w := cfg.DirectoryFor("/inbox/item.md")
		if w == nil || w.Path != "/inbox" {
			t.Fatalf("got %+v, want /inbox", w)
		}
	})

	t.Run("unwatched path", func(t *testing.T) {
		if w := cfg.DirectoryFor("/elsewhere/file.md"); w != nil {
			t.Fatalf("got %+v, want nil", w)
		}
	})
}

func TestAddRemoveWatchedDirectory(t *testing.T) {
	cfg := Default()

	if err := cfg.AddWatchedDirectory(WatchedDirectory{Path: "/vault"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Defaults applied
	w := cfg.Watched[0]
	if len(w.Patterns) != 1 || w.Patterns[0] != "*" {
		t.Errorf("Patterns = %v, want [*]", w.Patterns)
	}
	if len(w.ProcessingTasks) != 1 || w.ProcessingTasks[0] != "summarize" {
		t.Errorf("ProcessingTasks = %v, want [summarize]", w.ProcessingTasks)
	}

	if err := cfg.AddWatchedDirectory(WatchedDirectory{Path: "/vault"}); err == nil {
		t.Error("expected duplicate path error")
	}
	if err := cfg.AddWatchedDirectory(WatchedDirectory{}); err == nil {
		t.Error("expected empty path error")
	}

	if err := cfg.RemoveWatchedDirectory("/vault"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cfg.Watched) != 0 {
		t.Errorf("Watched len = %d, want 0", len(cfg.Watched))
	}
	if err := cfg.RemoveWatchedDirectory("/vault"); err == nil {
		t.Error("expected not-watched error")
	}
}

func TestWatchedDirectory_Matches(t *testing.T) {
	w := WatchedDirectory{Patterns: []string{"*.md", "*.txt"}}
	if !w.Matches("vault/notes.md") {
		t.Error("*.md should match")
	}
	if !w.Matches("inbox/todo.txt") {
		t.Error("*.txt should match")
	}
	if w.Matches("photo.png") {
		t.Error("*.png should not match")
	}
}

func TestSummary(t *testing.T) {
	cfg := Default()
	cfg.Watched = []WatchedDirectory{
		{Path: "/vault", ProcessingTasks: []string{"summarize", "classify"}},
		{Path: "/inbox", ProcessingTasks: []string{"summarize"}},
	}

	s := cfg.Summary()
	dirs, ok := s["watched_directories"].([]string)
	if !ok || len(dirs) != 2 {
		t.Fatalf("watched_directories = %v", s["watched_directories"])
	}
	tasks, ok := s["processing_tasks"].([]string)
	if !ok || len(tasks) != 2 {
		t.Fatalf("processing_tasks = %v", s["processing_tasks"])
	}
	// Sorted and deduplicated
	if tasks[0] != "classify" || tasks[1] != "summarize" {
		t.Errorf("processing_tasks = %v", tasks)
	}
	if s["queue_max_size"] != 100 {
		t.Errorf("queue_max_size = %v", s["queue_max_size"])
	}
}
